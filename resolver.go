package passwordless

import "context"

// Resolver maps a verified external identity to an existing user.
// It never writes.
type Resolver struct {
	users UserStore
}

// NewResolver creates a Resolver looking up users in the given store.
func NewResolver(users UserStore) *Resolver {
	return &Resolver{users: users}
}

// FindUserByExternalIdentity returns the user linked to externalUserID,
// or nil if no user is linked yet.
func (r *Resolver) FindUserByExternalIdentity(ctx context.Context, externalUserID string) (*User, error) {
	return r.users.FindByExternalUserID(ctx, externalUserID)
}
