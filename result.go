package passwordless

// LoginResult is the outcome of a login attempt handled by this method.
// Exactly one of UserID and Err is set.
type LoginResult struct {
	// UserID is the hex ObjectID of the logged in user.
	UserID string `json:"userId,omitempty"`

	Err *LoginError `json:"-"`
}

func success(userID string) *LoginResult {
	return &LoginResult{UserID: userID}
}

func rejected(err *LoginError) *LoginResult {
	return &LoginResult{Err: err}
}

// OK tells if the attempt succeeded.
func (r *LoginResult) OK() bool {
	return r != nil && r.Err == nil
}
