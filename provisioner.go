package passwordless

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// NewUser holds the data a User is built from.
type NewUser struct {
	Type     string
	Username string
	Name     string
	Email    string

	// Services are credentials supplied by the caller.
	// If empty, a password service is synthesized.
	Services map[string]any
}

// Provisioner turns pending registrations into users.
type Provisioner struct {
	users         UserStore
	bcryptCost    int
	emailVerified bool

	// now is time.Now, replaceable in tests.
	now func() time.Time
}

// NewProvisioner creates a Provisioner inserting into the given store.
// Only cfg.BcryptCost and cfg.FlagEmailsAsVerified are used.
func NewProvisioner(users UserStore, cfg Config) *Provisioner {
	cfg = cfg.withDefaults()
	return &Provisioner{
		users:         users,
		bcryptCost:    cfg.BcryptCost,
		emailVerified: cfg.FlagEmailsAsVerified,
		now:           time.Now,
	}
}

// Provision creates the user of the pending registration, linked to externalUserID.
// On failure no user is created and the error is a *ProvisionError; if the
// identity is already linked it wraps ErrDuplicateLinkage.
func (p *Provisioner) Provision(ctx context.Context, pending *PendingRegistration, externalUserID string) (*User, error) {
	u, err := p.BuildUser(NewUser{
		Username: pending.Username,
		Name:     pending.Name,
		Email:    pending.Email,
	})
	if err != nil {
		return nil, &ProvisionError{Username: pending.Username, Err: err}
	}
	u.ExternalUserID = externalUserID

	if err := p.users.Insert(ctx, u); err != nil {
		return nil, &ProvisionError{Username: pending.Username, Err: err}
	}
	return u, nil
}

// BuildUser builds the user document of nu. It does not persist anything.
func (p *Provisioner) BuildUser(nu NewUser) (*User, error) {
	now := p.now()

	u := &User{
		Type:     nu.Type,
		Username: strings.TrimSpace(nu.Username),
		Name:     strings.TrimSpace(nu.Name),
		Emails:   userEmails(nu.Email, p.emailVerified),
		Services: map[string]any{},
		Active:   true,
		Created:  now,
	}
	if u.Type == "" {
		u.Type = UserTypeUser
	}

	if len(nu.Services) == 0 {
		pw, err := tempPassword(now, nu)
		if err != nil {
			return nil, err
		}
		hash, err := p.hashPassword(pw)
		if err != nil {
			return nil, err
		}
		u.Services["password"] = map[string]any{"bcrypt": hash}
	}
	for name, svc := range nu.Services {
		u.Services[name] = svc
	}

	return u, nil
}

// hashPassword returns bcrypt(sha256(password)), the format password logins check against.
func (p *Provisioner) hashPassword(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(sum[:])), p.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// tempPassword returns a throw-away password nobody is told about.
// The random suffix makes it unguessable even knowing the creation time.
func tempPassword(now time.Time, nu NewUser) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	sb.WriteString(nu.Name)
	sb.WriteString(strings.ToUpper(nu.Email))
	sb.WriteString(hex.EncodeToString(b))
	return sb.String(), nil
}
