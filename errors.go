package passwordless

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a login or registration attempt was rejected.
type ErrorKind string

const (
	// KindNotApplicable: the request targets another login method.
	// Never carried by a LoginError, the Registry reports it as a miss.
	KindNotApplicable ErrorKind = "NotApplicable"

	KindFeatureDisabled         ErrorKind = "FeatureDisabled"
	KindMisconfigured           ErrorKind = "Misconfigured"
	KindMalformedRequest        ErrorKind = "MalformedRequest"
	KindVerificationFailed      ErrorKind = "VerificationFailed"
	KindRegistrationDataMissing ErrorKind = "RegistrationDataMissing"
	KindProvisioningFailed      ErrorKind = "ProvisioningFailed"
	KindStoreUnavailable        ErrorKind = "StoreUnavailable"

	// KindCleanupFailed is only ever logged: the user exists by then.
	KindCleanupFailed ErrorKind = "CleanupFailed"
)

// Sentinels usable with errors.Is; matching is by kind.
var (
	ErrFeatureDisabled         = &LoginError{Kind: KindFeatureDisabled}
	ErrMisconfigured           = &LoginError{Kind: KindMisconfigured}
	ErrMalformedRequest        = &LoginError{Kind: KindMalformedRequest}
	ErrVerificationFailed      = &LoginError{Kind: KindVerificationFailed}
	ErrRegistrationDataMissing = &LoginError{Kind: KindRegistrationDataMissing}
	ErrProvisioningFailed      = &LoginError{Kind: KindProvisioningFailed}
	ErrStoreUnavailable        = &LoginError{Kind: KindStoreUnavailable}
)

var (
	// ErrDuplicateLinkage is returned by UserStore.Insert if a user linked to the
	// same external identity already exists.
	ErrDuplicateLinkage = errors.New("user already linked to external identity")

	// ErrDuplicateToken is returned by PendingStore.Create if the token is taken.
	ErrDuplicateToken = errors.New("pending registration token already exists")
)

// LoginError is the failure variant of a login or registration attempt.
type LoginError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Message is safe to show to callers.
	Message string

	// err is the underlying cause, kept for logs. Never shown to callers.
	err error
}

func newLoginError(kind ErrorKind, msg string, cause error) *LoginError {
	return &LoginError{Kind: kind, Message: msg, err: cause}
}

// Error implements error.
func (e *LoginError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *LoginError) Unwrap() error { return e.err }

// Is reports whether target is a *LoginError of the same kind.
func (e *LoginError) Is(target error) bool {
	t, ok := target.(*LoginError)
	return ok && t.Kind == e.Kind
}

// ProvisionError is returned by Provisioner.Provision when no user was created.
type ProvisionError struct {
	// Username of the user that could not be created.
	Username string

	// Err is the cause.
	Err error
}

// Error implements error.
func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision user %q: %v", e.Username, e.Err)
}

// Unwrap returns the cause.
func (e *ProvisionError) Unwrap() error { return e.Err }
