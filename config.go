package passwordless

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultURL is the default for Config.URL.
	DefaultURL = "https://v4.passwordless.dev"

	// DefaultDBName is the default for Config.DBName.
	DefaultDBName = "passwordless"

	// DefaultPendingCollectionName is the default for Config.PendingCollectionName.
	DefaultPendingCollectionName = "pending_users"

	// DefaultUsersCollectionName is the default for Config.UsersCollectionName.
	DefaultUsersCollectionName = "users"

	// DefaultVerifierTimeout is the default for Config.VerifierTimeout.
	DefaultVerifierTimeout = 10 * time.Second

	// DefaultBcryptCost is the default for Config.BcryptCost.
	DefaultBcryptCost = bcrypt.DefaultCost
)

// Config holds the passwordless.dev login configuration.
// Only Enabled, URL and APISecret matter for the login decision; the rest have
// usable defaults, see constants for default values.
//
// The env tags are read by cleanenv in cmd/passwordlessd.
type Config struct {
	// Enabled turns the login method on.
	Enabled bool `env:"PASSWORDLESS_DEV_ENABLE" env-default:"false"`

	// URL is the base URL of the verification service.
	URL string `env:"PASSWORDLESS_DEV_URL" env-default:"https://v4.passwordless.dev"`

	// APIKey is the public key handed out to browsers.
	APIKey string `env:"PASSWORDLESS_DEV_API_KEY"`

	// APISecret is the private secret used to verify tokens. Never exposed.
	APISecret string `env:"PASSWORDLESS_DEV_API_SECRET"`

	// DBName is the name of the database holding the collections below.
	DBName string `env:"PASSWORDLESS_DB_NAME"`

	// PendingCollectionName is the name of the pending registrations collection.
	PendingCollectionName string `env:"PASSWORDLESS_PENDING_COLLECTION"`

	// UsersCollectionName is the name of the users collection.
	UsersCollectionName string `env:"PASSWORDLESS_USERS_COLLECTION"`

	// VerifierTimeout bounds a single verification call.
	VerifierTimeout time.Duration `env:"PASSWORDLESS_DEV_TIMEOUT"`

	// BcryptCost is the work factor of synthesized password hashes.
	BcryptCost int `env:"PASSWORDLESS_BCRYPT_COST"`

	// FlagEmailsAsVerified marks emails of provisioned users as verified.
	FlagEmailsAsVerified bool `env:"PASSWORDLESS_FLAG_EMAILS_VERIFIED" env-default:"false"`
}

// withDefaults returns a copy of cfg with zero values replaced by defaults.
// URL is left alone: an enabled but URL-less config is a configuration error.
func (cfg Config) withDefaults() Config {
	if cfg.DBName == "" {
		cfg.DBName = DefaultDBName
	}
	if cfg.PendingCollectionName == "" {
		cfg.PendingCollectionName = DefaultPendingCollectionName
	}
	if cfg.UsersCollectionName == "" {
		cfg.UsersCollectionName = DefaultUsersCollectionName
	}
	if cfg.VerifierTimeout == 0 {
		cfg.VerifierTimeout = DefaultVerifierTimeout
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	return cfg
}

// check reports why the login method cannot be used, or nil.
func (cfg Config) check() *LoginError {
	if !cfg.Enabled {
		return newLoginError(KindFeatureDisabled, "passwordless login is disabled", nil)
	}
	if cfg.URL == "" || cfg.APISecret == "" {
		return newLoginError(KindMisconfigured, "passwordless login is not configured", nil)
	}
	return nil
}
