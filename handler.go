package passwordless

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// StrategyName is the name of the login strategy in a Registry.
	StrategyName = "passwordless-dev"

	// OptionPasswordlessDev is the option flagging a passwordless.dev login request.
	OptionPasswordlessDev = "passwordlessDev"

	// OptionToken is the option holding the token to verify.
	OptionToken = "token"
)

var tracer trace.Tracer = otel.Tracer("github.com/icza/passwordless")

// state is a step of a login attempt, used in logs.
type state string

const (
	stateCheckingConfig state = "Checking-Config"
	stateVerifying      state = "Verifying"
	stateResolving      state = "Resolving"
	stateProvisioning   state = "Provisioning"
	stateFinalizing     state = "Finalizing"
)

// RegisterRequest holds the profile submitted on registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// RegisteredUser is the part of a pending registration returned to the caller.
type RegisteredUser struct {
	// Token is the handle to register with the verification service.
	Token string `json:"token"`
}

// RegisterResponse is the result of a successful registration.
type RegisterResponse struct {
	User RegisteredUser `json:"user"`
}

// PublicSettings is the configuration browsers may see.
type PublicSettings struct {
	// Enabled tells if passwordless login is offered.
	Enabled bool `json:"enabled"`

	// URL of the verification service.
	URL string `json:"url,omitempty"`

	// APIKey is the public API key of the application.
	APIKey string `json:"apiKey,omitempty"`
}

// Handler is the passwordless.dev login method.
// It's safe to use it concurrently from multiple goroutines.
type Handler struct {
	// cfg is the configuration, defaults filled in.
	cfg Config

	// verifier used to verify login tokens.
	verifier Verifier

	// resolver used to find users linked to verified identities.
	resolver *Resolver

	// provisioner used to create users from pending registrations.
	provisioner *Provisioner

	// pending registrations awaiting their first login.
	pending PendingStore

	// logger used to report login attempts.
	logger *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger of the handler.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler creates a new Handler.
// This function panics if verifier, users or pending are nil.
func NewHandler(cfg Config, verifier Verifier, users UserStore, pending PendingStore, opts ...Option) *Handler {
	if verifier == nil {
		panic("verifier must be provided")
	}
	if users == nil {
		panic("users must be provided")
	}
	if pending == nil {
		panic("pending must be provided")
	}

	cfg = cfg.withDefaults()

	h := &Handler{
		cfg:         cfg,
		verifier:    verifier,
		resolver:    NewResolver(users),
		provisioner: NewProvisioner(users, cfg),
		pending:     pending,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewMongoHandler creates a Handler storing users and pending registrations
// in MongoDB and verifying tokens with the passwordless.dev API.
// The indexes the handler relies on are created.
// This function panics if mongoClient is nil.
func NewMongoHandler(ctx context.Context, mongoClient *mongo.Client, cfg Config, opts ...Option) (*Handler, error) {
	if mongoClient == nil {
		panic("mongoClient must be provided")
	}

	cfg = cfg.withDefaults()
	db := mongoClient.Database(cfg.DBName)

	users := NewMongoUserStore(db.Collection(cfg.UsersCollectionName))
	if err := users.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	pending := NewMongoPendingStore(db.Collection(cfg.PendingCollectionName))
	if err := pending.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	verifier := NewHTTPVerifier(cfg.URL, cfg.APISecret,
		WithHTTPClient(&http.Client{Timeout: cfg.VerifierTimeout}))

	return NewHandler(cfg, verifier, users, pending, opts...), nil
}

// Strategy returns the registry entry of the handler. It claims option bags
// having passwordlessDev set to true and ignores everything else.
func (h *Handler) Strategy() Strategy {
	return Strategy{
		Name: StrategyName,
		Applies: func(opts Options) bool {
			v, _ := opts[OptionPasswordlessDev].(bool)
			return v
		},
		Login: h.Login,
	}
}

// PublicSettings returns the settings a browser needs to start a
// passwordless.dev ceremony. The API secret is never included.
func (h *Handler) PublicSettings() PublicSettings {
	if !h.cfg.Enabled {
		return PublicSettings{}
	}
	return PublicSettings{Enabled: true, URL: h.cfg.URL, APIKey: h.cfg.APIKey}
}

// Login verifies the token in opts and returns the user it belongs to,
// promoting the pending registration of the identity if needed.
// The returned result is never nil.
func (h *Handler) Login(ctx context.Context, opts Options) *LoginResult {
	ctx, span := tracer.Start(ctx, "passwordless.Login")
	defer span.End()

	res := h.login(ctx, opts)
	if res.Err != nil {
		span.SetStatus(codes.Error, string(res.Err.Kind))
		h.logger.WarnContext(ctx, "Passwordless login rejected", "kind", res.Err.Kind, "err", res.Err)
	} else {
		span.SetAttributes(attribute.String("user.id", res.UserID))
		h.logger.InfoContext(ctx, "Passwordless login succeeded", "user_id", res.UserID)
	}
	return res
}

func (h *Handler) login(ctx context.Context, opts Options) *LoginResult {
	h.enter(ctx, stateCheckingConfig)
	if err := h.cfg.check(); err != nil {
		return rejected(err)
	}

	token, ok := opts[OptionToken].(string)
	if !ok || token == "" {
		return rejected(newLoginError(KindMalformedRequest, "token is required", nil))
	}

	// From here on the attempt runs to completion even if the caller goes away:
	// a user must not be left behind with its pending registration.
	ctx = context.WithoutCancel(ctx)

	h.enter(ctx, stateVerifying)
	outcome := h.verifier.VerifyToken(ctx, token)
	if !outcome.Success {
		return rejected(newLoginError(KindVerificationFailed, "token invalid or expired", nil))
	}
	extID := outcome.ExternalUserID

	h.enter(ctx, stateResolving)
	u, err := h.resolver.FindUserByExternalIdentity(ctx, extID)
	if err != nil {
		return rejected(newLoginError(KindStoreUnavailable, "failed to look up user", err))
	}
	if u != nil {
		return success(u.ID.Hex())
	}

	// The external user ID is the token the registration was created with.
	pending, err := h.pending.FindByToken(ctx, extID)
	if err != nil {
		return rejected(newLoginError(KindStoreUnavailable, "failed to look up registration", err))
	}
	if pending == nil {
		// A concurrent attempt may have promoted and deleted it meanwhile.
		return h.resolveRace(ctx, extID,
			newLoginError(KindRegistrationDataMissing, "no registration data", nil))
	}

	h.enter(ctx, stateProvisioning)
	u, err = h.provisioner.Provision(ctx, pending, extID)
	if errors.Is(err, ErrDuplicateLinkage) {
		// A concurrent attempt provisioned the user first.
		return h.resolveRace(ctx, extID,
			newLoginError(KindProvisioningFailed, "failed to create user", err))
	}
	if err != nil {
		return rejected(newLoginError(KindProvisioningFailed, "failed to create user", err))
	}

	h.enter(ctx, stateFinalizing)
	if err := h.pending.Delete(ctx, pending.ID); err != nil {
		h.logger.WarnContext(ctx, "Failed to delete pending registration",
			"kind", KindCleanupFailed, "pending_id", pending.ID.Hex(), "err", err)
	}

	return success(u.ID.Hex())
}

// resolveRace looks up the user a concurrent attempt may have provisioned
// for extID, returning notFound if there is none.
func (h *Handler) resolveRace(ctx context.Context, extID string, notFound *LoginError) *LoginResult {
	h.enter(ctx, stateResolving)
	u, err := h.resolver.FindUserByExternalIdentity(ctx, extID)
	if err != nil {
		return rejected(newLoginError(KindStoreUnavailable, "failed to look up user", err))
	}
	if u == nil {
		return rejected(notFound)
	}
	return success(u.ID.Hex())
}

func (h *Handler) enter(ctx context.Context, st state) {
	h.logger.DebugContext(ctx, "Passwordless login", "state", st)
}

// Register saves a pending registration for the given profile.
// The returned token must be registered with the verification service as the
// user ID; the first successful login with it creates the user.
// Returned errors are of type *LoginError.
func (h *Handler) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	ctx, span := tracer.Start(ctx, "passwordless.Register")
	defer span.End()

	if err := h.cfg.check(); err != nil {
		span.SetStatus(codes.Error, string(err.Kind))
		return nil, err
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if req.Username == "" || req.Name == "" || req.Email == "" {
		span.SetStatus(codes.Error, string(KindMalformedRequest))
		return nil, newLoginError(KindMalformedRequest, "username, name and email are required", nil)
	}
	if !validEmail(req.Email) {
		span.SetStatus(codes.Error, string(KindMalformedRequest))
		return nil, newLoginError(KindMalformedRequest, "invalid email", nil)
	}

	p := &PendingRegistration{
		Token:    uuid.NewString(),
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Created:  h.provisioner.now(),
	}
	if err := h.pending.Create(ctx, p); err != nil {
		h.logger.ErrorContext(ctx, "Failed to save pending registration", "username", p.Username, "err", err)
		span.SetStatus(codes.Error, string(KindStoreUnavailable))
		return nil, newLoginError(KindStoreUnavailable, "failed to save registration", err)
	}

	h.logger.InfoContext(ctx, "Pending registration created", "username", p.Username, "pending_id", p.ID.Hex())
	return &RegisterResponse{User: RegisteredUser{Token: p.Token}}, nil
}
