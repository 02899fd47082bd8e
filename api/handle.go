// Package api exposes passwordless registration and the login method chain over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/icza/passwordless"
)

// maxBodyBytes limits request bodies.
const maxBodyBytes = 64 << 10

// Registrar creates pending registrations, implemented by passwordless.Handler.
type Registrar interface {
	Register(ctx context.Context, req passwordless.RegisterRequest) (*passwordless.RegisterResponse, error)
	PublicSettings() passwordless.PublicSettings
}

// Dispatcher runs the login method claiming an option bag, implemented by passwordless.Registry.
type Dispatcher interface {
	Dispatch(ctx context.Context, opts passwordless.Options) (*passwordless.LoginResult, string, bool)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// ErrorKind is set for rejected login and registration attempts.
	ErrorKind passwordless.ErrorKind `json:"errorKind,omitempty"`

	// Message describes the error.
	Message string `json:"message"`
}

// Handle serves the passwordless HTTP routes.
type Handle struct {
	// registrar handles registrations and public settings.
	registrar Registrar

	// dispatcher runs login requests.
	dispatcher Dispatcher

	// logger used to report failed requests.
	logger *slog.Logger
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the logger of the handle.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handle) {
		h.logger = l
	}
}

// NewHandle creates a new Handle.
func NewHandle(registrar Registrar, dispatcher Dispatcher, opts ...Option) *Handle {
	h := &Handle{
		registrar:  registrar,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the passwordless routes on r.
func (h *Handle) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/users.registerPasswordlessDev", h.Register)
	r.Get("/settings.passwordlessDev", h.Settings)
}

// Routes returns a router serving the passwordless routes under /api/v1.
func (h *Handle) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", h.RegisterRoutes)
	return r
}

// Login dispatches the JSON option bag in the body to the login method claiming it.
func (h *Handle) Login(w http.ResponseWriter, r *http.Request) {
	var opts passwordless.Options
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &opts); err != nil || opts == nil {
		h.logger.WarnContext(r.Context(), "Failed to decode login request", "err", err)
		writeError(w, r, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	res, strategy, ok := h.dispatcher.Dispatch(r.Context(), opts)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "", "unsupported login method")
		return
	}
	if res.Err != nil {
		writeLoginError(w, r, res.Err)
		return
	}

	h.logger.InfoContext(r.Context(), "User logged in", "strategy", strategy, "user_id", res.UserID)
	render.JSON(w, r, res)
}

// Register creates a pending registration from {username, name, email}.
// Other fields are rejected.
func (h *Handle) Register(w http.ResponseWriter, r *http.Request) {
	var req passwordless.RegisterRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode registration request", "err", err)
		writeError(w, r, http.StatusBadRequest, passwordless.KindMalformedRequest, "Invalid request body")
		return
	}

	resp, err := h.registrar.Register(r.Context(), req)
	if err != nil {
		var lerr *passwordless.LoginError
		if errors.As(err, &lerr) {
			writeLoginError(w, r, lerr)
			return
		}
		h.logger.ErrorContext(r.Context(), "Registration failed", "err", err)
		writeError(w, r, http.StatusInternalServerError, "", "Registration failed")
		return
	}

	render.JSON(w, r, resp)
}

// Settings returns the public passwordless settings.
func (h *Handle) Settings(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.registrar.PublicSettings())
}

// StatusCode maps an error kind to an HTTP status code.
func StatusCode(kind passwordless.ErrorKind) int {
	switch kind {
	case passwordless.KindFeatureDisabled:
		return http.StatusForbidden
	case passwordless.KindMisconfigured, passwordless.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case passwordless.KindMalformedRequest:
		return http.StatusBadRequest
	case passwordless.KindVerificationFailed:
		return http.StatusUnauthorized
	case passwordless.KindRegistrationDataMissing:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeLoginError(w http.ResponseWriter, r *http.Request, err *passwordless.LoginError) {
	writeError(w, r, StatusCode(err.Kind), err.Kind, err.Message)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, kind passwordless.ErrorKind, msg string) {
	render.Status(r, code)
	render.JSON(w, r, ErrorResponse{ErrorKind: kind, Message: msg})
}
