package passwordless

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxVerifyResponse limits how much of a verification response is read.
const maxVerifyResponse = 1 << 20

// VerificationOutcome is the result of a single token verification.
// ExternalUserID is only set if Success is true.
type VerificationOutcome struct {
	// Success tells if the service confirmed the token.
	Success bool

	// ExternalUserID is the user ID the service reported for the token.
	ExternalUserID string
}

// Verifier exchanges a one-time token for a verified identity.
type Verifier interface {
	// VerifyToken never fails: anything other than a positive answer from the
	// verification service is reported as an unsuccessful outcome.
	VerifyToken(ctx context.Context, token string) VerificationOutcome
}

// verifiedUser is the response body of the passwordless.dev sign-in verification.
type verifiedUser struct {
	Success      bool   `json:"success"`
	UserID       string `json:"userId"`
	Timestamp    string `json:"timestamp"`
	Origin       string `json:"origin"`
	Device       string `json:"device"`
	Country      string `json:"country"`
	Nickname     string `json:"nickname"`
	CredentialID string `json:"credentialId"`
	ExpiresAt    string `json:"expiresAt"`
	Type         string `json:"type"`
}

// HTTPVerifier is a Verifier talking to the passwordless.dev REST API.
// It's safe to use it concurrently from multiple goroutines.
type HTTPVerifier struct {
	// baseURL of the service, without trailing slash.
	baseURL string

	// secret is the private API secret sent in the ApiSecret header.
	secret string

	// httpClient used for verification calls.
	httpClient *http.Client

	// logger used to report failed verifications.
	logger *slog.Logger
}

// VerifierOption configures an HTTPVerifier.
type VerifierOption func(*HTTPVerifier)

// WithHTTPClient sets the HTTP client used for verification calls.
// The client's Timeout is the only timeout applied to a call.
func WithHTTPClient(c *http.Client) VerifierOption {
	return func(v *HTTPVerifier) {
		v.httpClient = c
	}
}

// WithVerifierLogger sets the logger of the verifier.
func WithVerifierLogger(l *slog.Logger) VerifierOption {
	return func(v *HTTPVerifier) {
		v.logger = l
	}
}

// NewHTTPVerifier creates a verifier for the service at baseURL,
// authenticating with the given API secret.
func NewHTTPVerifier(baseURL, secret string, opts ...VerifierOption) *HTTPVerifier {
	v := &HTTPVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: DefaultVerifierTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyToken implements Verifier.VerifyToken.
// Calls are never retried.
func (v *HTTPVerifier) VerifyToken(ctx context.Context, token string) VerificationOutcome {
	ctx, span := tracer.Start(ctx, "passwordless.VerifyToken")
	defer span.End()

	failed := func(msg string, args ...any) VerificationOutcome {
		v.logger.WarnContext(ctx, msg, args...)
		span.SetStatus(codes.Error, msg)
		return VerificationOutcome{}
	}

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return failed("Failed to encode verification request", "err", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/signin/verify", bytes.NewReader(body))
	if err != nil {
		return failed("Failed to create verification request", "err", err)
	}
	req.Header.Set("ApiSecret", v.secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return failed("Verification service unreachable", "err", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVerifyResponse))
	if err != nil {
		return failed("Failed to read verification response", "err", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed("Verification request rejected", "status", resp.StatusCode, "body", string(data))
	}

	var vu verifiedUser
	if err := json.Unmarshal(data, &vu); err != nil {
		return failed("Malformed verification response", "err", err)
	}
	if !vu.Success || vu.UserID == "" {
		return failed("Token not verified", "success", vu.Success)
	}

	v.logger.InfoContext(ctx, "Successfully verified sign-in for user",
		"user_id", vu.UserID, "origin", vu.Origin, "device", vu.Device, "type", vu.Type)
	return VerificationOutcome{Success: true, ExternalUserID: vu.UserID}
}
