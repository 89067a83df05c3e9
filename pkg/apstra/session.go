package apstra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/codes"
)

const (
	loginPath     = "/api/user/login"
	maxLoginBytes = 64 << 10
)

// Credential is the bearer token returned by login. It is never refreshed:
// the controller's token lifetime is assumed to outlast the process.
type Credential struct {
	Token string
}

// Header returns the headers every authenticated call carries. AuthToken is
// set with its wire spelling rather than the canonicalized "Authtoken".
func (c *Credential) Header() http.Header {
	h := http.Header{}
	h["AuthToken"] = []string{c.Token}
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-cache")
	return h
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	ID    string `json:"id,omitempty"`
}

// Session owns the single cached credential for one controller.
//
// The mutex is held across the login request, so concurrent first callers
// share one login. A failed login caches nothing and the next caller tries
// again.
type Session struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	log      *slog.Logger
	tel      *telemetry

	mu   sync.Mutex
	cred *Credential
}

// NewSession creates a session; no request is made until Credential is called.
func NewSession(cfg Config, httpClient *http.Client, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg)
	}
	return &Session{
		baseURL:  NormalizeBaseURL(cfg.BaseURL),
		username: cfg.Username,
		password: cfg.Password,
		http:     httpClient,
		log:      log,
		tel:      newTelemetry(),
	}
}

// BaseURL is the normalized controller URL.
func (s *Session) BaseURL() string { return s.baseURL }

// Credential returns the cached credential, logging in on first use.
func (s *Session) Credential(ctx context.Context) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred != nil {
		return s.cred, nil
	}

	cred, err := s.login(ctx)
	s.tel.observeLogin(ctx, err)
	if err != nil {
		s.log.WarnContext(ctx, "apstra login failed", "server", s.baseURL, "error", err)
		return nil, err
	}
	s.cred = cred
	s.log.InfoContext(ctx, "apstra login succeeded", "server", s.baseURL, "username", s.username)
	return cred, nil
}

func (s *Session) login(ctx context.Context) (cred *Credential, err error) {
	ctx, span := s.tel.tracer.Start(ctx, "apstra.login")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "login failed")
		}
		span.End()
	}()

	body, err := json.Marshal(loginRequest{Username: s.username, Password: s.password})
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("encode login request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("build login request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxLoginBytes))
	if err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read login response: %w", err)}
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var lr loginResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("decode login response: %w", err)}
	}
	if lr.Token == "" {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(raw), Err: errMissingToken}
	}
	return &Credential{Token: lr.Token}, nil
}
