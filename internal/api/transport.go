package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/workbay/garagedesk/internal/nav"
	"github.com/workbay/garagedesk/internal/session"
)

// ErrNoConnection is returned when a request got no response at all.
var ErrNoConnection = errors.New("api: no connection")

// authTransport is the request pipeline every API call passes through.
// Outgoing requests get the bearer token, a default JSON content type and a
// request id. A 401 response clears the session and sends the operator to
// the login screen.
type authTransport struct {
	base     http.RoundTripper
	sessions *session.Manager
	nav      nav.Navigator
	logger   *slog.Logger

	// serializes the clear-and-redirect so concurrent 401s navigate once
	mu sync.Mutex
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	token, err := t.sessions.Token()
	if err != nil {
		t.logger.Error("read session token", "err", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if req.Body != nil && req.Body != http.NoBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		if errors.Is(req.Context().Err(), context.Canceled) {
			return nil, err
		}
		t.logger.Warn("no response from server", "method", req.Method, "url", req.URL.String(), "err", err)
		return nil, fmt.Errorf("%w: %v", ErrNoConnection, err)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		t.expireSession(req)
	case http.StatusForbidden:
		t.logger.Warn("access forbidden", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode)
	}
	return resp, nil
}

func (t *authTransport) expireSession(req *http.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logger.Warn("session rejected by server", "method", req.Method, "url", req.URL.String(), "status", http.StatusUnauthorized)
	if err := t.sessions.Clear(); err != nil {
		t.logger.Error("clear session", "err", err)
	}
	if t.nav != nil && t.nav.Current().Path != nav.PathLogin {
		t.nav.Navigate(nav.Login())
	}
}
