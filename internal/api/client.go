// Package api is the single request pipeline to the remote garage API.
// Every call goes through authTransport so that session invalidation is
// enforced in one place.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/workbay/garagedesk/internal/nav"
	"github.com/workbay/garagedesk/internal/session"
)

// Options holds parameters for creating a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Sessions  *session.Manager
	Navigator nav.Navigator
	Logger    *slog.Logger
	// Transport overrides http.DefaultTransport, mainly for tests.
	Transport http.RoundTripper
}

// Client calls the garage API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("api: session manager is required")
	}
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		baseURL: u,
		logger:  logger,
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &authTransport{
				base:     base,
				sessions: opts.Sessions,
				nav:      opts.Navigator,
				logger:   logger,
			},
		},
	}, nil
}

// Account is the identity object returned by the login endpoints.
type Account struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoginResponse is the body of a login call.
type LoginResponse struct {
	Token               string   `json:"token"`
	Garage              *Account `json:"garage"`
	User                *Account `json:"user"`
	Message             string   `json:"message"`
	SubscriptionExpired bool     `json:"subscriptionExpired"`
}

// Account returns whichever of Garage or User is set.
func (r *LoginResponse) Account() *Account {
	if r.Garage != nil {
		return r.Garage
	}
	return r.User
}

// MessageResponse is the generic {message} response body.
type MessageResponse struct {
	Message string `json:"message"`
}

// Login signs in with the endpoint for kind. An expired subscription is
// reported through LoginResponse.SubscriptionExpired with a nil error, even
// when the server answers with a non-2xx status.
func (c *Client) Login(ctx context.Context, kind session.AccountKind, email, password string) (*LoginResponse, error) {
	path := "/api/garage/login"
	if kind == session.Individual {
		path = "/api/garage/user/login"
	}
	var resp LoginResponse
	err := c.doJSON(ctx, http.MethodPost, path, map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			var expired LoginResponse
			if json.Unmarshal(apiErr.Body, &expired) == nil && expired.SubscriptionExpired {
				return &expired, nil
			}
		}
		return nil, err
	}
	return &resp, nil
}

// Logout tells the server to end the session of accountID.
func (c *Client) Logout(ctx context.Context, accountID string) error {
	return c.do(ctx, http.MethodPost, "/api/garage/logout/"+accountID, nil, "", nil)
}

// SendOTP asks the server to email a one-time password.
func (c *Client) SendOTP(ctx context.Context, email string) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/verify/send-otp", map[string]string{"email": email}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyOTP checks a one-time password.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/verify/verify-otp", map[string]string{"email": email, "otp": otp}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetPassword sets a new password after OTP verification.
func (c *Client) ResetPassword(ctx context.Context, email, newPassword string) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/verify/reset-password", map[string]string{"email": email, "newPassword": newPassword}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetJobCard decodes the job card id into out.
func (c *Client) GetJobCard(ctx context.Context, id string, out any) error {
	return c.do(ctx, http.MethodGet, "/api/garage/jobCards/"+id, nil, "", out)
}

// CreateJobCard posts a multipart job card.
func (c *Client) CreateJobCard(ctx context.Context, body io.Reader, contentType string, out any) error {
	return c.do(ctx, http.MethodPost, "/api/garage/jobCards/add", body, contentType, out)
}

// UpdateJobCard puts a JSON or multipart job card.
func (c *Client) UpdateJobCard(ctx context.Context, id string, body io.Reader, contentType string, out any) error {
	return c.do(ctx, http.MethodPut, "/api/garage/jobCards/"+id, body, contentType, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("api: encode %s: %w", path, err)
	}
	return c.do(ctx, method, path, bytes.NewReader(data), "application/json", out)
}

// do sends one request. A non-2xx status returns *Error; a 2xx body is
// decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	u := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// http.Client replaces the transport error when its Timeout fires.
		if !errors.Is(err, ErrNoConnection) && !errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("api: %s %s: %w: %w", method, path, ErrNoConnection, err)
		}
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read %s %s: %w", method, path, err)
	}
	c.logger.Debug("api call", "method", method, "url", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}
