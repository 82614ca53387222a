// Package auth implements sign-in, sign-out and password recovery.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/workbay/garagedesk/internal/api"
	"github.com/workbay/garagedesk/internal/nav"
	"github.com/workbay/garagedesk/internal/session"
)

// Client is the subset of the API used by the auth flows.
type Client interface {
	Login(ctx context.Context, kind session.AccountKind, email, password string) (*api.LoginResponse, error)
	Logout(ctx context.Context, accountID string) error
	SendOTP(ctx context.Context, email string) (*api.MessageResponse, error)
	VerifyOTP(ctx context.Context, email, otp string) (*api.MessageResponse, error)
	ResetPassword(ctx context.Context, email, newPassword string) (*api.MessageResponse, error)
}

// State is the sign-in state of the main screen.
type State int

const (
	LoggedOut State = iota
	LoggingIn
	LoggedIn
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case LoggingIn:
		return "logging_in"
	case LoggedIn:
		return "logged_in"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ValidTransitions maps each state to its valid next states.
var ValidTransitions = map[State][]State{
	LoggedOut: {LoggingIn},
	LoggingIn: {LoggedIn, LoggedOut},
	LoggedIn:  {LoggedOut},
}

var (
	ErrMissingFields       = errors.New("auth: missing fields")
	ErrSubscriptionExpired = errors.New("auth: subscription expired")
	ErrInvalidTransition   = errors.New("auth: invalid state transition")
	ErrInvalidKind         = errors.New("auth: invalid account kind")
)

// User-facing messages.
const (
	MsgFillAllFields = "Please fill in all fields"
	MsgLoginFailed   = "Login failed"
	MsgSubscription  = "Your subscription has expired. Please renew your plan."
)

// Credentials is the transient login form. It is never persisted.
type Credentials struct {
	Email    string
	Password string
}

// Flow is the sign-in state machine.
type Flow struct {
	client   Client
	sessions *session.Manager
	nav      nav.Navigator
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	kind    session.AccountKind
	form    Credentials
	message string
}

// NewFlow creates a Flow in the LoggedOut state for organization accounts.
func NewFlow(client Client, sessions *session.Manager, navigator nav.Navigator, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		client:   client,
		sessions: sessions,
		nav:      navigator,
		logger:   logger,
		kind:     session.Organization,
	}
}

// Restore derives the state from the persisted session.
func (f *Flow) Restore() error {
	ok, err := f.sessions.IsAuthenticated()
	if err != nil {
		return fmt.Errorf("auth: restore: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.state = LoggedIn
		if sess, err := f.sessions.Get(); err == nil && sess != nil && sess.AccountKind.Valid() {
			f.kind = sess.AccountKind
		}
	} else {
		f.state = LoggedOut
	}
	return nil
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Kind returns the selected account kind.
func (f *Flow) Kind() session.AccountKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kind
}

// Message returns the last user-facing error message, "" if none.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Form returns a copy of the credential form.
func (f *Flow) Form() Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

// SetCredentials fills the credential form.
func (f *Flow) SetCredentials(email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.form = Credentials{Email: email, Password: password}
}

// SwitchKind selects the account kind and clears the credential form.
func (f *Flow) SwitchKind(kind session.AccountKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kind = kind
	f.form = Credentials{}
	f.message = ""
	return nil
}

// transition moves to next if allowed. Caller holds f.mu.
func (f *Flow) transition(next State) error {
	for _, s := range ValidTransitions[f.state] {
		if s == next {
			f.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, f.state, next)
}

// Login signs in with the given credentials and account kind.
func (f *Flow) Login(ctx context.Context, email, password string, kind session.AccountKind) error {
	if err := f.SwitchKind(kind); err != nil {
		return err
	}
	f.SetCredentials(email, password)
	return f.Submit(ctx)
}

// Submit signs in with the current form. The form is cleared whatever the
// outcome.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	creds := f.form
	kind := f.kind
	f.form = Credentials{}
	f.message = ""
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		f.message = MsgFillAllFields
		f.mu.Unlock()
		return ErrMissingFields
	}
	if err := f.transition(LoggingIn); err != nil {
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	resp, err := f.client.Login(ctx, kind, strings.TrimSpace(creds.Email), creds.Password)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.message = api.Message(err, MsgLoginFailed)
		_ = f.transition(LoggedOut)
		f.logger.Warn("login failed", "kind", string(kind), "err", err)
		return fmt.Errorf("auth: login: %w", err)
	}

	acct := resp.Account()
	if resp.SubscriptionExpired {
		org := session.OrgIdentity{}
		if acct != nil {
			org = session.OrgIdentity{ID: acct.ID, Name: acct.Name, Email: acct.Email}
		}
		if org.Email == "" {
			org.Email = strings.TrimSpace(creds.Email)
		}
		if err := f.sessions.SetOrganization(org); err != nil {
			f.logger.Error("store organization identity", "err", err)
		}
		f.message = MsgSubscription
		_ = f.transition(LoggedOut)
		f.nav.Navigate(nav.RenewPlan(map[string]string{
			"garageId":    org.ID,
			"garageName":  org.Name,
			"garageEmail": org.Email,
		}))
		return ErrSubscriptionExpired
	}

	if resp.Token == "" || acct == nil {
		f.message = firstNonEmpty(resp.Message, MsgLoginFailed)
		_ = f.transition(LoggedOut)
		return fmt.Errorf("auth: login: response missing token or account")
	}

	sess := session.Session{
		Token:       resp.Token,
		AccountKind: kind,
		AccountID:   acct.ID,
		DisplayName: acct.Name,
	}
	if err := f.sessions.Set(sess); err != nil {
		f.logger.Error("store session", "err", err)
	}
	if kind == session.Organization {
		if err := f.sessions.SetOrganization(session.OrgIdentity{ID: acct.ID, Name: acct.Name, Email: acct.Email}); err != nil {
			f.logger.Error("store organization identity", "err", err)
		}
	}
	f.logger.Info("signed in", "kind", string(kind), "account", acct.ID)
	return f.transition(LoggedIn)
}

// Logout ends the session. The server call is best effort: its failure is
// logged and the local session is cleared regardless.
func (f *Flow) Logout(ctx context.Context) {
	sess, err := f.sessions.Get()
	if err != nil {
		f.logger.Error("read session", "err", err)
	}
	if sess != nil && sess.AccountID != "" {
		if err := f.client.Logout(ctx, sess.AccountID); err != nil {
			f.logger.Warn("server logout failed", "err", err)
		}
	}
	if err := f.sessions.Clear(); err != nil {
		f.logger.Error("clear session", "err", err)
	}

	f.mu.Lock()
	f.state = LoggedOut
	f.form = Credentials{}
	f.message = ""
	f.mu.Unlock()

	if f.nav.Current().Path != nav.PathLogin {
		f.nav.Navigate(nav.Login())
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
