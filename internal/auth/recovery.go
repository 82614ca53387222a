package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/workbay/garagedesk/internal/api"
)

// Step is the position in the password recovery wizard.
type Step int

const (
	StepRequest Step = iota
	StepVerify
	StepReset
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepRequest:
		return "request"
	case StepVerify:
		return "verify"
	case StepReset:
		return "reset"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

const (
	// ResendCooldown is how long after a send the OTP cannot be resent.
	ResendCooldown = 60 * time.Second
	// AutoCloseDelay is how long the wizard stays open after a reset.
	AutoCloseDelay = 3 * time.Second
	// MinPasswordLength is the shortest accepted new password.
	MinPasswordLength = 6
)

var (
	ErrWrongStep = errors.New("auth: recovery step out of order")
	ErrInvalid   = errors.New("auth: invalid input")
	ErrClosed    = errors.New("auth: recovery wizard is closed")
)

// Recovery messages.
const (
	MsgEnterEmail       = "Please enter your email"
	MsgEnterOTP         = "Please enter the OTP"
	MsgPasswordMismatch = "Passwords do not match"
	MsgPasswordShort    = "Password must be at least 6 characters"
	MsgSendFailed       = "Failed to send OTP"
	MsgVerifyFailed     = "Invalid OTP"
	MsgResetFailed      = "Failed to reset password"
	MsgResetDone        = "Password reset successfully"
)

// RecoveryOption configures a Recovery.
type RecoveryOption func(*Recovery)

// WithClock sets the clock used for the resend cooldown.
func WithClock(now func() time.Time) RecoveryOption {
	return func(r *Recovery) { r.now = now }
}

// WithAutoClose sets the delay between a successful reset and auto-close.
func WithAutoClose(d time.Duration) RecoveryOption {
	return func(r *Recovery) { r.closeDelay = d }
}

// WithTick sets the countdown tick interval.
func WithTick(d time.Duration) RecoveryOption {
	return func(r *Recovery) { r.tick = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RecoveryOption {
	return func(r *Recovery) { r.logger = l }
}

// Recovery is the three-step forgot-password wizard: request an OTP, verify
// it, set a new password. Errors are local to the current step.
type Recovery struct {
	client     Client
	logger     *slog.Logger
	now        func() time.Time
	closeDelay time.Duration
	tick       time.Duration

	mu            sync.Mutex
	open          bool
	step          Step
	email         string
	otp           string
	cooldownUntil time.Time
	message       string
	notice        string
	closeTimer    *time.Timer
	closed        chan struct{}
}

// NewRecovery creates a closed wizard.
func NewRecovery(client Client, opts ...RecoveryOption) *Recovery {
	r := &Recovery{
		client:     client,
		logger:     slog.Default(),
		now:        time.Now,
		closeDelay: AutoCloseDelay,
		tick:       time.Second,
		closed:     make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Open resets the wizard to the first step and shows it.
func (r *Recovery) Open() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeTimer != nil {
		r.closeTimer.Stop()
	}
	r.resetLocked()
	if !r.open {
		r.closed = make(chan struct{})
	}
	r.open = true
}

// Cancel closes the wizard and discards its state.
func (r *Recovery) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

// Done is closed when the wizard closes, by Cancel or by auto-close.
func (r *Recovery) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Recovery) closeLocked() {
	if r.closeTimer != nil {
		r.closeTimer.Stop()
	}
	wasOpen := r.open
	r.resetLocked()
	r.open = false
	if wasOpen {
		close(r.closed)
	}
}

func (r *Recovery) resetLocked() {
	r.step = StepRequest
	r.email = ""
	r.otp = ""
	r.cooldownUntil = time.Time{}
	r.message = ""
	r.notice = ""
	r.closeTimer = nil
}

// IsOpen reports whether the wizard is shown.
func (r *Recovery) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// Step returns the current step.
func (r *Recovery) Step() Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.step
}

// Message returns the current step's error, "" if none.
func (r *Recovery) Message() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message
}

// Notice returns the last success notice.
func (r *Recovery) Notice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notice
}

// Email returns the address the OTP was sent to.
func (r *Recovery) Email() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.email
}

// CooldownRemaining returns the whole seconds left before a resend is allowed.
func (r *Recovery) CooldownRemaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remainingLocked()
}

func (r *Recovery) remainingLocked() int {
	left := r.cooldownUntil.Sub(r.now())
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// CanResend reports whether the cooldown has expired.
func (r *Recovery) CanResend() bool {
	return r.CooldownRemaining() == 0
}

// guard checks the wizard is open and on want. Caller holds r.mu.
func (r *Recovery) guard(want Step) error {
	if !r.open {
		return ErrClosed
	}
	if r.step != want {
		return ErrWrongStep
	}
	return nil
}

// SendOTP requests an OTP for email and moves to the verify step.
func (r *Recovery) SendOTP(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	r.mu.Lock()
	if err := r.guard(StepRequest); err != nil {
		r.mu.Unlock()
		return err
	}
	r.message = ""
	if email == "" {
		r.message = MsgEnterEmail
		r.mu.Unlock()
		return ErrInvalid
	}
	r.mu.Unlock()

	resp, err := r.client.SendOTP(ctx, email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.message = api.Message(err, MsgSendFailed)
		r.logger.Warn("send otp failed", "err", err)
		return err
	}
	r.email = email
	r.step = StepVerify
	r.cooldownUntil = r.now().Add(ResendCooldown)
	r.notice = firstNonEmpty(resp.Message, "OTP sent to "+email)
	return nil
}

// Resend sends the OTP again. It is a no-op returning false while the
// cooldown is running.
func (r *Recovery) Resend(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if err := r.guard(StepVerify); err != nil {
		r.mu.Unlock()
		return false, err
	}
	if r.remainingLocked() > 0 {
		r.mu.Unlock()
		return false, nil
	}
	email := r.email
	r.message = ""
	r.mu.Unlock()

	resp, err := r.client.SendOTP(ctx, email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.message = api.Message(err, MsgSendFailed)
		r.logger.Warn("resend otp failed", "err", err)
		return false, err
	}
	r.cooldownUntil = r.now().Add(ResendCooldown)
	r.notice = firstNonEmpty(resp.Message, "OTP sent to "+email)
	return true, nil
}

// VerifyOTP checks otp and moves to the reset step.
func (r *Recovery) VerifyOTP(ctx context.Context, otp string) error {
	otp = strings.TrimSpace(otp)
	r.mu.Lock()
	if err := r.guard(StepVerify); err != nil {
		r.mu.Unlock()
		return err
	}
	r.message = ""
	if otp == "" {
		r.message = MsgEnterOTP
		r.mu.Unlock()
		return ErrInvalid
	}
	email := r.email
	r.mu.Unlock()

	resp, err := r.client.VerifyOTP(ctx, email, otp)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.message = api.Message(err, MsgVerifyFailed)
		r.logger.Warn("verify otp failed", "err", err)
		return err
	}
	r.otp = otp
	r.step = StepReset
	r.notice = resp.Message
	return nil
}

// ResetPassword sets the new password. On success the wizard moves to
// StepDone and closes itself after the auto-close delay.
func (r *Recovery) ResetPassword(ctx context.Context, password, confirm string) error {
	r.mu.Lock()
	if err := r.guard(StepReset); err != nil {
		r.mu.Unlock()
		return err
	}
	r.message = ""
	switch {
	case password == "" || confirm == "":
		r.message = MsgFillAllFields
	case password != confirm:
		r.message = MsgPasswordMismatch
	case len([]rune(password)) < MinPasswordLength:
		r.message = MsgPasswordShort
	}
	if r.message != "" {
		r.mu.Unlock()
		return ErrInvalid
	}
	email := r.email
	r.mu.Unlock()

	_, err := r.client.ResetPassword(ctx, email, password)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.message = api.Message(err, MsgResetFailed)
		r.logger.Warn("reset password failed", "err", err)
		return err
	}
	r.step = StepDone
	r.notice = MsgResetDone
	r.logger.Info("password reset", "email", email)
	r.closeTimer = time.AfterFunc(r.closeDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.open && r.step == StepDone {
			r.closeLocked()
		}
	})
	return nil
}

// Countdown calls fn with the seconds remaining once per tick until the
// cooldown expires or ctx is done. fn receives 0 on expiry.
func (r *Recovery) Countdown(ctx context.Context, fn func(remaining int)) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		left := r.CooldownRemaining()
		fn(left)
		if left == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
