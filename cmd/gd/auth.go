package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/workbay/garagedesk/internal/auth"
	"github.com/workbay/garagedesk/internal/nav"
	"github.com/workbay/garagedesk/internal/session"
)

// maxAttempts bounds how often an interactive step is re-asked.
const maxAttempts = 3

func newLoginCmd() *cobra.Command {
	var (
		configPath string
		email      string
		kind       string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a garage or an individual user",
		Long:  "Signs in against the garage API and stores the session locally. The password is always prompted for.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, configPath, email, session.AccountKind(kind))
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (prompted if empty)")
	cmd.Flags().StringVarP(&kind, "kind", "k", string(session.Organization), "account kind (organization, individual)")
	return cmd
}

func runLogin(cmd *cobra.Command, configPath, email string, kind session.AccountKind) error {
	out := cmd.OutOrStdout()
	if !kind.Valid() {
		return fmt.Errorf("invalid --kind %q (must be organization or individual)", kind)
	}

	a, err := loadApp(cmd, configPath, nav.Login())
	if err != nil {
		return err
	}
	defer a.Close()

	flow := auth.NewFlow(a.client, a.sessions, a.nav, a.logger)
	if err := flow.Restore(); err != nil {
		return err
	}
	if flow.State() == auth.LoggedIn {
		return printAlreadyLoggedIn(out, a.sessions)
	}

	p := newPrompter(cmd)
	if email == "" {
		if email, err = p.line("Email: "); err != nil && !errors.Is(err, errNoInput) {
			return err
		}
	}
	password, err := p.secret("Password: ")
	if err != nil && !errors.Is(err, errNoInput) {
		return err
	}

	if err := flow.Login(cmd.Context(), email, password, kind); err != nil {
		fmt.Fprintln(out, flow.Message())
		return err
	}
	sess, err := a.sessions.Get()
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if sess == nil {
		return errors.New("read session: no session stored after login")
	}
	fmt.Fprintf(out, "Logged in as %s (%s)\n", sess.DisplayName, sess.AccountKind)
	return nil
}

// printAlreadyLoggedIn reports the stored account for a login that has
// nothing to do.
func printAlreadyLoggedIn(out io.Writer, sessions *session.Manager) error {
	sess, err := sessions.Get()
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	name := "the stored account"
	if sess != nil && sess.DisplayName != "" {
		name = sess.DisplayName
	}
	fmt.Fprintf(out, "Already logged in as %s (run \"gd logout\" first)\n", name)
	return nil
}

func newLogoutCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runLogout(cmd *cobra.Command, configPath string) error {
	a, err := loadApp(cmd, configPath, nav.JobCardNew())
	if err != nil {
		return err
	}
	defer a.Close()

	ok, err := a.sessions.IsAuthenticated()
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
		return nil
	}
	flow := auth.NewFlow(a.client, a.sessions, a.nav, a.logger)
	if err := flow.Restore(); err != nil {
		return err
	}
	flow.Logout(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func newWhoamiCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "whoami",
		Aliases: []string{"status"},
		Short:   "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runWhoami(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	a, err := loadApp(cmd, configPath, nav.Login())
	if err != nil {
		return err
	}
	defer a.Close()

	ok, err := a.sessions.IsAuthenticated()
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if !ok {
		fmt.Fprintln(out, "Not logged in")
		return nil
	}
	sess, err := a.sessions.Get()
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", sess.DisplayName)
	fmt.Fprintf(w, "Kind:\t%s\n", sess.AccountKind)
	fmt.Fprintf(w, "Account:\t%s\n", sess.AccountID)
	if sess.AccountKind == session.Organization {
		if org, err := a.sessions.Organization(); err == nil && org.Email != "" {
			fmt.Fprintf(w, "Garage email:\t%s\n", org.Email)
		}
	}
	fmt.Fprintf(w, "API:\t%s\n", a.cfg.API.BaseURL)
	return w.Flush()
}

func newForgotPasswordCmd() *cobra.Command {
	var (
		configPath string
		email      string
	)

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Reset a forgotten password with an emailed OTP",
		Long: "Sends a one-time password to the account email, verifies it and sets a new password.\n" +
			"At the OTP prompt, enter \"r\" to resend the code once the cooldown has passed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForgotPassword(cmd, configPath, email)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (prompted if empty)")
	return cmd
}

func runForgotPassword(cmd *cobra.Command, configPath, email string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	a, err := loadApp(cmd, configPath, nav.Login())
	if err != nil {
		return err
	}
	defer a.Close()

	rec := auth.NewRecovery(a.client, auth.WithLogger(a.logger))
	rec.Open()
	defer rec.Cancel()
	p := newPrompter(cmd)

	// Step 1: request the OTP.
	if err := retry(out, rec, func() error {
		if email == "" {
			if email, err = p.line("Email: "); err != nil {
				return err
			}
		}
		err := rec.SendOTP(ctx, email)
		if err != nil {
			email = ""
		}
		return err
	}); err != nil {
		return err
	}
	fmt.Fprintln(out, rec.Notice())

	// Step 2: verify it, with "r" to resend.
	if err := retry(out, rec, func() error {
		otp, err := p.line("OTP (or r to resend): ")
		if err != nil {
			return err
		}
		if strings.EqualFold(otp, "r") {
			return resend(cmd, rec)
		}
		return rec.VerifyOTP(ctx, otp)
	}); err != nil {
		return err
	}

	// Step 3: new password.
	if err := retry(out, rec, func() error {
		pw, err := p.secret("New password: ")
		if err != nil {
			return err
		}
		confirm, err := p.secret("Confirm password: ")
		if err != nil {
			return err
		}
		return rec.ResetPassword(ctx, pw, confirm)
	}); err != nil {
		return err
	}
	fmt.Fprintln(out, rec.Notice())
	return nil
}

// errResent signals that the OTP step should be asked again after a resend.
var errResent = errors.New("otp resent")

// resend waits out the cooldown, printing the remaining seconds, then sends
// a new OTP.
func resend(cmd *cobra.Command, rec *auth.Recovery) error {
	out := cmd.OutOrStdout()
	if !rec.CanResend() {
		rec.Countdown(cmd.Context(), func(left int) {
			if left > 0 {
				fmt.Fprintf(out, "\rResend available in %2ds", left)
			} else {
				fmt.Fprint(out, "\r                        \r")
			}
		})
	}
	sent, err := rec.Resend(cmd.Context())
	if err != nil {
		return err
	}
	if sent {
		fmt.Fprintln(out, rec.Notice())
	}
	return errResent
}

// retry runs step until it succeeds. Input errors and API failures print the
// wizard's message and ask again, up to maxAttempts times.
func retry(out io.Writer, rec *auth.Recovery, step func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; {
		err = step()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errResent):
			continue
		case errors.Is(err, errNoInput), errors.Is(err, auth.ErrWrongStep), errors.Is(err, auth.ErrClosed):
			return err
		}
		if msg := rec.Message(); msg != "" {
			fmt.Fprintln(out, msg)
		}
		attempt++
	}
	return err
}
