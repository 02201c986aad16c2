package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rashiika/medtrax/internal/session"
	"github.com/rashiika/medtrax/pkg/client"
	"github.com/rashiika/medtrax/pkg/domain"
)

var errNotInteractive = errors.New("email and password are required when stdin is not a terminal")

func newLoginCmd(gf *globalFlags) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in and store the session. Missing credentials are prompted for
when running in a terminal.

Examples:
  medtrax login
  medtrax login --email doctor@medtrax.dev`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPortal(*gf)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx := cmd.Context()
			sess, err := p.hydrate(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if sess.IsProfileComplete() {
				printSignedIn(out, sess)
				fmt.Fprintln(out, dim("Already signed in. Run `medtrax logout` to switch accounts."))
				return nil
			}
			if email == "" && sess.User != nil {
				email = sess.User.Email
			}
			if email == "" || password == "" {
				if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
					return errNotInteractive
				}
				if err := promptCredentials(&email, &password); err != nil {
					return err
				}
			}
			return login(ctx, out, p.auth, p.machine, email, password)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

// promptCredentials asks for whichever of email and password is missing.
func promptCredentials(email, password *string) error {
	var fields []huh.Field
	if *email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Placeholder("you@example.com").
			Value(email).
			Validate(func(s string) error {
				if !strings.Contains(s, "@") {
					return errors.New("enter a valid email")
				}
				return nil
			}))
	}
	fields = append(fields, huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(password).
		Validate(func(s string) error {
			if s == "" {
				return errors.New("password is required")
			}
			return nil
		}))

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

func login(ctx context.Context, out io.Writer, auth *session.Authenticator, m *session.Machine, email, password string) error {
	res, err := auth.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return errors.New(client.Message(err))
	}
	printSignedIn(out, m.Session())
	if res.Outcome == client.LoginIncomplete {
		fmt.Fprintln(out, warn("Your profile is incomplete.")+" "+dim("Finish it with: medtrax "+string(domain.RouteCompleteProfile)))
	}
	return nil
}

func newLogoutCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPortal(*gf)
			if err != nil {
				return err
			}
			defer p.Close()
			return logout(cmd.Context(), cmd.OutOrStdout(), p)
		},
	}
}

func logout(ctx context.Context, out io.Writer, p *portal) error {
	sess, err := p.hydrate(ctx)
	if err != nil {
		return err
	}
	if !sess.IsAuthenticated() {
		// Leftover tokens from a half-written session are dropped too.
		p.store.Clear(ctx)
		fmt.Fprintln(out, "Already signed out.")
		return nil
	}
	if err := p.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Signed out.")
	return nil
}
