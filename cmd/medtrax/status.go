package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rashiika/medtrax/internal/session"
	"github.com/rashiika/medtrax/pkg/client"
)

// statusReport is the stored session as shown by `medtrax status`.
type statusReport struct {
	State           string     `json:"state" yaml:"state"`
	Email           string     `json:"email,omitempty" yaml:"email,omitempty"`
	Role            string     `json:"role,omitempty" yaml:"role,omitempty"`
	ProfileComplete bool       `json:"profile_complete" yaml:"profile_complete"`
	Store           string     `json:"store" yaml:"store"`
	APIURL          string     `json:"api_url" yaml:"api_url"`
	HasAccessToken  bool       `json:"has_access_token" yaml:"has_access_token"`
	HasRefreshToken bool       `json:"has_refresh_token" yaml:"has_refresh_token"`
	AccessExpiresAt *time.Time `json:"access_expires_at,omitempty" yaml:"access_expires_at,omitempty"`
	AccessExpired   bool       `json:"access_expired" yaml:"access_expired"`
}

func newStatusCmd(gf *globalFlags) *cobra.Command {
	var output string
	var copyToken bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Long: `Show who is signed in, the profile state and when the access token expires.

Examples:
  medtrax status
  medtrax status --output json
  medtrax status --copy-token`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPortal(*gf)
			if err != nil {
				return err
			}
			defer p.Close()

			sess, err := p.hydrate(cmd.Context())
			if err != nil {
				return err
			}
			report := buildStatus(sess, p.cfg.Store, p.cfg.APIURL, time.Now())
			if err := writeStatus(cmd.OutOrStdout(), report, output); err != nil {
				return err
			}
			if copyToken {
				if sess.AccessToken == "" {
					return errors.New("no access token to copy")
				}
				if err := clipboard.WriteAll(sess.AccessToken); err != nil {
					return fmt.Errorf("copy token: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), dim("access token copied to clipboard"))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	cmd.Flags().BoolVar(&copyToken, "copy-token", false, "copy the access token to the clipboard")
	return cmd
}

func buildStatus(sess session.Session, store, apiURL string, now time.Time) statusReport {
	r := statusReport{
		State:           sess.State.String(),
		Role:            sess.Role.String(),
		ProfileComplete: sess.IsProfileComplete(),
		Store:           store,
		APIURL:          apiURL,
		HasAccessToken:  sess.AccessToken != "",
		HasRefreshToken: sess.RefreshToken != "",
	}
	if sess.User != nil {
		r.Email = sess.User.Email
	}
	if exp, ok := client.TokenExpiry(sess.AccessToken); ok {
		exp = exp.UTC()
		r.AccessExpiresAt = &exp
		r.AccessExpired = !now.Before(exp)
	}
	return r
}

func writeStatus(w io.Writer, r statusReport, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		writeStatusText(w, r)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func writeStatusText(w io.Writer, r statusReport) {
	row := func(label, value string) {
		fmt.Fprintf(w, "  %s %s\n", dim(fmt.Sprintf("%-16s", label)), value)
	}
	fmt.Fprintln(w)
	row("state", r.State)
	if r.Email != "" {
		row("user", r.Email)
	}
	if r.Role != "" {
		row("role", r.Role)
	}
	row("profile", map[bool]string{true: "complete", false: "incomplete"}[r.ProfileComplete])
	row("store", r.Store)
	row("api", r.APIURL)
	switch {
	case r.AccessExpiresAt == nil && r.HasAccessToken:
		row("access token", "present (no expiry)")
	case r.AccessExpiresAt == nil:
		row("access token", "none")
	case r.AccessExpired:
		row("access token", warn("expired "+r.AccessExpiresAt.Format(time.RFC3339)))
	default:
		row("access token", "valid until "+r.AccessExpiresAt.Format(time.RFC3339))
	}
	row("refresh token", map[bool]string{true: "present", false: "none"}[r.HasRefreshToken])
	fmt.Fprintln(w)
}
