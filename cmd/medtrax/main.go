package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rashiika/medtrax/internal/config"
	"github.com/rashiika/medtrax/internal/session"
	"github.com/rashiika/medtrax/internal/tokenstore"
	"github.com/rashiika/medtrax/internal/tui"
	"github.com/rashiika/medtrax/pkg/client"
	"github.com/rashiika/medtrax/pkg/domain"
	"github.com/rashiika/medtrax/pkg/logger"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	envFiles []string
	apiURL   string
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var gf globalFlags
	root := &cobra.Command{
		Use:   "medtrax [route]",
		Short: "Patient and doctor portal in your terminal",
		Long: `Open the medtrax portal. With no route, you land on your role's dashboard,
or on the sign-in form when no session is stored.

Examples:
  medtrax
  medtrax /doctor/dashboard
  medtrax /complete-profile`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := domain.Route("/")
			if len(args) == 1 {
				start = domain.Route(args[0])
			}
			return runTUI(cmd.Context(), gf, start)
		},
	}
	root.PersistentFlags().StringSliceVar(&gf.envFiles, "env-file", nil, ".env files to load (default .env)")
	root.PersistentFlags().StringVar(&gf.apiURL, "api-url", "", "portal backend URL (overrides MEDTRAX_API_URL)")
	root.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "log level (overrides MEDTRAX_LOG_LEVEL)")

	root.AddCommand(
		newLoginCmd(&gf),
		newLogoutCmd(&gf),
		newStatusCmd(&gf),
		newServeStubCmd(&gf),
		newVersionCmd(),
	)
	return root
}

func loadConfig(gf globalFlags) (*config.Config, error) {
	cfg, err := config.Load(gf.envFiles...)
	if err != nil {
		return nil, err
	}
	if gf.apiURL != "" {
		cfg.APIURL = gf.apiURL
	}
	if gf.logLevel != "" {
		cfg.LogLevel = gf.logLevel
	}
	return cfg, nil
}

// portal is the wired client side: store, session machine and API client.
type portal struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   *tokenstore.Store
	machine *session.Machine
	api     *client.Client
	auth    *session.Authenticator
	closers []io.Closer
}

func newPortal(gf globalFlags) (*portal, error) {
	cfg, err := loadConfig(gf)
	if err != nil {
		return nil, err
	}
	p := &portal{cfg: cfg}

	w, closer, err := openLogWriter(cfg.LogPath())
	if err != nil {
		return nil, err
	}
	if closer != nil {
		p.closers = append(p.closers, closer)
	}
	p.log = logger.Init(cfg.LogLevel, cfg.LogFormat, w)

	backend, err := newBackend(cfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	if c, ok := backend.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}

	p.store = tokenstore.New(backend, p.log)
	p.machine = session.NewMachine(p.store, p.log)
	p.api = client.New(cfg.APIURL, p.machine,
		client.WithTimeout(cfg.Timeout()),
		client.WithLogger(p.log),
		client.WithSessionExpiredHandler(p.machine.ForceLogout),
	)
	p.auth = session.NewAuthenticator(p.api, p.machine, p.log)
	return p, nil
}

// hydrate restores the stored session for one-shot commands.
func (p *portal) hydrate(ctx context.Context) (session.Session, error) {
	if _, err := p.machine.Hydrate(ctx); err != nil {
		return session.Session{}, fmt.Errorf("restore session: %w", err)
	}
	return p.machine.Session(), nil
}

func (p *portal) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		_ = p.closers[i].Close() //nolint:errcheck // best-effort shutdown
	}
}

// newBackend picks the token store backend named in cfg.
func newBackend(cfg *config.Config) (tokenstore.Backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return tokenstore.NewMemoryBackend(), nil
	case config.StoreRedis:
		rb, err := tokenstore.NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("connect token store: %w", err)
		}
		return rb, nil
	default:
		return tokenstore.NewFileBackend(cfg.StoreDir), nil
	}
}

// openLogWriter opens the log destination. "-" means stderr.
func openLogWriter(path string) (io.Writer, io.Closer, error) {
	if path == "-" {
		return os.Stderr, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}

func runTUI(ctx context.Context, gf globalFlags, start domain.Route) error {
	p, err := newPortal(gf)
	if err != nil {
		return err
	}
	defer p.Close()

	app := tui.NewApp(p.machine, p.auth, p.api, tui.Options{
		PortalURL: p.cfg.PortalURL,
		Start:     start,
	})
	prog := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	p.machine.OnChange(tui.SessionListener(prog.Send))
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the medtrax version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "medtrax "+version)
		},
	}
}
