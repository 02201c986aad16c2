package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rashiika/medtrax/internal/stubserver"
	"github.com/rashiika/medtrax/pkg/logger"
)

func newServeStubCmd(gf *globalFlags) *cobra.Command {
	var addr string
	var rotate bool
	cmd := &cobra.Command{
		Use:   "serve-stub",
		Short: "Run the in-memory portal backend for local development",
		Long: fmt.Sprintf(`Run a local backend with two seeded accounts:

  %s / %s   (doctor, profile complete)
  %s / %s  (patient, profile incomplete)`,
			stubserver.DoctorEmail, stubserver.DoctorPassword,
			stubserver.PatientEmail, stubserver.PatientPassword),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*gf)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.StubAddr
			}
			log := logger.Init(cfg.LogLevel, cfg.LogFormat, os.Stderr)

			srv, err := stubserver.New(stubserver.Config{
				SigningKey:     []byte(cfg.StubSigningKey),
				AccessTTL:      cfg.AccessTTL(),
				RefreshTTL:     cfg.RefreshTTL(),
				AllowedOrigins: cfg.AllowedOrigins(),
				RotateRefresh:  rotate,
				Logger:         log,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default MEDTRAX_STUB_ADDR)")
	cmd.Flags().BoolVar(&rotate, "rotate-refresh", false, "issue a new refresh token on every refresh")
	return cmd
}
