// Package stubserver is a development backend that implements the portal's
// auth contract in memory. It is used by `medtrax serve-stub` and by
// end-to-end tests.
package stubserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Config configures a stub Server.
type Config struct {
	SigningKey     []byte
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	AllowedOrigins []string
	// RotateRefresh makes /token/refresh/ return a new refresh token too.
	RotateRefresh bool
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// Now is the clock used for token issue and expiry. Defaults to time.Now.
	Now    func() time.Time
	Logger zerolog.Logger
}

// Server is the in-memory portal backend.
type Server struct {
	cfg      Config
	accounts *accountStore
	tokens   *tokenIssuer
	metrics  *metrics
	engine   *gin.Engine
	log      zerolog.Logger
}

// New creates a Server with the demo accounts seeded.
func New(cfg Config) (*Server, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("stubserver.New: signing key is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 5 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{
		cfg:      cfg,
		accounts: newAccountStore(cfg.BcryptCost),
		tokens: &tokenIssuer{
			key:        cfg.SigningKey,
			accessTTL:  cfg.AccessTTL,
			refreshTTL: cfg.RefreshTTL,
			now:        cfg.Now,
		},
		metrics: newMetrics(),
		log:     cfg.Logger.With().Str("component", "stubserver").Logger(),
	}
	if err := s.accounts.seed(cfg.Now()); err != nil {
		return nil, fmt.Errorf("stubserver.New: seed: %w", err)
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("stub backend listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("stubserver.Run: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stubserver.Run: shutdown: %w", err)
	}
	s.log.Info().Msg("stub backend stopped")
	return nil
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.metrics.middleware())

	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           5 * time.Minute,
		}))
	}

	r.POST("/login/", s.login)
	r.POST("/token/refresh/", s.refresh)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	api := r.Group("/")
	api.Use(s.authMiddleware())
	{
		api.POST("/complete-doctor-profile/", s.completeDoctorProfile)
		api.POST("/complete-patient-profile/", s.completePatientProfile)
		api.GET("/doctor/dashboard/", s.dashboard)
		api.GET("/patient/dashboard/", s.dashboard)
		api.GET("/appointments/", s.listAppointments)
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
