// Package server exposes the client's wallet session over HTTP for local
// tooling: health, prometheus metrics, the session snapshot and the bridge's
// outstanding requests.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/observability"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/wallet"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Session is the wallet session the server reports on and drives.
type Session interface {
	Snapshot() wallet.Session
	State() wallet.State
	OnChange(fn func(wallet.Session)) func()
	Connect(ctx context.Context, meta wallet.DappMetadata) (wallet.Session, error)
	RefreshStatus(ctx context.Context) (wallet.Session, error)
	Disconnect(ctx context.Context) error
}

// Bridge is the request correlator behind the session.
type Bridge interface {
	Available() bool
	Pending() []rpc.PendingRequest
}

var (
	_ Session = (*wallet.Manager)(nil)
	_ Bridge  = (*rpc.Correlator)(nil)
)

type Config struct {
	Service      string
	Version      string
	AllowOrigins []string
	// Dapp is sent on POST /session/connect.
	Dapp wallet.DappMetadata
}

type Server struct {
	name    string
	cfg     Config
	session Session
	bridge  Bridge
	router  *gin.Engine
	started time.Time
	unwatch func()
}

func New(session Session, bridge Bridge, cfg Config) *Server {
	if strings.TrimSpace(cfg.Service) == "" {
		cfg.Service = "ribbitctl"
	}
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = "0.0.1"
	}
	s := &Server{
		name:    cfg.Service,
		cfg:     cfg,
		session: session,
		bridge:  bridge,
		started: time.Now(),
	}
	observability.RegisterMetrics()
	observability.RecordSession(session.Snapshot().Connected)
	s.unwatch = session.OnChange(func(sess wallet.Session) {
		observability.RecordSession(sess.Connected)
	})
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(observability.HTTPObserver(log.Logger, s.name))
	if origins := trimmed(cfg.AllowOrigins); len(origins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops mirroring session changes into metrics.
func (s *Server) Close() {
	if s.unwatch != nil {
		s.unwatch()
	}
}

// Run serves on addr until ctx ends.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", addr).Str("service", s.name).Msg("server: listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// statusFor maps client errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, protocol.ErrBridgeUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, protocol.ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, protocol.ErrUserRejected):
		return http.StatusForbidden
	case errors.Is(err, protocol.ErrNotConnected), errors.Is(err, wallet.ErrConnectInProgress):
		return http.StatusConflict
	case errors.Is(err, wallet.ErrInvalidMetadata):
		return http.StatusBadRequest
	case errors.Is(err, protocol.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s *Server) since(t time.Time) string {
	return time.Since(t).Round(time.Millisecond).String()
}
