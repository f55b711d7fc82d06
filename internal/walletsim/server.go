package walletsim

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/auth"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/bridge"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/observability"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/txn"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const serviceName = "walletsim"

type ServerConfig struct {
	// PairingToken gates /ws and the control routes; empty disables pairing.
	PairingToken string
	AllowOrigins []string
	RPC          rpc.Config
}

// Server exposes a Wallet over websocket the way the extension's bridge
// would.
type Server struct {
	wallet    *Wallet
	cfg       ServerConfig
	validator auth.Validator
	router    *gin.Engine
	started   time.Time
	origins   map[string]bool
}

func NewServer(w *Wallet, cfg ServerConfig) *Server {
	s := &Server{
		wallet:  w,
		cfg:     cfg,
		started: time.Now(),
		origins: make(map[string]bool),
	}
	if strings.TrimSpace(cfg.PairingToken) != "" {
		s.validator = auth.StaticToken{Token: strings.TrimSpace(cfg.PairingToken)}
	}
	for _, origin := range cfg.AllowOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			s.origins[trimmed] = true
		}
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.HTTPObserver(log.Logger, serviceName))
	if len(s.origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: originList(s.origins),
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type", bridge.PairingTokenHeader},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": serviceName,
			"peers":   s.wallet.Peers(),
		})
	})

	// ledger-compatible account view so the simulator can stand in for the RPC node
	r.GET("/accounts/:address", s.handleAccount)

	paired := r.Group("/", auth.RequirePairing(s.validator, bridge.PairingTokenHeader))
	paired.GET("/ws", s.handleWS)
	paired.GET("/account", func(c *gin.Context) {
		seq, _ := s.wallet.SequenceNumber(c.Request.Context(), s.wallet.Address())
		c.JSON(http.StatusOK, gin.H{
			"address":   s.wallet.Address().String(),
			"sessionId": s.wallet.SessionID(),
			"chainId":   s.wallet.ChainID(),
			"sequence":  seq,
			"submitted": s.wallet.Submitted(),
		})
	})
	paired.POST("/announce", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"delivered": s.wallet.Announce(c.Request.Context())})
	})
	paired.POST("/policy", func(c *gin.Context) {
		var body struct {
			AutoApprove *bool `json:"autoApprove"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.AutoApprove == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "autoApprove is required"})
			return
		}
		s.wallet.SetAutoApprove(*body.AutoApprove)
		c.JSON(http.StatusOK, gin.H{"autoApprove": *body.AutoApprove})
	})
	return r
}

func (s *Server) handleWS(c *gin.Context) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("walletsim: websocket upgrade failed")
		return
	}
	log.Info().Str("remote", c.Request.RemoteAddr).Msg("walletsim: dapp attached")

	t := bridge.NewWSTransport(conn, s.cfg.RPC)
	go func() {
		defer t.Close()
		_ = s.wallet.Serve(context.Background(), t)
		log.Info().Str("remote", c.Request.RemoteAddr).Msg("walletsim: dapp detached")
	}()
}

func (s *Server) handleAccount(c *gin.Context) {
	addr, err := txn.ParseAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	seq, err := s.wallet.SequenceNumber(c.Request.Context(), addr)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "account not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sequence_number":    strconv.FormatUint(seq, 10),
		"authentication_key": addr.String(),
	})
}

// checkOrigin admits non-browser clients and the configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.origins) == 0 || s.origins["*"] {
		return true
	}
	return s.origins[origin]
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
	log.Info().Str("addr", addr).Str("account", s.wallet.Address().String()).Msg("walletsim: listening")

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

func originList(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for o := range set {
		out = append(out, o)
	}
	return out
}
