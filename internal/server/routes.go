package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  s.uptime(),
			"service": s.name,
			"version": s.cfg.Version,
		})
	})

	s.router.GET("/health/:component", func(c *gin.Context) {
		switch c.Param("component") {
		case "bridge":
			status, code := "ok", http.StatusOK
			if !s.bridge.Available() {
				status, code = "unavailable", http.StatusServiceUnavailable
			}
			c.JSON(code, gin.H{"status": status, "uptime": s.uptime(), "service": "bridge"})
		case "session":
			c.JSON(http.StatusOK, gin.H{
				"status":  s.session.State().String(),
				"uptime":  s.uptime(),
				"service": "session",
			})
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown component"})
		}
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/session", func(c *gin.Context) {
		sess := s.session.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"state":   s.session.State().String(),
			"session": sess,
			"chain":   sess.ChainLabel(),
		})
	})

	s.router.POST("/session/connect", func(c *gin.Context) {
		sess, err := s.session.Connect(c.Request.Context(), s.cfg.Dapp)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": sess})
	})

	s.router.POST("/session/refresh", func(c *gin.Context) {
		sess, err := s.session.RefreshStatus(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": sess})
	})

	s.router.POST("/session/disconnect", func(c *gin.Context) {
		if err := s.session.Disconnect(c.Request.Context()); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": s.session.State().String()})
	})

	s.router.GET("/pending", func(c *gin.Context) {
		pending := s.bridge.Pending()
		out := make([]gin.H, 0, len(pending))
		for _, p := range pending {
			out = append(out, gin.H{
				"id":       p.ID,
				"method":   p.Method,
				"age":      s.since(p.CreatedAt),
				"deadline": p.Deadline,
			})
		}
		c.JSON(http.StatusOK, gin.H{"available": s.bridge.Available(), "pending": out})
	})
}

func (s *Server) uptime() string {
	return s.since(s.started)
}
