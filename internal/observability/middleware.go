package observability

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// quietPaths are polled by probes and scrapers and only log at trace.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// HTTPObserver logs and counts every request handled by service. Websocket
// upgrades are logged when the bridge session ends, so their duration is
// the lifetime of the connection.
func HTTPObserver(logger zerolog.Logger, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		elapsed := time.Since(start)
		RecordHTTPRequest(service, c.Request.Method, path, status, elapsed)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case quietPaths[path]:
			event = logger.Trace()
		default:
			event = logger.Debug()
		}
		msg := "http request"
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			msg = "bridge connection closed"
		}
		event.
			Str("service", service).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg(msg)
	}
}
