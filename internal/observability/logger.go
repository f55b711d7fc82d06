package observability

import (
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the runtime logger and tags it with app. Output goes
// to stderr so stdout stays free for command output and native frames.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
