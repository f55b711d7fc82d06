// Package auth gates access to the local wallet bridge with a pairing token.
//
// A dApp and the wallet peer share one token out of band. Policy and storage
// are left to the caller.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// PairingQueryParam carries the token for clients that cannot set headers,
// such as browser websocket dials.
const PairingQueryParam = "pairing_token"

// Validator validates a pairing token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts a single shared token. An empty Token denies everything.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// NewPairingToken returns a fresh random token.
func NewPairingToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TokenFromRequest reads the pairing token from header, falling back to the
// query parameter.
func TokenFromRequest(r *http.Request, header string) string {
	if r == nil {
		return ""
	}
	if tok := strings.TrimSpace(r.Header.Get(header)); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.URL.Query().Get(PairingQueryParam))
}

// RequirePairing aborts requests whose token v rejects. A nil v lets every
// request through.
func RequirePairing(v Validator, header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			c.Next()
			return
		}
		if err := v.Validate(TokenFromRequest(c.Request, header)); err != nil {
			log.Warn().Str("path", c.Request.URL.Path).Str("client_ip", c.ClientIP()).Msg("auth: pairing refused")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}
