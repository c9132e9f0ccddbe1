package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/relaxlab/qexp/server/internal/config"
)

var (
	// ErrMissingKey is returned when a request carries no key header.
	ErrMissingKey = errors.New("auth: missing api key")

	// ErrInvalidKey is returned when the key does not match.
	ErrInvalidKey = errors.New("auth: invalid api key")
)

// Guard holds the key check shared by the gRPC receiver and the HTTP
// listener. A Guard with no key allows everything.
type Guard struct {
	header string
	key    string
	open   map[string]bool
}

// NewGuard builds a Guard from the server auth section. Only mode "apikey"
// with a non-empty key enforces anything. open lists HTTP paths and full
// gRPC method names that are never checked.
func NewGuard(cfg config.AuthConfig, open ...string) *Guard {
	g := &Guard{
		// gRPC lowercases metadata keys; net/http canonicalizes either way.
		header: strings.ToLower(cfg.EffectiveHeader()),
		open:   make(map[string]bool, len(open)),
	}
	if cfg.Mode == "apikey" {
		g.key = cfg.Key()
	}
	for _, o := range open {
		g.open[o] = true
	}
	return g
}

// Enabled reports whether the guard rejects calls without a valid key.
func (g *Guard) Enabled() bool {
	return g.key != ""
}

// Header returns the lowercase header or metadata name the key is read from.
func (g *Guard) Header() string {
	return g.header
}

// Check validates got for target, an HTTP path or gRPC full method name.
func (g *Guard) Check(target, got string) error {
	if !g.Enabled() || g.open[target] {
		return nil
	}
	if got == "" {
		return ErrMissingKey
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(g.key)) != 1 {
		return ErrInvalidKey
	}
	return nil
}
