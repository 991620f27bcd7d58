// Package guard provides request admission control for the bridge surface:
// a shared-secret check and a caller IP allow-list.
package guard

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// ErrAccessDenied is returned for any failed admission check. It carries no
// detail about which check failed.
var ErrAccessDenied = errors.New("access denied")

// Guard evaluates the shared-secret and origin checks for every request.
// Configuration is fixed at construction; a Guard is safe for concurrent use.
type Guard struct {
	tokenHash [sha256.Size]byte
	hasToken  bool
	allowlist map[string]struct{}
	logger    *slog.Logger
}

// New creates a Guard for the given shared token and exact-match origin
// allow-list. A missing token or an empty allow-list rejects every request
// (fail closed).
func New(log *slog.Logger, token string, allowlist []string) *Guard {
	if log == nil {
		log = slog.Default()
	}
	g := &Guard{
		allowlist: make(map[string]struct{}, len(allowlist)),
		logger:    log.With(slog.String("component", "guard")),
	}
	if token != "" {
		g.tokenHash = sha256.Sum256([]byte(token))
		g.hasToken = true
	}
	for _, origin := range allowlist {
		g.allowlist[origin] = struct{}{}
	}
	return g
}

// Admit runs both checks in order and returns ErrAccessDenied if either
// fails. It has no side effects on failure.
func (g *Guard) Admit(token, origin string) error {
	if !g.hasToken || !secureCompare(g.tokenHash, token) {
		return ErrAccessDenied
	}
	if _, ok := g.allowlist[origin]; !ok {
		return ErrAccessDenied
	}
	return nil
}

// secureCompare compares the candidate against the configured token hash.
// Hashing the candidate first makes the comparison length-independent, so
// rejection time does not leak how much of the secret matched.
func secureCompare(expected [sha256.Size]byte, candidate string) bool {
	candidateHash := sha256.Sum256([]byte(candidate))
	return subtle.ConstantTimeCompare(expected[:], candidateHash[:]) == 1
}

// Middleware returns an echo middleware that admits or rejects every
// request before any handler runs. Requests matched by skipper bypass the
// guard (liveness endpoints).
//
// The origin is the direct connection peer. Forwarding headers such as
// X-Forwarded-For are caller-controlled and are never consulted, so a
// forged header cannot impersonate a listed origin.
func Middleware(g *Guard, skipper middleware.Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}
			token := c.Request().Header.Get(echo.HeaderAuthorization)
			if err := g.Admit(token, remoteHost(c.Request().RemoteAddr)); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "access denied")
			}
			return next(c)
		}
	}
}

// remoteHost strips the port from a net.Conn-style remote address.
func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
