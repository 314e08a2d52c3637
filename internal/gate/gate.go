package gate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/domain"
	"github.com/spec-kit/guild-console/internal/session"
)

// Decision enumerates what a protected surface may do.
type Decision int

const (
	// Checking means inputs are still pending; render a neutral
	// placeholder and nothing of the protected content.
	Checking Decision = iota
	Allow
	RedirectLogin
	RedirectDenied
)

// String renders the decision for logs.
func (d Decision) String() string {
	switch d {
	case Checking:
		return "checking"
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDenied:
		return "redirect_denied"
	default:
		return "unknown"
	}
}

// Navigator performs a redirect. Exactly two destinations exist for
// authorization failures: the login surface and the denied surface.
type Navigator interface {
	Navigate(route string)
}

// SessionSource is the slice of the session provider the gate reads.
type SessionSource interface {
	Current() session.SessionState
}

// PermissionSource is the slice of the guild permission resolver the gate
// reads.
type PermissionSource interface {
	Resolve(identity *domain.Identity, guildID string) domain.PermissionLevel
	Pending(guildID string) bool
}

// Gate guards protected surfaces. It decides render versus redirect from
// the session provider's and permission resolver's outputs, and owns the
// redirect side effect: at most one navigation per resolution, and never a
// speculative render of protected content.
type Gate struct {
	sessions    SessionSource
	permissions PermissionSource
	nav         Navigator
	logger      *zap.Logger

	redirected bool
}

// NewGate builds a gate. One gate instance guards one surface resolution;
// repeated Evaluate calls on the same stable inputs are idempotent.
func NewGate(sessions SessionSource, permissions PermissionSource, nav Navigator, logger *zap.Logger) *Gate {
	return &Gate{sessions: sessions, permissions: permissions, nav: nav, logger: logger}
}

// Evaluate decides for a surface requiring required in guildID scope. An
// empty guildID means a tenant-agnostic surface.
func (g *Gate) Evaluate(required domain.PermissionLevel, guildID string) Decision {
	if required <= domain.LevelPublicData {
		return Allow
	}

	state := g.sessions.Current()
	if state.State == session.StateLoading {
		return Checking
	}

	if state.State == session.StateAnonymous {
		g.redirect(session.SurfaceLogin, RedirectLogin)
		return RedirectLogin
	}

	if guildID != "" && g.permissions.Pending(guildID) {
		return Checking
	}

	held := g.permissions.Resolve(state.Identity, guildID)
	if !domain.HasAccess(held, required) {
		// Carry the required level as diagnostic context for the surface.
		g.redirect(fmt.Sprintf("%s?required=%s", session.SurfaceDenied, required), RedirectDenied)
		return RedirectDenied
	}

	return Allow
}

func (g *Gate) redirect(route string, decision Decision) {
	if g.redirected {
		return
	}
	g.redirected = true
	g.logger.Info("access gate redirecting",
		zap.Stringer("decision", decision), zap.String("route", route))
	g.nav.Navigate(route)
}
