package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/domain"
	"github.com/spec-kit/guild-console/internal/silentauth"
	apperrors "github.com/spec-kit/guild-console/pkg/util/errorutil"
)

// Surfaces that render before a session can exist. Bootstrapping on them
// resolves Anonymous immediately, which is what breaks the redirect loop.
const (
	SurfaceLogin  = "/login"
	SurfaceDenied = "/denied"
)

// State enumerates the session machine's resolution.
type State int

const (
	StateLoading State = iota
	StateAuthenticated
	StateAnonymous
)

// String renders the state for logs.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// SessionState is the bootstrapper's output. Identity is set only when
// State is StateAuthenticated.
type SessionState struct {
	State    State
	Identity *domain.Identity
}

// Navigation describes the entry context of this client run: which surface
// is being opened and, on a login return, the one-time credential handoff
// already stripped from anything visible by the landing route.
type Navigation struct {
	Route string
	Token string
}

// IdentityAPI is the slice of the backend client the provider needs.
type IdentityAPI interface {
	Me(ctx context.Context) (*domain.Identity, error)
	Logout(ctx context.Context) error
}

// Reauthenticator is the silent side channel. Attempt never errors; it
// reports exactly one outcome per call.
type Reauthenticator interface {
	Attempt(ctx context.Context) <-chan silentauth.Outcome
}

// Provider owns the session state for one client run. It is the single
// writer: all mutation funnels through Bootstrap and Logout, and consumers
// read through Current. It never navigates; redirecting is the gate's job.
type Provider struct {
	store  Store
	api    IdentityAPI
	silent Reauthenticator
	logger *zap.Logger
	bound  time.Duration

	state     SessionState
	attempted bool
}

// NewProvider builds the session provider. bound is the upper limit on a
// bootstrap that waits for silent reauthentication.
func NewProvider(store Store, api IdentityAPI, silent Reauthenticator, bound time.Duration, logger *zap.Logger) *Provider {
	return &Provider{
		store:  store,
		api:    api,
		silent: silent,
		logger: logger,
		bound:  bound,
		state:  SessionState{State: StateLoading},
	}
}

// Current returns the session state as last resolved. Before Bootstrap it
// reports StateLoading.
func (p *Provider) Current() SessionState {
	return p.state
}

// Bootstrap establishes the session for this run.
func (p *Provider) Bootstrap(ctx context.Context, nav Navigation) SessionState {
	if nav.Token != "" {
		if err := p.store.SetCredential(nav.Token); err != nil {
			p.logger.Error("failed to persist handoff token", zap.Error(err))
		}
	}

	if nav.Route == SurfaceLogin || nav.Route == SurfaceDenied {
		return p.resolve(SessionState{State: StateAnonymous})
	}

	identity, err := p.identify(ctx)
	if err == nil {
		return p.resolve(SessionState{State: StateAuthenticated, Identity: identity})
	}

	if !apperrors.IsUnauthorized(err) {
		p.logger.Warn("identity call failed", zap.Error(err))
		return p.resolve(SessionState{State: StateAnonymous})
	}

	if p.attempted {
		return p.resolve(SessionState{State: StateAnonymous})
	}
	p.attempted = true

	return p.resolve(p.recover(ctx))
}

// Logout invalidates the backend session and deletes the local credential
// regardless of the backend's answer.
func (p *Provider) Logout(ctx context.Context) error {
	if err := p.api.Logout(ctx); err != nil {
		p.logger.Warn("backend logout failed", zap.Error(err))
	}
	err := p.store.ClearCredential()
	p.state = SessionState{State: StateAnonymous}
	return err
}

// identify calls the backend identity endpoint with whatever credential
// the store holds. A credential that is a JWT already past its expiry is
// short-circuited to unauthorized without a round trip; opaque credentials
// always go to the backend.
func (p *Provider) identify(ctx context.Context) (*domain.Identity, error) {
	credential, err := p.store.Credential()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if credential != "" && credentialExpired(credential, time.Now()) {
		return nil, apperrors.NewUnauthorized("credential expired")
	}
	return p.api.Me(ctx)
}

// recover runs the silent side channel, bounded by p.bound regardless of
// what the channel itself promises.
func (p *Provider) recover(ctx context.Context) SessionState {
	p.logger.Info("attempting silent session recovery")

	timer := time.NewTimer(p.bound)
	defer timer.Stop()

	var outcome silentauth.Outcome
	select {
	case outcome = <-p.silent.Attempt(ctx):
	case <-timer.C:
		p.logger.Info("silent recovery exceeded bootstrap bound")
		return SessionState{State: StateAnonymous}
	case <-ctx.Done():
		return SessionState{State: StateAnonymous}
	}

	if outcome != silentauth.OutcomeRecovered {
		p.logger.Info("silent recovery did not produce a session",
			zap.Stringer("outcome", outcome))
		return SessionState{State: StateAnonymous}
	}

	identity, err := p.identify(ctx)
	if err != nil {
		p.logger.Warn("identity call failed after silent recovery", zap.Error(err))
		return SessionState{State: StateAnonymous}
	}
	return SessionState{State: StateAuthenticated, Identity: identity}
}

func (p *Provider) resolve(state SessionState) SessionState {
	p.state = state
	p.logger.Info("session resolved", zap.Stringer("state", state.State))
	return state
}
