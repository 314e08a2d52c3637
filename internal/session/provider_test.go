package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/domain"
	"github.com/spec-kit/guild-console/internal/silentauth"
	apperrors "github.com/spec-kit/guild-console/pkg/util/errorutil"
)

type memStore struct {
	credential string
	lastGuild  string
}

func (s *memStore) Credential() (string, error)    { return s.credential, nil }
func (s *memStore) SetCredential(c string) error   { s.credential = c; return nil }
func (s *memStore) ClearCredential() error         { s.credential = ""; return nil }
func (s *memStore) LastGuildID() (string, error)   { return s.lastGuild, nil }
func (s *memStore) SetLastGuildID(id string) error { s.lastGuild = id; return nil }

type fakeAPI struct {
	meErrs    []error
	identity  *domain.Identity
	meCalls   int
	logoutErr error
}

func (a *fakeAPI) Me(ctx context.Context) (*domain.Identity, error) {
	a.meCalls++
	if len(a.meErrs) > 0 {
		err := a.meErrs[0]
		a.meErrs = a.meErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return a.identity, nil
}

func (a *fakeAPI) Logout(ctx context.Context) error { return a.logoutErr }

type fakeSilent struct {
	outcome  silentauth.Outcome
	silence  bool
	attempts int
}

func (s *fakeSilent) Attempt(ctx context.Context) <-chan silentauth.Outcome {
	s.attempts++
	result := make(chan silentauth.Outcome, 1)
	if !s.silence {
		result <- s.outcome
	}
	return result
}

func newTestProvider(store Store, api *fakeAPI, silent *fakeSilent) *Provider {
	return NewProvider(store, api, silent, 200*time.Millisecond, zap.NewNop())
}

func TestBootstrapStartsLoading(t *testing.T) {
	provider := newTestProvider(&memStore{}, &fakeAPI{}, &fakeSilent{})
	assert.Equal(t, StateLoading, provider.Current().State)
}

func TestBootstrapAuthenticated(t *testing.T) {
	api := &fakeAPI{identity: &domain.Identity{ID: "1", Username: "ari"}}
	provider := newTestProvider(&memStore{credential: "tok"}, api, &fakeSilent{})

	state := provider.Bootstrap(context.Background(), Navigation{Route: "/"})
	require.Equal(t, StateAuthenticated, state.State)
	assert.Equal(t, "ari", state.Identity.Username)
	assert.Equal(t, state, provider.Current())
}

func TestBootstrapPersistsHandoffToken(t *testing.T) {
	store := &memStore{}
	api := &fakeAPI{identity: &domain.Identity{ID: "1"}}
	provider := newTestProvider(store, api, &fakeSilent{})

	state := provider.Bootstrap(context.Background(), Navigation{Route: "/", Token: "handoff-tok"})
	require.Equal(t, StateAuthenticated, state.State)
	assert.Equal(t, "handoff-tok", store.credential)
}

func TestBootstrapExemptSurfacesResolveAnonymous(t *testing.T) {
	for _, route := range []string{SurfaceLogin, SurfaceDenied} {
		api := &fakeAPI{identity: &domain.Identity{ID: "1"}}
		provider := newTestProvider(&memStore{credential: "tok"}, api, &fakeSilent{})

		state := provider.Bootstrap(context.Background(), Navigation{Route: route})
		assert.Equal(t, StateAnonymous, state.State, "route=%s", route)
		assert.Zero(t, api.meCalls, "route=%s should not hit the backend", route)
	}
}

func TestBootstrapSilentRecovery(t *testing.T) {
	api := &fakeAPI{
		meErrs:   []error{apperrors.NewUnauthorized("expired"), nil},
		identity: &domain.Identity{ID: "1", Username: "ari"},
	}
	silent := &fakeSilent{outcome: silentauth.OutcomeRecovered}
	provider := newTestProvider(&memStore{credential: "stale"}, api, silent)

	state := provider.Bootstrap(context.Background(), Navigation{Route: "/"})
	require.Equal(t, StateAuthenticated, state.State)
	assert.Equal(t, 1, silent.attempts)
	assert.Equal(t, 2, api.meCalls)
}

func TestBootstrapSilentAttemptHappensAtMostOnce(t *testing.T) {
	api := &fakeAPI{meErrs: []error{
		apperrors.NewUnauthorized("expired"),
		apperrors.NewUnauthorized("expired"),
	}}
	silent := &fakeSilent{outcome: silentauth.OutcomeInteractionRequired}
	provider := newTestProvider(&memStore{credential: "stale"}, api, silent)

	state := provider.Bootstrap(context.Background(), Navigation{Route: "/"})
	assert.Equal(t, StateAnonymous, state.State)
	assert.Equal(t, 1, silent.attempts)

	// A second 401 never opens a second attempt.
	state = provider.Bootstrap(context.Background(), Navigation{Route: "/"})
	assert.Equal(t, StateAnonymous, state.State)
	assert.Equal(t, 1, silent.attempts)
}

func TestBootstrapSilentFailureResolvesAnonymous(t *testing.T) {
	for _, outcome := range []silentauth.Outcome{
		silentauth.OutcomeInteractionRequired,
		silentauth.OutcomeFailed,
		silentauth.OutcomeTimeout,
	} {
		api := &fakeAPI{meErrs: []error{apperrors.NewUnauthorized("expired")}}
		provider := newTestProvider(&memStore{credential: "stale"}, api, &fakeSilent{outcome: outcome})

		state := provider.Bootstrap(context.Background(), Navigation{Route: "/"})
		assert.Equal(t, StateAnonymous, state.State, "outcome=%s", outcome)
	}
}

func TestBootstrapBoundsSilentWait(t *testing.T) {
	api := &fakeAPI{meErrs: []error{apperrors.NewUnauthorized("expired")}}
	silent := &fakeSilent{silence: true}
	provider := newTestProvider(&memStore{credential: "stale"}, api, silent)

	start := time.Now()
	state := provider.Bootstrap(context.Background(), Navigation{Route: "/"})
	assert.Equal(t, StateAnonymous, state.State)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBootstrapNonAuthFailuresNeverGoSilent(t *testing.T) {
	api := &fakeAPI{meErrs: []error{apperrors.NewNetworkError(context.DeadlineExceeded)}}
	silent := &fakeSilent{outcome: silentauth.OutcomeRecovered}
	provider := newTestProvider(&memStore{credential: "tok"}, api, silent)

	state := provider.Bootstrap(context.Background(), Navigation{Route: "/"})
	assert.Equal(t, StateAnonymous, state.State)
	assert.Zero(t, silent.attempts)
}

func TestBootstrapExpiredJWTSkipsIdentityCall(t *testing.T) {
	store := &memStore{credential: signedToken(t, time.Now().Add(-time.Hour))}
	api := &fakeAPI{}
	silent := &fakeSilent{outcome: silentauth.OutcomeFailed}
	provider := newTestProvider(store, api, silent)

	state := provider.Bootstrap(context.Background(), Navigation{Route: "/"})
	assert.Equal(t, StateAnonymous, state.State)
	assert.Zero(t, api.meCalls)
	assert.Equal(t, 1, silent.attempts)
}

func TestLogoutDeletesCredentialEvenWhenBackendFails(t *testing.T) {
	store := &memStore{credential: "tok"}
	api := &fakeAPI{logoutErr: apperrors.NewNetworkError(context.DeadlineExceeded)}
	provider := newTestProvider(store, api, &fakeSilent{})

	require.NoError(t, provider.Logout(context.Background()))
	assert.Empty(t, store.credential)
	assert.Equal(t, StateAnonymous, provider.Current().State)
}
