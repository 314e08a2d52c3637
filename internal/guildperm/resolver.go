package guildperm

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/domain"
	apperrors "github.com/spec-kit/guild-console/pkg/util/errorutil"
)

// ClaimFetcher is the slice of the backend client the resolver needs.
type ClaimFetcher interface {
	Guild(ctx context.Context, guildID string) (*domain.Guild, error)
}

type claimEntry struct {
	claim   string
	fetched bool
}

// Resolver computes the effective permission level for an identity in a
// guild. Resolution is synchronous over already-fetched claims; Prime does
// the fetching and caches per guild id, so a stale response for a guild
// that is no longer active can never be misapplied to another guild.
type Resolver struct {
	api    ClaimFetcher
	logger *zap.Logger

	mu     sync.Mutex
	claims map[string]claimEntry
}

// NewResolver builds a resolver with an empty claim cache.
func NewResolver(api ClaimFetcher, logger *zap.Logger) *Resolver {
	return &Resolver{
		api:    api,
		logger: logger,
		claims: make(map[string]claimEntry),
	}
}

// Prime fetches and caches the guild's claim for the current identity.
// Failures are recorded, not returned: a guild whose claim could not be
// fetched resolves PUBLIC, which fails safe rather than open. Repeating a
// fetch is idempotent and side-effect-free.
func (r *Resolver) Prime(ctx context.Context, guildID string) {
	if guildID == "" {
		return
	}

	r.mu.Lock()
	if entry, ok := r.claims[guildID]; ok && entry.fetched {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	guild, err := r.api.Guild(ctx, guildID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if apperrors.IsNetworkError(err) {
			r.logger.Warn("guild claim fetch failed", zap.String("guild_id", guildID), zap.Error(err))
		} else {
			r.logger.Info("no guild access", zap.String("guild_id", guildID), zap.Error(err))
		}
		r.claims[guildID] = claimEntry{fetched: false}
		return
	}
	r.claims[guildID] = claimEntry{claim: guild.PermissionClaim, fetched: true}
}

// Invalidate drops a guild's cached claim, forcing the next Prime to
// refetch. Used when the consuming view is torn down or the active guild
// changes.
func (r *Resolver) Invalidate(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claims, guildID)
}

// Pending reports whether the guild's claim has not yet been fetched
// successfully. The gate treats a pending tenant-scoped check as Checking
// rather than deciding on a PUBLIC resolution it knows is provisional.
func (r *Resolver) Pending(guildID string) bool {
	if guildID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.claims[guildID]
	return !ok
}

// Resolve maps identity and guild to one permission level. First match
// wins:
//
//  1. no identity: PUBLIC
//  2. platform admin: DEVELOPER, dominating every guild-scoped claim
//  3. no guild (tenant-agnostic context): USER
//  4. claim not fetched successfully: PUBLIC
//  5. the fetched claim, via domain.LevelFromClaim
func (r *Resolver) Resolve(identity *domain.Identity, guildID string) domain.PermissionLevel {
	if identity == nil {
		return domain.LevelPublic
	}
	if identity.IsPlatformAdmin {
		return domain.LevelDeveloper
	}
	if guildID == "" {
		return domain.LevelUser
	}

	r.mu.Lock()
	entry, ok := r.claims[guildID]
	r.mu.Unlock()
	if !ok || !entry.fetched {
		return domain.LevelPublic
	}
	return domain.LevelFromClaim(entry.claim)
}
