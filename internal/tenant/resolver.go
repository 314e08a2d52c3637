package tenant

import (
	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/domain"
)

// LastGuildStore is the slice of the session store that remembers the
// last-active guild across runs.
type LastGuildStore interface {
	LastGuildID() (string, error)
	SetLastGuildID(guildID string) error
}

// ResolveActive chooses the current guild from the competing signals, first
// candidate satisfying membership wins:
//
//  1. requestedID, when it names a guild in candidates
//  2. the guild persisted by a previous run, when still in candidates
//  3. the identity's preferred default guild, when in candidates
//  4. the first candidate, in backend order
//
// Empty candidates resolve to ok=false: the caller routes to onboarding
// instead of any guild-scoped surface. Every non-empty resolution is
// persisted back so the next run's step 2 is accurate; that persistence is
// the only state this resolver mutates.
func ResolveActive(candidates []domain.Guild, requestedID string, identity *domain.Identity, store LastGuildStore, logger *zap.Logger) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	resolved := firstMember(candidates, requestedID)
	if resolved == "" {
		stored, err := store.LastGuildID()
		if err != nil {
			logger.Warn("failed to read last-active guild", zap.Error(err))
		}
		resolved = firstMember(candidates, stored)
	}
	if resolved == "" && identity != nil {
		resolved = firstMember(candidates, identity.Preferences.DefaultGuildID)
	}
	if resolved == "" {
		resolved = candidates[0].ID
	}

	if err := store.SetLastGuildID(resolved); err != nil {
		logger.Warn("failed to persist active guild", zap.Error(err))
	}
	return resolved, true
}

func firstMember(candidates []domain.Guild, guildID string) string {
	if guildID == "" {
		return ""
	}
	for _, guild := range candidates {
		if guild.ID == guildID {
			return guildID
		}
	}
	return ""
}
