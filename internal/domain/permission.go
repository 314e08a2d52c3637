package domain

import (
	"fmt"
	"strings"
)

// PermissionLevel is the fixed, totally ordered set of access levels.
// Comparison is always by integer value via HasAccess; no caller may
// compare role strings directly.
type PermissionLevel int

const (
	LevelPublic     PermissionLevel = 0
	LevelPublicData PermissionLevel = 1
	LevelUser       PermissionLevel = 2
	LevelAuthorized PermissionLevel = 3
	LevelOwner      PermissionLevel = 4
	LevelDeveloper  PermissionLevel = 5
)

// String renders the level for logs and diagnostic redirects.
func (l PermissionLevel) String() string {
	switch l {
	case LevelPublic:
		return "PUBLIC"
	case LevelPublicData:
		return "PUBLIC_DATA"
	case LevelUser:
		return "USER"
	case LevelAuthorized:
		return "AUTHORIZED"
	case LevelOwner:
		return "OWNER"
	case LevelDeveloper:
		return "DEVELOPER"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel turns a level name, as printed by String, back into a level.
func ParseLevel(name string) (PermissionLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "PUBLIC":
		return LevelPublic, nil
	case "PUBLIC_DATA":
		return LevelPublicData, nil
	case "USER":
		return LevelUser, nil
	case "AUTHORIZED":
		return LevelAuthorized, nil
	case "OWNER":
		return LevelOwner, nil
	case "DEVELOPER":
		return LevelDeveloper, nil
	default:
		return LevelPublic, fmt.Errorf("unknown permission level %q", name)
	}
}

// HasAccess is the single source of truth for level comparison. Levels at
// or below PUBLIC_DATA are public surfaces and are satisfied regardless of
// the held level or sign-in state.
func HasAccess(held, required PermissionLevel) bool {
	if required <= LevelPublicData {
		return true
	}
	return held >= required
}

// LevelFromClaim maps a server-reported guild role string to a level. The
// mapping is total and case-insensitive: an unrecognized token still names
// a guild member, so it grants baseline signed-in access rather than
// failing.
//
// "user" mapping to AUTHORIZED while "level_2" maps to USER is carried
// over from the backend as-is; flagged with product before relying on it.
func LevelFromClaim(claim string) PermissionLevel {
	switch strings.ToLower(strings.TrimSpace(claim)) {
	case "owner":
		return LevelOwner
	case "admin":
		return LevelAuthorized
	case "user":
		return LevelAuthorized
	case "level_2":
		return LevelUser
	default:
		return LevelUser
	}
}
