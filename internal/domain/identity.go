package domain

// Preferences carries per-user dashboard preferences reported by the backend.
type Preferences struct {
	DefaultGuildID string `json:"default_guild_id,omitempty"`
}

// Identity is the resolved, authenticated visitor record. Absence of an
// Identity represents "not signed in", not an error. It is immutable for
// the lifetime of a client run.
type Identity struct {
	ID              string      `json:"id"`
	Username        string      `json:"username"`
	AvatarURL       string      `json:"avatar_url,omitempty"`
	IsPlatformAdmin bool        `json:"is_platform_admin"`
	Preferences     Preferences `json:"preferences"`
}
