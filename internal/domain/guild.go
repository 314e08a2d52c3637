package domain

// Guild is one tenant the signed-in user can administer. PermissionClaim is
// the server-reported role string for the current identity in this guild;
// it is mapped to a PermissionLevel by LevelFromClaim and never compared
// directly anywhere else.
type Guild struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	IconURL         string `json:"icon_url,omitempty"`
	PermissionClaim string `json:"permission_level"`
}
