package session

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// credentialExpired reports whether a JWT-shaped credential is already past
// its expiry claim. The credential is opaque by contract, so anything that
// does not parse as a JWT, or parses without an exp claim, is left for the
// backend to judge. The signature is deliberately not verified; this is an
// optimization to skip a guaranteed 401, not an authentication decision.
func credentialExpired(credential string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}
