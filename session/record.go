package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/barambur26/go-aidock-client/authapi"
)

// Record is the client-held session state. It is replaced wholesale on every
// login and refresh and must never be field-mutated by callers.
type Record struct {
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	ExpiresAt    time.Time            `json:"expires_at"`
	User         *authapi.UserProfile `json:"user,omitempty"`
}

// Valid reports whether the access token is still usable at the given time.
func (r *Record) Valid(now time.Time) bool {
	return r != nil && r.ExpiresAt.After(now)
}

// accessTokenExpiry extracts the exp claim from a JWT access token without
// verifying its signature. Verification is the server's job; the claim is
// only used to cross-check a persisted expiry.
func accessTokenExpiry(accessToken string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
