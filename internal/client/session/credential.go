package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoCredential = errors.New("no credential")
	errNoExpiry     = errors.New("access token carries no exp claim")
)

// Credential is the bearer pair issued at login. Both tokens are opaque to the
// client except for the exp claim of the access token.
type Credential struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh,omitempty"`
}

// ExpiresAt decodes the access token's exp claim. The signature is not checked:
// the server is the authority, the client only needs to know when to stop trying.
func (c Credential) ExpiresAt() (time.Time, error) {
	if c.AccessToken == "" {
		return time.Time{}, ErrNoCredential
	}
	tok, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, err
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errNoExpiry
	}
	return exp.Time, nil
}

// ExpiresAtEpochMs is ExpiresAt in milliseconds since the epoch, 0 when unknown.
func (c Credential) ExpiresAtEpochMs() int64 {
	t, err := c.ExpiresAt()
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
