package utils // package utils provides helpers for minting bearer tokens

import (
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp.  Tokens are sent in the Authorization header when calling
// protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Claims describes the owner scope carried by an access token.  VenueID is
// only set for venue staff.
type Claims struct {
	UserID  uint64
	Role    string
	VenueID uint64
}

// NewAccessToken builds and signs an HS256 JWT.  Production tokens are
// issued by the identity provider; this helper mints compatible tokens for
// local development and tests.  The JWT includes subject (sub), role,
// optional venue_id, expiration (exp) and issued at (iat).
func NewAccessToken(secret string, c Claims, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  c.UserID,
		"role": c.Role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	if c.VenueID != 0 {
		claims["venue_id"] = c.VenueID
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
