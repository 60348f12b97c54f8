package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessToken(t *testing.T) {
	tok, err := NewAccessToken("s3cret", Claims{UserID: 7, Role: "VENUE", VenueID: 3}, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, 5*time.Second)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(7), claims["sub"])
	assert.Equal(t, "VENUE", claims["role"])
	assert.Equal(t, float64(3), claims["venue_id"])
}

func TestNewAccessTokenOmitsVenueForCustomers(t *testing.T) {
	tok, err := NewAccessToken("s3cret", Claims{UserID: 7, Role: "CUSTOMER"}, time.Hour)
	require.NoError(t, err)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	_, ok := parsed.Claims.(jwt.MapClaims)["venue_id"]
	assert.False(t, ok)
}
