package util

import (
	"osian_backend/internal/model"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Email: "a@example.com", Role: model.Admin}
	user.ID = 42

	token, err := GenerateJWT(user, "secret-one", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret-one")
	require.NoError(t, err)
	require.Equal(t, uint(42), claims.UserID)
	require.Equal(t, model.Admin, claims.Role)
	require.Equal(t, "a@example.com", claims.Email)

	_, err = ParseJWT(token, "secret-two")
	require.ErrorIs(t, err, jwt.ErrSignatureInvalid)
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWT(&model.User{}, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}
