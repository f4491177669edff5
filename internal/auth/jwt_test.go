package auth_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labmetrixis/labmetrixis/internal/auth"
)

func Test_GenerateAndVerifyJWT(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	require.NoError(t, auth.InitJWTSecret())

	token, err := auth.GenerateJWT(42, "lane@lab.test", "researcher")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := auth.VerifyJWT(token)
	require.NoError(t, err)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)

	assert.Equal(t, float64(42), claims["user_id"])
	assert.Equal(t, "lane@lab.test", claims["email"])
	assert.Equal(t, "researcher", claims["role"])
}

func Test_VerifyJWT_RejectsTamperedToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	require.NoError(t, auth.InitJWTSecret())

	token, err := auth.GenerateJWT(42, "lane@lab.test", "researcher")
	require.NoError(t, err)

	_, err = auth.VerifyJWT(token + "x")
	assert.Error(t, err)
}

func Test_InitJWTSecret_RequiresEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	assert.Error(t, auth.InitJWTSecret())
}
