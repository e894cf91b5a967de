package util

import (
	"net/http/httptest"
	"testing"
	"time"

	"oral_eval_backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jwtTestConfig() *config.Config {
	return &config.Config{JWT: config.JWTConfig{
		Secret:                "unit-test-secret-0123456789abcdef",
		ExpireHours:           1,
		ExamineeExpireMinutes: 30,
	}}
}

func TestGenerateAndParseJWT(t *testing.T) {
	cfg := jwtTestConfig()

	token, err := GenerateJWT(7, "proctor", cfg)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseJWT(token, cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 7, claims.UserID)
	assert.Equal(t, "proctor", claims.Role)
	assert.Zero(t, claims.AttemptID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestGenerateExamineeJWT(t *testing.T) {
	cfg := jwtTestConfig()

	token, err := GenerateExamineeJWT(3, 42, cfg)
	require.NoError(t, err)

	claims, err := ParseJWT(token, cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 3, claims.UserID)
	assert.Equal(t, "examinee", claims.Role)
	assert.EqualValues(t, 42, claims.AttemptID)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestParseJWTWrongSecret(t *testing.T) {
	cfg := jwtTestConfig()
	token, err := GenerateJWT(7, "proctor", cfg)
	require.NoError(t, err)

	other := jwtTestConfig()
	other.JWT.Secret = "another-secret-entirely-0987654321"
	_, err = ParseJWT(token, other)
	assert.Error(t, err)
}

func TestParseJWTRejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{
		UserID: 1,
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseJWT(unsigned, jwtTestConfig())
	assert.Error(t, err, "拒绝未签名的令牌")
}

func TestParseJWTExpired(t *testing.T) {
	cfg := jwtTestConfig()
	cfg.JWT.ExpireHours = -1

	token, err := GenerateJWT(7, "proctor", cfg)
	require.NoError(t, err)

	_, err = ParseJWT(token, cfg)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestGetUserFromContext(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetUserFromContext(c), "未认证时返回nil")

	c.Set("user", "not-a-claims-value")
	assert.Nil(t, GetUserFromContext(c))

	claims := &Claims{UserID: 5, Role: "proctor"}
	c.Set("user", claims)
	assert.Same(t, claims, GetUserFromContext(c))
}
