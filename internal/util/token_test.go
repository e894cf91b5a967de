package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpaqueToken(t *testing.T) {
	tokenPattern := regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	token, err := NewOpaqueToken(32)
	require.NoError(t, err)
	assert.Len(t, token, 43, "32字节熵经URL安全base64后为43字符")
	assert.Regexp(t, tokenPattern, token)

	// 低于下限时提升到32字节
	short, err := NewOpaqueToken(8)
	require.NoError(t, err)
	assert.Len(t, short, 43)

	long, err := NewOpaqueToken(48)
	require.NoError(t, err)
	assert.Len(t, long, 64)
}

func TestNewOpaqueTokenUniqueness(t *testing.T) {
	seen := make(map[string]bool, 100)
	for i := 0; i < 100; i++ {
		token, err := NewOpaqueToken(32)
		require.NoError(t, err)
		require.False(t, seen[token], "令牌重复: %s", token)
		seen[token] = true
	}
}

func TestNewObjectSuffix(t *testing.T) {
	suffix := NewObjectSuffix()
	assert.Regexp(t, `^[0-9a-f]{8}$`, suffix)
	assert.NotEqual(t, suffix, NewObjectSuffix())
}
