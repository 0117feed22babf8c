package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-story-api/internal/config"
)

func TestNewClientDisabled(t *testing.T) {
	_, err := NewClient(&config.RedisConfig{Enabled: false, Host: "localhost", Port: 6379})
	require.ErrorIs(t, err, ErrDisabled)

	_, err = NewClient(nil)
	require.ErrorIs(t, err, ErrDisabled)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "story:complete:42", StoryKey(42))
	assert.Equal(t, "ratelimit:session:abc:/api/story/create",
		BuildSessionRateLimitKey("abc", "/api/story/create"))
}
