package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Contains(t, cfg.AllowedOrigins, "http://localhost:3000")
	assert.True(t, cfg.Relay.AllowDefaultSession)
	assert.False(t, cfg.Relay.RequireSession)
	assert.False(t, cfg.Relay.RequireAuth)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, "stun:stun.l.google.com:19302", cfg.ICEServers[0].URL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RELAY_ALLOW_DEFAULT_SESSION", "false")
	t.Setenv("RELAY_REQUIRE_SESSION", "true")
	t.Setenv("RELAY_REQUIRE_AUTH", "1")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com,https://staging.example.com")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.Relay.AllowDefaultSession)
	assert.True(t, cfg.Relay.RequireSession)
	assert.True(t, cfg.Relay.RequireAuth)
	assert.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, cfg.AllowedOrigins)
}

func TestGetEnvBoolIgnoresGarbage(t *testing.T) {
	t.Setenv("RELAY_REQUIRE_SESSION", "definitely")
	cfg := Load()
	assert.False(t, cfg.Relay.RequireSession)
}

func TestParseICEServers(t *testing.T) {
	servers := parseICEServers("stun:stun.example.com:3478, turn:turn.example.com:3478|user|secret,")

	require.Len(t, servers, 2)
	assert.Equal(t, ICEServer{URL: "stun:stun.example.com:3478"}, servers[0])
	assert.Equal(t, ICEServer{
		URL:        "turn:turn.example.com:3478",
		Username:   "user",
		Credential: "secret",
	}, servers[1])
}
