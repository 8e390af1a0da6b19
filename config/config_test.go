package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LIBERTY_API_URL", "")
	t.Setenv("LIBERTY_WS_URL", "")
	t.Setenv("LIBERTY_TOKEN", "")
	t.Setenv("LIBERTY_STUN_URLS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, "ws://localhost:8000/ws/notifications/", cfg.SocketURL)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.STUNURLs)
	assert.Empty(t, cfg.TURNURLs)
}

func TestLoad_DerivesSocketURLFromHTTPS(t *testing.T) {
	t.Setenv("LIBERTY_API_URL", "https://api.liberty.social/")
	t.Setenv("LIBERTY_WS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "wss://api.liberty.social/ws/notifications/", cfg.SocketURL)
}

func TestLoad_ExplicitSocketURLWins(t *testing.T) {
	t.Setenv("LIBERTY_API_URL", "https://api.liberty.social")
	t.Setenv("LIBERTY_WS_URL", "wss://rt.liberty.social/ws/notifications/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "wss://rt.liberty.social/ws/notifications/", cfg.SocketURL)
}

func TestLoad_RejectsNonWebSocketURL(t *testing.T) {
	t.Setenv("LIBERTY_API_URL", "https://api.liberty.social")
	t.Setenv("LIBERTY_WS_URL", "https://api.liberty.social/ws/")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_SplitsTURNList(t *testing.T) {
	t.Setenv("LIBERTY_API_URL", "https://api.liberty.social")
	t.Setenv("LIBERTY_WS_URL", "")
	t.Setenv("LIBERTY_TURN_URLS", "turn:a.example.com:3478, turn:b.example.com:3478 ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"turn:a.example.com:3478", "turn:b.example.com:3478"}, cfg.TURNURLs)
}
