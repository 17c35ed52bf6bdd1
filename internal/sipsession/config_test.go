package sipsession

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"voicebridge/internal/playout"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
ai:
  endpoint_url: wss://ai.example.com/realtime
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, defaultSIPBindPort, cfg.SIPBindPort)
	require.Equal(t, "udp", cfg.SIPTransport)
	require.Equal(t, playout.TrimPolicyCapTrim, cfg.TrimPolicy)
	require.Equal(t, playout.OverflowDrainPartial, cfg.OverflowPolicy)
	require.Equal(t, "wss://ai.example.com/realtime", cfg.AIEndpointURL)
	require.Nil(t, cfg.AIAuthHeader)
}

func TestLoadConfigRequiresAIEndpoint(t *testing.T) {
	path := writeConfig(t, `
sip:
  bind_port: 5080
`)
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "ai.endpoint_url")
}

func TestLoadConfigRejectsMismatchedAuthPair(t *testing.T) {
	path := writeConfig(t, `
ai:
  endpoint_url: wss://ai.example.com
sip:
  auth_user: alice
`)
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "auth_user and sip.auth_password")
}

func TestLoadConfigRejectsUnknownTransport(t *testing.T) {
	path := writeConfig(t, `
ai:
  endpoint_url: wss://ai.example.com
sip:
  transport: sctp
`)
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "sip.transport")
}

func TestLoadConfigParsesAuthTokenIntoBearerHeader(t *testing.T) {
	path := writeConfig(t, `
ai:
  endpoint_url: wss://ai.example.com
  auth_token: secret123
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "Bearer secret123", cfg.AIAuthHeader.Get("Authorization"))
}

func TestLoadConfigParsesTrimAndOverflowPolicies(t *testing.T) {
	path := writeConfig(t, `
ai:
  endpoint_url: wss://ai.example.com
audio:
  trim_policy: reject
  overflow_policy: refuse
  typing_sounds_enabled: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, playout.TrimPolicyReject, cfg.TrimPolicy)
	require.Equal(t, playout.OverflowRefuse, cfg.OverflowPolicy)
	require.True(t, cfg.TypingSoundsEnabled)
}

func TestLoadConfigRejectsUnknownOverflowPolicy(t *testing.T) {
	path := writeConfig(t, `
ai:
  endpoint_url: wss://ai.example.com
audio:
  overflow_policy: explode
`)
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "audio.overflow_policy")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
