package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 1, cfg.Server.UDPWorkers)
	assert.Equal(t, 256, cfg.Server.MaxConnections)
	assert.Equal(t, 15*time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, 4096, cfg.Transport.MaxPayload)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "none", cfg.Archive.Driver)
	assert.Equal(t, 0, cfg.LLM.HistoryWindow)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  host: 127.0.0.1
  udp_workers: 2
transport:
  max_payload: 1024
llm:
  default_provider: openai
  history_window: 20
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TRANSPORT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 2, cfg.Server.UDPWorkers)
	assert.Equal(t, 1024, cfg.Transport.MaxPayload)
	assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
	assert.Equal(t, 20, cfg.LLM.HistoryWindow)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "s3cret", cfg.Transport.Secret)
}

func TestValidate(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store driver", func(c *Config) { c.Store.Driver = "etcd" }},
		{"archive without dsn", func(c *Config) { c.Archive.Driver = "postgres" }},
		{"admin without secret", func(c *Config) { c.Admin.Enabled = true }},
		{"zero udp workers", func(c *Config) { c.Server.UDPWorkers = 0 }},
		{"tiny payload", func(c *Config) { c.Transport.MaxPayload = 8 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs([]string{"127.0.0.1", "5000", "5001"})
	require.NoError(t, err)
	assert.Equal(t, ServerArgs{Host: "127.0.0.1", TCPPort: 5000, UDPPort: 5001}, args)

	cfg := &Config{}
	cfg.ApplyArgs(args)
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.TCPAddr())
	assert.Equal(t, "127.0.0.1:5001", cfg.Server.UDPAddr())
}

func TestParseArgs_Invalid(t *testing.T) {
	invalid := [][]string{
		{},
		{"127.0.0.1"},
		{"127.0.0.1", "5000"},
		{"127.0.0.1", "5000", "5001", "extra"},
		{"127.0.0.1", "tcp", "5001"},
		{"127.0.0.1", "5000", "70000"},
		{"", "5000", "5001"},
	}

	for _, args := range invalid {
		_, err := ParseArgs(args)
		assert.True(t, errors.Is(err, ErrUsage), "args %v", args)
	}
}
