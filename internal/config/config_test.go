package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/snippets.db", cfg.Database.Path)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.GitHub.CallbackURL)
	assert.False(t, cfg.GitHubEnabled())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9090
  cors_origins: ["https://snippets.example.com"]
database:
  path: /var/lib/snippets.db
auth:
  token_ttl: 24h
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://snippets.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/var/lib/snippets.db", cfg.Database.Path)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("JWT_SECRET", "legacy-secret-0123456789")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "legacy-secret-0123456789", cfg.Auth.JWTSecret)
	assert.True(t, cfg.GitHubEnabled())
	assert.Equal(t, "http://localhost:7000/auth/github/callback", cfg.GitHub.CallbackURL)
}

func TestLoad_LegacyPort(t *testing.T) {
	t.Setenv("PORT", "5000")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [port"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Server.Port = 8080
		cfg.Database.Path = "x.db"
		cfg.Auth.JWTSecret = "0123456789abcdef"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, false},
		{"no db path", func(c *Config) { c.Database.Path = "" }, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
