// Package config loads the server configuration.
//
// PRECEDENCE (highest first):
//  1. Environment variables (SERVER_PORT, AUTH_JWT_SECRET, ... or the short
//     legacy names PORT, DB_PATH, JWT_SECRET, GITHUB_*)
//  2. configs/config.yaml, if present
//  3. The defaults below
//
// A .env file in the working directory is loaded into the environment first,
// without overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sakif/snippet-share/internal/auth"
)

// Config holds every setting the server reads.
type Config struct {
	Server struct {
		Port          int      `mapstructure:"port"`
		CORSOrigins   []string `mapstructure:"cors_origins"`
		RateLimit     int      `mapstructure:"rate_limit"` // requests per minute per IP; 0 disables
		SecureCookies bool     `mapstructure:"secure_cookies"`
	} `mapstructure:"server"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	Auth struct {
		JWTSecret  string        `mapstructure:"jwt_secret"`
		TokenTTL   time.Duration `mapstructure:"token_ttl"`
		BcryptCost int           `mapstructure:"bcrypt_cost"`
	} `mapstructure:"auth"`

	GitHub struct {
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		CallbackURL  string `mapstructure:"callback_url"`
	} `mapstructure:"github"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// GitHubEnabled reports whether GitHub login is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHub.ClientID != "" && c.GitHub.ClientSecret != ""
}

// LogLevel parses Log.Level, falling back to Info for unknown values.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("config: database.path is required")
	}
	if len(c.Auth.JWTSecret) < auth.MinSecretLen {
		return fmt.Errorf("config: auth.jwt_secret must be at least %d characters (set JWT_SECRET)", auth.MinSecretLen)
	}
	return nil
}

// legacyEnv maps config keys to the short variable names older deployments use.
var legacyEnv = map[string]string{
	"server.port":          "PORT",
	"database.path":        "DB_PATH",
	"auth.jwt_secret":      "JWT_SECRET",
	"github.client_id":     "GITHUB_CLIENT_ID",
	"github.client_secret": "GITHUB_CLIENT_SECRET",
	"github.callback_url":  "GITHUB_CALLBACK_URL",
}

// Load reads the configuration. configDir is searched for config.yaml; an
// empty configDir means "./configs". A missing file is not an error.
func Load(configDir string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	if configDir == "" {
		configDir = "./configs"
	}

	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// "server.port" → SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, env := range legacyEnv {
		// The structured name wins over the legacy one when both are set.
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Server.Port)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit", 300)
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("database.path", "data/snippets.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 0)
	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("github.callback_url", "")
	v.SetDefault("log.level", "info")
}
