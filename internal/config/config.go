package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides; "__" separates levels, so
// HEALTHMATE_PUSH__TIMEOUT sets push.timeout.
const EnvPrefix = "HEALTHMATE_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Auth     AuthConfig     `koanf:"auth"`
	Database DatabaseConfig `koanf:"database"`
	Push     PushConfig     `koanf:"push"`
	Workers  WorkersConfig  `koanf:"workers"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port                int    `koanf:"port"`
	AllowedOrigins      string `koanf:"allowed_origins"` // comma separated, or "*"
	DisableRegistration bool   `koanf:"disable_registration"`
}

type AuthConfig struct {
	JWTSecret           string `koanf:"jwt_secret"`
	RefreshSecret       string `koanf:"refresh_secret"`
	AccessTokenMinutes  int    `koanf:"access_token_minutes"`
	RefreshTokenDays    int    `koanf:"refresh_token_days"`
	RememberRefreshDays int    `koanf:"remember_refresh_days"`
	CookieSecure        bool   `koanf:"cookie_secure"`
}

type DatabaseConfig struct {
	Path          string `koanf:"path"`
	EncryptionKey string `koanf:"encryption_key"`
	RunMigrations bool   `koanf:"run_migrations"`
}

type PushConfig struct {
	Subject    string `koanf:"subject"`
	PublicKey  string `koanf:"public_key"`
	PrivateKey string `koanf:"private_key"`
	TTL        int    `koanf:"ttl"`
	Timeout    int    `koanf:"timeout"`
	Icon       string `koanf:"icon"`
	Badge      string `koanf:"badge"`
	URL        string `koanf:"url"`
}

// TimeoutDuration is the per-delivery HTTP timeout.
func (p PushConfig) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

type WorkersConfig struct {
	Enabled          bool   `koanf:"enabled"`
	ReminderSchedule string `koanf:"reminder_schedule"`
	CleanupSchedule  string `koanf:"cleanup_schedule"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
	File        string `koanf:"file"`
}

// legacyEnv maps the deployment's historical variable names onto config keys.
var legacyEnv = map[string]string{
	"PORT":                  "server.port",
	"ALLOWED_ORIGINS":       "server.allowed_origins",
	"DISABLE_REGISTRATION":  "server.disable_registration",
	"JWT_SECRET":            "auth.jwt_secret",
	"JWT_REFRESH_SECRET":    "auth.refresh_secret",
	"ACCESS_TOKEN_MINUTES":  "auth.access_token_minutes",
	"REFRESH_TOKEN_DAYS":    "auth.refresh_token_days",
	"REMEMBER_REFRESH_DAYS": "auth.remember_refresh_days",
	"COOKIE_SECURE":         "auth.cookie_secure",
	"DB_PATH":               "database.path",
	"DB_ENCRYPTION_KEY":     "database.encryption_key",
	"RUN_MIGRATIONS":        "database.run_migrations",
	"VAPID_SUBJECT":         "push.subject",
	"VAPID_PUBLIC_KEY":      "push.public_key",
	"VAPID_PRIVATE_KEY":     "push.private_key",
	"ENABLE_WORKERS":        "workers.enabled",
	"LOG_LEVEL":             "log.level",
}

// Load layers configuration: defaults, the optional YAML file at
// configPath, the legacy environment names and finally HEALTHMATE_*
// variables. A .env file in the working directory is loaded into the
// environment first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(DefaultConfig(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	for name, key := range legacyEnv {
		if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
			if err := k.Set(key, strings.TrimSpace(v)); err != nil {
				return nil, fmt.Errorf("failed to apply %s: %w", name, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Server.AllowedOrigins = normalizeOrigins(cfg.Server.AllowedOrigins)
	if cfg.Auth.RefreshSecret == "" && cfg.Auth.JWTSecret != "" {
		cfg.Auth.RefreshSecret = cfg.Auth.JWTSecret + "-refresh"
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required (set JWT_SECRET or auth.jwt_secret)")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters long")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if (c.Push.PublicKey == "") != (c.Push.PrivateKey == "") {
		return fmt.Errorf("VAPID public and private keys must be set together")
	}
	if c.Push.Timeout <= 0 {
		return fmt.Errorf("push timeout must be positive")
	}
	if c.Workers.Enabled && c.Workers.ReminderSchedule == "" {
		return fmt.Errorf("reminder schedule is required when workers are enabled")
	}
	return nil
}

// normalizeOrigins trims whitespace around a comma-separated origin list.
func normalizeOrigins(origins string) string {
	origins = strings.TrimSpace(origins)
	if origins == "" || origins == "*" {
		return origins
	}
	parts := strings.Split(origins, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, ",")
}
