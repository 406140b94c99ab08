package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. AUTHCODE_STORAGE__BACKEND.
const EnvPrefix = "AUTHCODE_"

// AppConfig defines application configuration loaded from files and environment.
type AppConfig struct {
	Env     string        `koanf:"env"`
	HTTP    HTTPConfig    `koanf:"http"`
	Storage StorageConfig `koanf:"storage"`
	Keys    KeysConfig    `koanf:"keys"`
	Tokens  TokensConfig  `koanf:"tokens"`
	Session SessionConfig `koanf:"session"`
	Log     LogConfig     `koanf:"log"`
	Migrate MigrateConfig `koanf:"migrate"`
}

type HTTPConfig struct {
	Addr          string `koanf:"addr"`
	SecureCookies bool   `koanf:"secure_cookies"`
}

type StorageConfig struct {
	Backend     string        `koanf:"backend"`
	BuntDBPath  string        `koanf:"buntdb_path"`
	PostgresDSN string        `koanf:"postgres_dsn"`
	ValkeyAddr  string        `koanf:"valkey_addr"`
	RedisAddr   string        `koanf:"redis_addr"`
	KeyPrefix   string        `koanf:"key_prefix"`
	SweepEvery  time.Duration `koanf:"sweep_every"`
}

type KeysConfig struct {
	PrivateKeyPath string `koanf:"private_key_path"`
}

type TokensConfig struct {
	CodeTTL            time.Duration `koanf:"code_ttl"`
	AccessTTL          time.Duration `koanf:"access_ttl"`
	RefreshTTL         time.Duration `koanf:"refresh_ttl"`
	CodeLookupAttempts int           `koanf:"code_lookup_attempts"`
	CodeLookupDelay    time.Duration `koanf:"code_lookup_delay"`
	CheckAccessRecord  bool          `koanf:"check_access_record"`
}

type SessionConfig struct {
	CookieName string `koanf:"cookie_name"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

type MigrateConfig struct {
	OnStart bool `koanf:"on_start"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"env":                         "local",
		"http.addr":                   ":8080",
		"http.secure_cookies":         false,
		"storage.backend":             "buntdb",
		"storage.buntdb_path":         ":memory:",
		"storage.key_prefix":          "authcode:",
		"storage.sweep_every":         "5m",
		"tokens.code_ttl":             "10m",
		"tokens.access_ttl":           "1h",
		"tokens.refresh_ttl":          "720h",
		"tokens.code_lookup_attempts": 3,
		"tokens.code_lookup_delay":    "100ms",
		"tokens.check_access_record":  true,
		"session.cookie_name":         "authcode_session",
		"log.level":                   "info",
		"log.development":             false,
		"migrate.on_start":            false,
	}
}

// LoadConfig builds the configuration. Loading order:
// 1) built-in defaults
// 2) the YAML file at path, or at AUTHCODE_CONFIG when path is empty (optional)
// 3) environment variables with prefix AUTHCODE_ mapped using __ as nested separator, e.g. AUTHCODE_STORAGE__POSTGRES_DSN
func LoadConfig(path string) (*AppConfig, error) {
	k := koanf.New(".")
	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("config: default %s: %w", key, err)
		}
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	// AUTHCODE_STORAGE__POSTGRES_DSN -> storage.postgres_dsn
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	var c AppConfig
	if err := k.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &c, nil
}
