package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lendingcore/observability/logging"
)

const (
	defaultListen   = ":8080"
	defaultShutdown = 5 * time.Second
)

// Storage backends accepted by storage.backend.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Config captures the runtime settings for the lending service daemon.
type Config struct {
	ListenAddress   string          `yaml:"listen"`
	Env             string          `yaml:"env"`
	Genesis         string          `yaml:"genesis"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	TLS             TLSConfig       `yaml:"tls"`
	Auth            AuthConfig      `yaml:"auth"`
	Storage         StorageConfig   `yaml:"storage"`
	EventLog        EventLogConfig  `yaml:"eventlog"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Log             LogConfig       `yaml:"log"`
}

// TLSConfig describes the TLS material for the HTTP listener.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	ClientCAPath  string `yaml:"client_ca"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig lists the authenticators accepted by the service.
type AuthConfig struct {
	JWT       JWTConfig      `yaml:"jwt"`
	APITokens []string       `yaml:"api_tokens"`
	MTLS      MTLSAuthConfig `yaml:"mtls"`
}

// JWTConfig verifies user tokens. SecretEnv names an environment variable that
// overrides Secret.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	SecretEnv  string        `yaml:"secret_env"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	ScopeClaim string        `yaml:"scope_claim"`
	ClockSkew  time.Duration `yaml:"clock_skew"`
}

// MTLSAuthConfig enumerates the allowed client certificate identities.
type MTLSAuthConfig struct {
	AllowedCommonNames []string `yaml:"allowed_common_names"`
}

// StorageConfig selects the ledger key-value backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// EventLogConfig selects the event log database. An empty DSN with the
// sqlite driver keeps the log in memory.
type EventLogConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RateLimitConfig bounds requests per client. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string              `yaml:"level"`
	File  logging.FileOptions `yaml:"file"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: defaultListen,
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.Env = strings.TrimSpace(cfg.Env)
	if cfg.Env == "" {
		cfg.Env = strings.TrimSpace(os.Getenv("LENDING_ENV"))
	}
	cfg.Genesis = strings.TrimSpace(cfg.Genesis)
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdown
	}
	cfg.TLS.normalize()
	cfg.Auth.normalize()
	cfg.Storage.normalize()
	cfg.EventLog.normalize()
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.File.Path = strings.TrimSpace(cfg.Log.File.Path)
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if err := cfg.Auth.validate(cfg.TLS); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := cfg.EventLog.validate(); err != nil {
		return fmt.Errorf("eventlog: %w", err)
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log: unknown level %q", cfg.Log.Level)
	}
	return nil
}

func (cfg *TLSConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.CertPath = strings.TrimSpace(cfg.CertPath)
	cfg.KeyPath = strings.TrimSpace(cfg.KeyPath)
	cfg.ClientCAPath = strings.TrimSpace(cfg.ClientCAPath)
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	if cfg.ClientCAPath != "" && !hasCert {
		return fmt.Errorf("client_ca requires a server certificate and key")
	}
	return nil
}

// Enabled reports whether the listener serves TLS.
func (cfg TLSConfig) Enabled() bool {
	return cfg.CertPath != "" && cfg.KeyPath != ""
}

// MTLSEnabled reports whether mutual TLS verification is configured.
func (cfg TLSConfig) MTLSEnabled() bool {
	return strings.TrimSpace(cfg.ClientCAPath) != ""
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.APITokens = trimAll(cfg.APITokens)
	cfg.MTLS.AllowedCommonNames = trimAll(cfg.MTLS.AllowedCommonNames)
	cfg.JWT.SecretEnv = strings.TrimSpace(cfg.JWT.SecretEnv)
	if cfg.JWT.SecretEnv != "" {
		if value := strings.TrimSpace(os.Getenv(cfg.JWT.SecretEnv)); value != "" {
			cfg.JWT.Secret = value
		}
	}
	cfg.JWT.Secret = strings.TrimSpace(cfg.JWT.Secret)
	cfg.JWT.Issuer = strings.TrimSpace(cfg.JWT.Issuer)
	cfg.JWT.Audience = strings.TrimSpace(cfg.JWT.Audience)
	cfg.JWT.ScopeClaim = strings.TrimSpace(cfg.JWT.ScopeClaim)
}

func (cfg AuthConfig) validate(tls TLSConfig) error {
	hasJWT := cfg.JWT.Secret != ""
	hasTokens := len(cfg.APITokens) > 0
	hasMTLS := len(cfg.MTLS.AllowedCommonNames) > 0
	if !hasJWT && !hasTokens && !hasMTLS {
		return fmt.Errorf("a jwt secret, api token or mTLS common name must be configured")
	}
	if hasJWT && len(cfg.JWT.Secret) < 16 {
		return fmt.Errorf("jwt secret must be at least 16 bytes")
	}
	if hasMTLS && strings.TrimSpace(tls.ClientCAPath) == "" {
		return fmt.Errorf("mtls.allowed_common_names requires tls.client_ca to be configured")
	}
	return nil
}

func (cfg *StorageConfig) normalize() {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}
	cfg.Path = strings.TrimSpace(cfg.Path)
}

func (cfg StorageConfig) validate() error {
	switch cfg.Backend {
	case BackendMemory:
		return nil
	case BackendLevelDB, BackendBolt:
		if cfg.Path == "" {
			return fmt.Errorf("%s backend requires a path", cfg.Backend)
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func (cfg *EventLogConfig) normalize() {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
}

func (cfg EventLogConfig) validate() error {
	switch cfg.Driver {
	case "sqlite":
		return nil
	case "postgres":
		if cfg.DSN == "" {
			return fmt.Errorf("postgres driver requires a dsn")
		}
		return nil
	default:
		return fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
