package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :6000 "
tls:
  allow_insecure: true
auth:
  api_tokens:
    - " token-one "
    - " "
    - "token-two"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":6000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if !cfg.TLS.AllowInsecure {
		t.Fatalf("expected allow_insecure to propagate")
	}
	if len(cfg.Auth.APITokens) != 2 {
		t.Fatalf("expected 2 trimmed api tokens, got %d", len(cfg.Auth.APITokens))
	}
	if cfg.Storage.Backend != BackendMemory || cfg.EventLog.Driver != "sqlite" {
		t.Fatalf("unexpected backend defaults: %+v %+v", cfg.Storage, cfg.EventLog)
	}
	if cfg.ShutdownTimeout != defaultShutdown {
		t.Fatalf("unexpected shutdown timeout %s", cfg.ShutdownTimeout)
	}
}

func TestLoadConfigFullDocument(t *testing.T) {
	t.Setenv("LENDING_JWT_SECRET", "a-very-long-jwt-secret")
	path := writeConfig(t, `
listen: "127.0.0.1:8080"
env: dev
genesis: ./genesis.toml
shutdown_timeout: 12s
tls:
  allow_insecure: true
auth:
  jwt:
    secret_env: LENDING_JWT_SECRET
    issuer: lending-auth
    clock_skew: 30s
storage:
  backend: Bolt
  path: ./data/ledger.db
eventlog:
  driver: postgres
  dsn: postgres://lending@localhost/lending
rate_limit:
  requests_per_minute: 120
  burst: 20
log:
  level: DEBUG
  file:
    path: ./logs/lendingd.log
    max_size_mb: 50
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Auth.JWT.Secret != "a-very-long-jwt-secret" {
		t.Fatalf("expected secret from environment")
	}
	if cfg.Auth.JWT.ClockSkew != 30*time.Second || cfg.ShutdownTimeout != 12*time.Second {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.Storage.Backend != BackendBolt {
		t.Fatalf("expected normalised backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File.MaxSizeMB != 50 {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.RateLimit.Burst != 20 {
		t.Fatalf("unexpected rate limit: %+v", cfg.RateLimit)
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
listen: ":8080"
tls:
  allow_insecure: true
auth:
  api_tokens: [token]
grpc_port: 50053
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown field to fail")
	}
}

func TestLoadConfigRequiresAuthenticators(t *testing.T) {
	path := writeConfig(t, `
listen: ":8080"
tls:
  cert: "server.crt"
  key: "server.key"
auth: {}
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when no authenticators are configured")
	}
}

func TestLoadConfigRejectsShortJWTSecret(t *testing.T) {
	path := writeConfig(t, `
tls:
  allow_insecure: true
auth:
  jwt:
    secret: short
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected short secret to fail")
	}
}

func TestLoadConfigValidatesTLS(t *testing.T) {
	path := writeConfig(t, `
listen: ":8080"
tls:
  cert: "server.crt"
auth:
  api_tokens:
    - token
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when tls key is missing")
	}
}

func TestLoadConfigValidatesMTLSDependencies(t *testing.T) {
	path := writeConfig(t, `
listen: ":8080"
tls:
  cert: "server.crt"
  key: "server.key"
auth:
  mtls:
    allowed_common_names: [client]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when mtls is configured without client ca")
	}
}

func TestLoadConfigRequiresTLSMaterialUnlessInsecure(t *testing.T) {
	path := writeConfig(t, `
listen: ":8080"
auth:
  api_tokens: [token]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when tls material missing without allow_insecure")
	}
}

func TestLoadConfigValidatesBackends(t *testing.T) {
	cases := map[string]string{
		"leveldb without path": "storage:\n  backend: leveldb\n",
		"unknown backend":      "storage:\n  backend: rocks\n",
		"postgres without dsn": "eventlog:\n  driver: postgres\n",
		"unknown driver":       "eventlog:\n  driver: mysql\n",
		"negative rate":        "rate_limit:\n  requests_per_minute: -1\n",
		"unknown level":        "log:\n  level: loud\n",
	}
	base := "tls:\n  allow_insecure: true\nauth:\n  api_tokens: [token]\n"
	for name, extra := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, base+extra)); err == nil {
				t.Fatalf("expected %s to fail", name)
			}
		})
	}
}
