package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sociapi/mail"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 1111 || cfg.Env != "dev" || cfg.IsProd() {
		t.Fatalf("port=%d env=%s", cfg.Port, cfg.Env)
	}
	if cfg.Cache.TTL != 1800*time.Second {
		t.Fatalf("cache ttl = %v, want 30m", cfg.Cache.TTL)
	}
	if cfg.Auth.AccessTTL != 15*time.Minute {
		t.Fatalf("access ttl = %v", cfg.Auth.AccessTTL)
	}
	if cfg.Github.Enabled() {
		t.Fatalf("github should be disabled without credentials")
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
port: 9000
database:
  driver: memory
cache:
  backend: memcache
  ttl: 10m
github:
  id: client
  secret: shh
`)
	t.Setenv("SOCIAPI_PORT", "8080")
	t.Setenv("SOCIAPI_CACHE__BREAKER__FAILURES", "9")
	t.Setenv("SOCIAPI_AUTH__REFRESH_TTL", "24h")

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("port = %d, env should win over the file", cfg.Port)
	}
	if cfg.Database.Driver != "memory" || cfg.Cache.Backend != "memcache" {
		t.Fatalf("driver=%s backend=%s", cfg.Database.Driver, cfg.Cache.Backend)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Fatalf("cache ttl = %v", cfg.Cache.TTL)
	}
	if cfg.Cache.Breaker.Failures != 9 {
		t.Fatalf("breaker failures = %d", cfg.Cache.Breaker.Failures)
	}
	if cfg.Auth.RefreshTTL != 24*time.Hour {
		t.Fatalf("refresh ttl = %v", cfg.Auth.RefreshTTL)
	}
	if !cfg.Github.Enabled() {
		t.Fatalf("github should be enabled")
	}
	// Untouched sections keep their defaults.
	if cfg.Database.Host != "localhost" || cfg.Uploads.MaxBytes != 30<<20 {
		t.Fatalf("defaults lost: host=%s max=%d", cfg.Database.Host, cfg.Uploads.MaxBytes)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := writeConfig(t, "cache:\n  backend: etcd\n")
	if _, err := LoadConfig(path, false); err == nil {
		t.Fatalf("expected an error for an unknown cache backend")
	}
}

func TestLoadConfigMail(t *testing.T) {
	path := writeConfig(t, "mail:\n  host: smtp.example.com\n")
	if _, err := LoadConfig(path, false); err == nil {
		t.Fatalf("expected an error for a relay without a sender")
	}

	path = writeConfig(t, "mail:\n  host: smtp.example.com\n  from: noreply@example.com\n")
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Mail.Port != 587 || !cfg.Mail.StartTLS {
		t.Fatalf("mail defaults lost: %+v", cfg.Mail)
	}
	if _, ok := openMailer(cfg).(*mail.SMTP); !ok {
		t.Fatalf("configured relay should use SMTP")
	}
	cfg.Mail.Host = ""
	if _, ok := openMailer(cfg).(mail.Log); !ok {
		t.Fatalf("no relay should log mail")
	}
}

func TestLoadConfigProd(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), true); err == nil {
		t.Fatalf("expected an error without a config file in production")
	}

	path := writeConfig(t, "log:\n  format: json\n")
	if _, err := LoadConfig(path, true); err == nil {
		t.Fatalf("expected default secrets to be rejected in production")
	}

	path = writeConfig(t, `
auth:
  access_secret: a
  refresh_secret: b
  pepper: c
  hmac_key: d
`)
	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.IsProd() {
		t.Fatalf("env = %s, want prod", cfg.Env)
	}
}

func TestDatabaseConnectionInfo(t *testing.T) {
	dc := DatabaseConfig{Host: "db", Port: 5432, User: "u", Name: "n", SSLMode: "disable"}
	if got, want := dc.ConnectionInfo(), "host=db port=5432 user=u dbname=n sslmode=disable"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	dc.Password = "p"
	if got, want := dc.ConnectionInfo(), "host=db port=5432 user=u password=p dbname=n sslmode=disable"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
