package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "scholaris",
				Password: "secret",
				Name:     "scholaris",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=scholaris password=secret dbname=scholaris sslmode=require",
		},
		{
			name: "disable ssl mode",
			cfg: DatabaseConfig{
				Host:     "db.example.com",
				Port:     5433,
				User:     "admin",
				Password: "pass",
				Name:     "sis",
				SSLMode:  "disable",
			},
			want: "host=db.example.com port=5433 user=admin password=pass dbname=sis sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAddress(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	if got := cfg.GetAddress(); got != "0.0.0.0:8080" {
		t.Errorf("GetAddress() = %q, want 0.0.0.0:8080", got)
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// loadFromEmptyDir runs Load with the working directory pointed at an empty
// temp dir so a developer's local config.yaml can never leak into tests.
func loadFromEmptyDir(t *testing.T) (*Config, error) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return Load("")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadFromEmptyDir(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.SSLMode != "require" {
		t.Errorf("database.ssl_mode = %q, want require", cfg.Database.SSLMode)
	}
	if cfg.Redis.Enabled {
		t.Error("redis should be disabled by default")
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("auth.token_ttl = %v, want 12h", cfg.Auth.TokenTTL)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging.format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Telemetry.Metrics.PrometheusPort != 9090 {
		t.Errorf("telemetry.metrics.prometheus_port = %d, want 9090", cfg.Telemetry.Metrics.PrometheusPort)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("SIS_DATABASE_HOST", "db.internal")
	t.Setenv("SIS_SERVER_PORT", "9999")
	t.Setenv("SIS_REDIS_ENABLED", "true")
	t.Setenv("SIS_REDIS_ADDR", "redis.internal:6379")

	cfg, err := loadFromEmptyDir(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("database.host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want 9999", cfg.Server.Port)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("redis = %+v, want enabled at redis.internal:6379", cfg.Redis)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 8181
logging:
  level: debug
audit:
  shippers:
    - enabled: true
      type: file
      file:
        path: /var/log/scholaris/audit.jsonl
        max_size_mb: 50
        max_backups: 3
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("server.port = %d, want 8181", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
	if len(cfg.Audit.Shippers) != 1 || cfg.Audit.Shippers[0].File.Path != "/var/log/scholaris/audit.jsonl" {
		t.Errorf("audit.shippers = %+v, want one file shipper", cfg.Audit.Shippers)
	}
}

func TestLoad_PasswordExpansion(t *testing.T) {
	t.Setenv("DB_SECRET", "s3cret")
	t.Setenv("SIS_DATABASE_PASSWORD", "${DB_SECRET}")

	cfg, err := loadFromEmptyDir(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("database.password = %q, want expanded s3cret", cfg.Database.Password)
	}
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, BaseURL: "http://localhost:8080"},
		Database: DatabaseConfig{Host: "localhost", Name: "scholaris", User: "scholaris"},
		Auth:     AuthConfig{TokenTTL: time.Hour},
		Logging:  LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"missing base url", func(c *Config) { c.Server.BaseURL = "" }, true},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, true},
		{"redis enabled without addr", func(c *Config) { c.Redis.Enabled = true }, true},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "tooshort" }, true},
		{"long jwt secret", func(c *Config) { c.Auth.JWTSecret = "0123456789abcdef0123456789abcdef" }, false},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"shipper missing file path", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "file", File: &AuditFileConfig{}}}
		}, true},
		{"shipper unknown type", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "syslog"}}
		}, true},
		{"disabled shipper skipped", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: false, Type: "syslog"}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
