package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fluxorio/procmesh/pkg/config"
)

// GatewayConfig is the gateway's own configuration: sane defaults,
// optionally overridden by a YAML file, then by a handful of environment
// variables for the values operators most commonly override.
type GatewayConfig struct {
	Server struct {
		Host  string `yaml:"host"`
		Port  int    `yaml:"port"`
		Debug bool   `yaml:"debug"`
	} `yaml:"server"`

	Mailbox struct {
		Capacity             int `yaml:"capacity"`
		WatchdogPingSeconds  int `yaml:"watchdog_ping_seconds"`
		WatchdogCheckSeconds int `yaml:"watchdog_check_seconds"`
	} `yaml:"mailbox"`

	Auth struct {
		JWTSecret         string `yaml:"jwt_secret"`
		TokenTTLMinutes   int    `yaml:"token_ttl_minutes"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
	} `yaml:"auth"`

	Observability struct {
		TracingExporter   string `yaml:"tracing_exporter"` // "", "stdout", "jaeger", "zipkin"
		TracingEndpoint   string `yaml:"tracing_endpoint"`
		NATSSubjectPrefix string `yaml:"nats_subject_prefix"`
	} `yaml:"observability"`

	Audit struct {
		Enabled bool   `yaml:"enabled"`
		Driver  string `yaml:"driver"` // "sqlite3", "postgres", "pgx"
		DSN     string `yaml:"dsn"`
	} `yaml:"audit"`
}

func defaultGatewayConfig() *GatewayConfig {
	cfg := &GatewayConfig{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Server.Debug = false
	cfg.Mailbox.Capacity = 256
	cfg.Mailbox.WatchdogPingSeconds = 10
	cfg.Mailbox.WatchdogCheckSeconds = 12
	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.TokenTTLMinutes = 60
	cfg.Auth.RequestsPerMinute = 600
	cfg.Observability.TracingExporter = "stdout"
	cfg.Observability.NATSSubjectPrefix = "procmesh.gateway"
	cfg.Audit.Enabled = true
	cfg.Audit.Driver = "sqlite3"
	cfg.Audit.DSN = "file:procmesh-audit.db?cache=shared"
	return cfg
}

// loadGatewayConfig builds the default config, overlays configPath (if it
// exists) and the GATEWAY_* environment variables via config.LoadWithEnv
// (e.g. GATEWAY_SERVER_PORT, GATEWAY_AUTH_JWTSECRET, GATEWAY_AUDIT_DSN -
// ApplyEnvOverrides walks the struct's Go field names under the "GATEWAY"
// prefix), then validates the result with a config.Manager before it ever
// reaches toProvider.
func loadGatewayConfig(configPath string) (*GatewayConfig, error) {
	cfg := defaultGatewayConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := config.LoadWithEnv(configPath, "GATEWAY", cfg); err != nil {
				return nil, err
			}
			return validateGatewayConfig(cfg)
		}
	}

	if err := config.ApplyEnvOverrides("GATEWAY", cfg); err != nil {
		return nil, err
	}
	return validateGatewayConfig(cfg)
}

// validateGatewayConfig runs cfg through a config.Manager before it reaches
// toProvider, so a bad YAML override or a typo'd GATEWAY_* env var fails
// loudly at startup instead of producing a supervisor with an out-of-range
// watchdog timer or an audit driver internal/audit never registered.
func validateGatewayConfig(cfg *GatewayConfig) (*GatewayConfig, error) {
	mgr := config.NewManager(cfg)
	mgr.AddValidator(config.RequiredFields("Server.Host", "Auth.JWTSecret", "Audit.Driver"))
	mgr.AddValidator(config.RangeValidator("Server.Port", 1, 65535))
	mgr.AddValidator(config.RangeValidator("Mailbox.Capacity", 1, 1<<20))
	mgr.AddValidator(config.RangeValidator("Mailbox.WatchdogPingSeconds", 1, 3600))
	mgr.AddValidator(config.RangeValidator("Mailbox.WatchdogCheckSeconds", 1, 3600))
	mgr.AddValidator(config.RangeValidator("Auth.RequestsPerMinute", 1, 1_000_000))
	mgr.AddValidator(config.OneOfValidator("Audit.Driver", "sqlite3", "postgres", "pgx"))
	if err := mgr.Validate(); err != nil {
		return nil, fmt.Errorf("gateway config: %w", err)
	}
	return config.MustGetTyped[*GatewayConfig](mgr.Get()), nil
}

// toProvider builds the pkg/config.Provider the core's Service consumes
// from this gateway's own typed configuration.
func (c *GatewayConfig) toProvider() *config.Provider {
	return config.NewProvider(map[string]interface{}{
		"host":                   c.Server.Host,
		"port":                   c.Server.Port,
		"debug":                  c.Server.Debug,
		"mailbox_capacity":       c.Mailbox.Capacity,
		"watchdog_ping_timeout":  c.Mailbox.WatchdogPingSeconds,
		"watchdog_check_timeout": c.Mailbox.WatchdogCheckSeconds,
	}, nil)
}

func (c *GatewayConfig) tokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}
