package config

import "github.com/kelseyhightower/envconfig"

// Database holds libsql/Turso database configuration. Local file: URLs work
// without an auth token.
type Database struct {
	URL       string `envconfig:"PROMPTREG_DATABASE_URL" required:"true"`
	AuthToken string `envconfig:"PROMPTREG_AUTH_TOKEN"`
}

// Telemetry holds OTEL exporter configuration.
type Telemetry struct {
	Enabled  bool   `envconfig:"PROMPTREG_OTEL_ENABLED" default:"false"`
	Endpoint string `envconfig:"PROMPTREG_OTEL_ENDPOINT"`
	Insecure bool   `envconfig:"PROMPTREG_OTEL_INSECURE" default:"false"`
}

// Registry holds configuration for the registry CLI.
type Registry struct {
	Database  Database
	Telemetry Telemetry
}

// Load reads registry configuration from environment variables.
func Load() (*Registry, error) {
	var cfg Registry
	if err := envconfig.Process("", &cfg.Database); err != nil {
		return nil, err
	}
	if err := envconfig.Process("", &cfg.Telemetry); err != nil {
		return nil, err
	}
	return &cfg, nil
}
