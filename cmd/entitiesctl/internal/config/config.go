// Package config loads ambient environment configuration for the CLI.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v9"
)

// Config holds settings the CLI reads from its own environment.
//
// # Description
//
// Flags always win over these values; the environment is the fallback so
// the tool composes with direnv/.env-sourced shells and CI. All fields
// are optional.
type Config struct {
	// DatabaseURL is the in-network database URL (admin bootstrap).
	DatabaseURL string `env:"DATABASE_URL"`

	// SpecialDBURL is the host-published database URL (admin bootstrap).
	SpecialDBURL string `env:"SPECIAL_DB_URL"`

	// AdminEmail is the admin account email (admin bootstrap).
	AdminEmail string `env:"ADMIN_EMAIL"`

	// AdminAPIKey authenticates provisioning calls.
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// AssistantsBaseURL is the Entities API base URL for provisioning.
	AssistantsBaseURL string `env:"ASSISTANTS_BASE_URL" envDefault:"http://localhost:9000"`
}

// Load parses the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment config: %w", err)
	}
	return cfg, nil
}
