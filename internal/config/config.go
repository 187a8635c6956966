// Package config defines and loads the GridPulse configuration. Values are
// read once at process start from the environment (optionally seeded from a
// .env file) and are immutable thereafter. Components never reload
// configuration themselves; they receive the loaded struct, or the subset
// they need, through their constructors.
package config

import (
	"time"

	"gridpulse/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used for upstream API credentials.
type SecretString = types.SecretString

// Config is the top-level configuration for all GridPulse binaries.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"gridpulse"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// DataDir is the root of all persisted pipeline state: raw stores,
	// ledger file, merged outputs, and analytics artifacts.
	DataDir string `envconfig:"DATA_DIR" default:"data"`

	Server   ServerConfig
	Upstream UpstreamConfig
	Pipeline PipelineConfig
}

// ServerConfig holds the analytics API server settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// UpstreamConfig holds base URLs and credentials for the two upstream APIs.
type UpstreamConfig struct {
	NOAABaseURL string       `envconfig:"NOAA_BASE_URL" default:"https://www.ncdc.noaa.gov/cdo-web/api/v2" validate:"required,url"`
	NOAAToken   SecretString `envconfig:"NOAA_TOKEN" validate:"required"`

	EIABaseURL string       `envconfig:"EIA_BASE_URL" default:"https://api.eia.gov/v2" validate:"required,url"`
	EIAAPIKey  SecretString `envconfig:"EIA_API_KEY" validate:"required"`

	// Timeout bounds each individual request attempt.
	Timeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
}

// PipelineConfig holds sweep and scheduling parameters.
type PipelineConfig struct {
	// CitiesFile is the path to the JSON city list. Each entry provides a
	// display name, a NOAA station identifier, and an EIA region code.
	CitiesFile string `envconfig:"CITIES_FILE" default:"config/cities.json" validate:"required"`

	// LookbackDays is the size of the ingestion window, swept most recent
	// day first.
	LookbackDays int `envconfig:"LOOKBACK_DAYS" default:"90" validate:"min=1,max=366"`

	// RunAt is an optional "HH:MM" UTC time for scheduled daily runs.
	// When empty the pipeline binary runs once and exits.
	RunAt string `envconfig:"RUN_AT"`

	// Cities is populated from CitiesFile by LoadConfig; it is not an
	// environment value.
	Cities []types.City `envconfig:"-" validate:"min=1,dive"`
}
