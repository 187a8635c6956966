// loader.go implements the configuration loading lifecycle:
//
//  1. Enforce UTC timezone to prevent date-arithmetic drift in the sweep.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Populate the Config struct from envconfig tags.
//  4. Load and attach the city list from the configured JSON file.
//  5. Validate the assembled struct with go-playground/validator.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"gridpulse/internal/types"
)

// LoadConfig loads and validates the GridPulse configuration. Any missing
// required value, unreadable cities file, or invalid field fails the load;
// callers should treat a load error as fatal at startup.
func LoadConfig() (*Config, error) {
	time.Local = time.UTC

	// Best-effort .env loading for local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "processing environment configuration", err)
	}

	cities, err := LoadCities(cfg.Pipeline.CitiesFile)
	if err != nil {
		return nil, err
	}
	cfg.Pipeline.Cities = cities

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "validating configuration", err)
	}

	return &cfg, nil
}

// LoadCities reads the city list from the given JSON file. The file is a
// JSON array of objects with name, noaa_station_id, and eia_region_code.
func LoadCities(path string) ([]types.City, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("reading cities file %s", path), err)
	}

	var cities []types.City
	if err := json.Unmarshal(raw, &cities); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("parsing cities file %s", path), err)
	}
	if len(cities) == 0 {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("cities file %s lists no cities", path), nil)
	}

	return cities, nil
}

// CityNames returns the configured display names in list order. The quality
// scorer uses this as the expected-city set for the synchronization check.
func (c *Config) CityNames() []string {
	names := make([]string, 0, len(c.Pipeline.Cities))
	for _, city := range c.Pipeline.Cities {
		names = append(names, city.Name)
	}
	return names
}

// SlogLevel translates the configured LogLevel string for slog handlers.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
