package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// DateLayout is the wire format for all date flags, query parameters
// and config values: an ISO calendar date without a time component.
const DateLayout = "2006-01-02"

// LoadConfigFile loads configuration from a JSON file.
//
// This function reads a JSON file and unmarshals it into the provided
// config struct.
//
// Parameters:
//   - path: Path to the JSON configuration file
//   - cfg: Pointer to config struct to unmarshal into
//
// Returns:
//   - error: An error if file cannot be read or JSON is invalid
//
// Example:
//
//	var cfg JSONConfig
//	if err := config.LoadConfigFile("config.json", &cfg); err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFile(path string, cfg interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ParseDate parses a calendar date in DateLayout ("2006-01-02") and
// returns it normalized to midnight UTC.
//
// Parameters:
//   - s: Date string to parse
//
// Returns:
//   - time.Time: The parsed date at midnight UTC
//   - error: An error if the string is empty or malformed
//
// Example:
//
//	date, err := config.ParseDate("2024-01-02")
//	if err != nil {
//	    log.Fatal(err)
//	}
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}

	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format (want YYYY-MM-DD): %w", err)
	}
	return t, nil
}

// GetConfigFilePath returns the path to the configuration file from
// the flag or CONFIG environment variable.
//
// Parameters:
//   - configFlag: The value from the config flag (-c/-config)
//
// Returns:
//   - string: The path to the config file, or empty string if not specified
func GetConfigFilePath(configFlag string) string {
	if configFlag != "" {
		return configFlag
	}
	return os.Getenv("CONFIG")
}

// ApplyStringIfDefault applies a string value from the JSON config
// only if the current value still equals its default, preserving the
// flags > env > file priority order.
//
// Example:
//
//	ApplyStringIfDefault(&cfg.Address, "localhost:8080", jsonCfg.Address)
func ApplyStringIfDefault(current *string, defaultValue, jsonValue string) {
	if jsonValue != "" && *current == defaultValue {
		*current = jsonValue
	}
}

// ApplyIntIfDefault applies an int value from the JSON config only if
// the current value still equals its default.
func ApplyIntIfDefault(current *int, defaultValue, jsonValue int) {
	if jsonValue != 0 && *current == defaultValue {
		*current = jsonValue
	}
}
