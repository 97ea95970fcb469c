package main

import (
	"flag"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	configpkg "github.com/tunehive/pulse/internal/config"
)

// JSONConfig represents configuration from JSON file
type JSONConfig struct {
	DatabaseDSN   string `json:"database_dsn"`
	NotifyFile    string `json:"notify_file"`
	NotifyURL     string `json:"notify_url"`
	ProgressEvery int    `json:"progress_every"`
	FallbackDays  int    `json:"fallback_days"`
}

// Config represents the full collector configuration
type Config struct {
	DSN           string `env:"DATABASE_DSN"`
	NotifyFile    string `env:"NOTIFY_FILE"`
	NotifyURL     string `env:"NOTIFY_URL"`
	ProgressEvery int    `env:"PROGRESS_EVERY"`
	FallbackDays  int    `env:"FALLBACK_DAYS"`

	StartDate string
	EndDate   string

	configFile string
}

var config = Config{
	ProgressEvery: 10,
	FallbackDays:  30,
}

// Init registers flags, parses them, and initializes config from all
// sources. Priority order (lowest to highest):
// 1. Default values
// 2. Config file (if specified via -c/-config or CONFIG env var)
// 3. Environment variables
// 4. Command line flags (highest priority)
// Must be called before using any config values.
func Init() error {
	flag.StringVar(&config.DSN, "d", "", "PostgreSQL DSN")
	flag.StringVar(&config.StartDate, "start-date", "", "Backfill start date (YYYY-MM-DD)")
	flag.StringVar(&config.EndDate, "end-date", "", "Backfill end date (YYYY-MM-DD)")
	flag.StringVar(&config.NotifyFile, "notify-file", "", "Path to run-notification JSONL file")
	flag.StringVar(&config.NotifyURL, "notify-url", "", "Webhook URL for run notifications")
	flag.IntVar(&config.ProgressEvery, "progress-every", 10, "Dates between backfill progress log lines")
	flag.IntVar(&config.FallbackDays, "fallback-days", 30, "Backfill depth when no source records exist")
	flag.StringVar(&config.configFile, "c", "", "Path to config file")
	flag.StringVar(&config.configFile, "config", "", "Path to config file")
	flag.Parse()

	configFile := config.configFile
	if configFile == "" {
		configFile = os.Getenv("CONFIG")
	}

	if configFile != "" {
		config.configFile = configFile
		var jsonCfg JSONConfig
		if err := configpkg.LoadConfigFile(configFile, &jsonCfg); err != nil {
			return err
		}
		applyConfig(&jsonCfg)
	}

	if err := cleanenv.ReadEnv(&config); err != nil {
		return err
	}

	return nil
}

// applyConfig applies config from JSON file with lower priority than
// env/flags. Only applies values if the current value is still the
// default.
func applyConfig(cfg *JSONConfig) {
	configpkg.ApplyStringIfDefault(&config.DSN, "", cfg.DatabaseDSN)
	configpkg.ApplyStringIfDefault(&config.NotifyFile, "", cfg.NotifyFile)
	configpkg.ApplyStringIfDefault(&config.NotifyURL, "", cfg.NotifyURL)
	configpkg.ApplyIntIfDefault(&config.ProgressEvery, 10, cfg.ProgressEvery)
	configpkg.ApplyIntIfDefault(&config.FallbackDays, 30, cfg.FallbackDays)
}
