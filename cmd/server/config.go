package main

import (
	"flag"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	configpkg "github.com/tunehive/pulse/internal/config"
)

// JSONConfig represents configuration from JSON file
type JSONConfig struct {
	Address     string `json:"address"`
	DatabaseDSN string `json:"database_dsn"`
	CollectAt   string `json:"collect_at"`
	NotifyFile  string `json:"notify_file"`
	NotifyURL   string `json:"notify_url"`
}

// Config represents the full server configuration
type Config struct {
	Address    string `env:"ADDRESS"`
	DSN        string `env:"DATABASE_DSN"`
	CollectAt  string `env:"COLLECT_AT"`
	NotifyFile string `env:"NOTIFY_FILE"`
	NotifyURL  string `env:"NOTIFY_URL"`
	configFile string
}

var config = Config{
	Address:   "localhost:8080",
	CollectAt: "00:30",
}

// Init registers flags, parses them, and initializes config from all
// sources. Priority order (lowest to highest): defaults, config file,
// environment variables, command line flags.
func Init() error {
	flag.StringVar(&config.Address, "a", "localhost:8080", "HTTP address to listen on")
	flag.StringVar(&config.DSN, "d", "", "PostgreSQL DSN")
	flag.StringVar(&config.CollectAt, "collect-at", "00:30", "Daily collection time (HH:MM, UTC)")
	flag.StringVar(&config.NotifyFile, "notify-file", "", "Path to run-notification JSONL file")
	flag.StringVar(&config.NotifyURL, "notify-url", "", "Webhook URL for run notifications")
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
// env/flags.
func applyConfig(cfg *JSONConfig) {
	configpkg.ApplyStringIfDefault(&config.Address, "localhost:8080", cfg.Address)
	configpkg.ApplyStringIfDefault(&config.DSN, "", cfg.DatabaseDSN)
	configpkg.ApplyStringIfDefault(&config.CollectAt, "00:30", cfg.CollectAt)
	configpkg.ApplyStringIfDefault(&config.NotifyFile, "", cfg.NotifyFile)
	configpkg.ApplyStringIfDefault(&config.NotifyURL, "", cfg.NotifyURL)
}
