package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration, loaded from YAML.
type Config struct {
	NotesDir       string `yaml:"notes_dir"`
	DefaultTZ      string `yaml:"default_tz"`
	AlarmRangeDays int    `yaml:"alarm_range_days"`
	FolderTitle    string `yaml:"folder_title"`
	LogLevel       string `yaml:"log_level"`
	WindowDays     int    `yaml:"window_days"`
}

func defaultConfig() Config {
	return Config{
		NotesDir:       ".",
		AlarmRangeDays: 14,
		WindowDays:     7,
		LogLevel:       "warn",
	}
}

// loadConfig reads the config file, preferring the NOTECAL_CONFIG env var,
// then the given path. A missing file yields defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if env := os.Getenv("NOTECAL_CONFIG"); env != "" {
		path = env
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(home, ".config", "notecal", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.NotesDir == "" {
		cfg.NotesDir = "."
	}
	if cfg.AlarmRangeDays <= 0 {
		cfg.AlarmRangeDays = 14
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	return cfg, nil
}
