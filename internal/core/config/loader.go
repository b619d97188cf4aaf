package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills unset fields so a minimal config file runs.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Ops.Port == 0 {
		cfg.Ops.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.JobStore.Backend == "" {
		cfg.JobStore.Backend = "memory"
	}
	if cfg.JobStore.SweepInterval == 0 {
		cfg.JobStore.SweepInterval = 30 * time.Second
	}
	if cfg.Engine.MaxRetries == 0 {
		cfg.Engine.MaxRetries = 3
	}
	if cfg.Engine.RecordTTL == 0 {
		cfg.Engine.RecordTTL = time.Hour
	}
	if cfg.Engine.Retention == 0 {
		cfg.Engine.Retention = time.Hour
	}
}
