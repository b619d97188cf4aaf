package config

import (
	"fmt"
	"time"

	"github.com/conveyorhq/conveyor/internal/infra/guard"
	redisstore "github.com/conveyorhq/conveyor/internal/infra/jobstore/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Ops       OpsConfig        `yaml:"ops"`
	Logging   LoggingConfig    `yaml:"logging"`
	Engine    EngineConfig     `yaml:"engine"`
	JobStore  JobStoreConfig   `yaml:"job_store"`
	Services  []ServiceConfig  `yaml:"services"`
	Pipelines []PipelineConfig `yaml:"pipelines"`
}

// OpsConfig holds the health/metrics listener settings.
type OpsConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// EngineConfig holds engine-wide execution defaults.
type EngineConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	RecordTTL  time.Duration `yaml:"record_ttl"`
	// Retention bounds how long errored runs stay resumable.
	Retention time.Duration `yaml:"retention"`
}

// JobStoreConfig selects and tunes the job record backend.
type JobStoreConfig struct {
	Backend       string            `yaml:"backend"` // memory, redis
	SweepInterval time.Duration     `yaml:"sweep_interval"`
	Redis         redisstore.Config `yaml:"redis"`
}

// ServiceConfig declares one guarded external dependency.
type ServiceConfig struct {
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`

	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     time.Duration `yaml:"jitter"`

	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
	MonitorWindow    time.Duration `yaml:"monitor_window"`

	MinInterval time.Duration `yaml:"min_interval"`
	Serialize   bool          `yaml:"serialize"`
	QueueBuffer int           `yaml:"queue_buffer"`
}

// GuardConfig maps the declaration onto guard settings. Unset fields
// fall back to the guard defaults.
func (s ServiceConfig) GuardConfig() guard.Config {
	return guard.Config{
		Service: s.Name,
		Timeout: s.Timeout,
		Retry: guard.RetryConfig{
			MaxRetries: s.MaxRetries,
			BaseDelay:  s.BaseDelay,
			MaxDelay:   s.MaxDelay,
			Multiplier: s.Multiplier,
			Jitter:     s.Jitter,
		},
		Breaker: guard.BreakerConfig{
			FailureThreshold: s.FailureThreshold,
			ResetTimeout:     s.ResetTimeout,
			MonitorWindow:    s.MonitorWindow,
		},
		MinInterval: s.MinInterval,
		Serialize:   s.Serialize,
		QueueBuffer: s.QueueBuffer,
	}
}

// PipelineConfig declares a pipeline assembled from registered stage
// kinds.
type PipelineConfig struct {
	Name   string        `yaml:"name"`
	Stages []StageConfig `yaml:"stages"`
}

// StageConfig declares one stage of a configured pipeline.
type StageConfig struct {
	Name    string            `yaml:"name"`
	Service string            `yaml:"service"`
	Uses    string            `yaml:"uses"`
	With    map[string]string `yaml:"with"`
}

// Validate rejects configurations that cannot be wired.
func (c *AppConfig) Validate() error {
	switch c.JobStore.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("job_store.backend must be memory or redis, got %q", c.JobStore.Backend)
	}
	if c.JobStore.Backend == "redis" && c.JobStore.Redis.URL == "" {
		return fmt.Errorf("job_store.redis.url is required for the redis backend")
	}

	services := make(map[string]bool, len(c.Services))
	for i, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("services[%d] has no name", i)
		}
		if services[svc.Name] {
			return fmt.Errorf("duplicate service %s", svc.Name)
		}
		services[svc.Name] = true
	}

	for _, pl := range c.Pipelines {
		if pl.Name == "" {
			return fmt.Errorf("pipeline has no name")
		}
		for _, st := range pl.Stages {
			if st.Name == "" {
				return fmt.Errorf("pipeline %s: stage has no name", pl.Name)
			}
			if st.Uses == "" {
				return fmt.Errorf("pipeline %s: stage %s declares no kind", pl.Name, st.Name)
			}
			if st.Service != "" && !services[st.Service] {
				return fmt.Errorf("pipeline %s: stage %s references unknown service %s", pl.Name, st.Name, st.Service)
			}
		}
	}
	return nil
}
