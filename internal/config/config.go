package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.MaxPendingTime == 0 {
		cfg.MaxPendingTime = DefaultMaxPendingTime
	}
	if cfg.ReaperInterval == 0 {
		cfg.ReaperInterval = DefaultReaperInterval
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.StaggerDelay == 0 {
		cfg.StaggerDelay = DefaultStaggerDelay
	}
	// MaxConcurrentOps default is 0, which means unbounded

	if cfg.Monitor != nil {
		if cfg.Monitor.Host == "" {
			cfg.Monitor.Host = DefaultMonitorHost
		}
		if cfg.Monitor.Port == 0 {
			cfg.Monitor.Port = DefaultMonitorPort
		}
		if cfg.Monitor.PushInterval == 0 {
			cfg.Monitor.PushInterval = DefaultPushInterval
		}
	}

	if cfg.Simulation != nil {
		if cfg.Simulation.Callers == 0 {
			cfg.Simulation.Callers = DefaultSimCallers
		}
		if cfg.Simulation.KeySpace == 0 {
			cfg.Simulation.KeySpace = DefaultSimKeySpace
		}
		if cfg.Simulation.Interval == 0 {
			cfg.Simulation.Interval = DefaultSimInterval
		}
		if len(cfg.Simulation.BatchTypes) == 0 {
			cfg.Simulation.BatchTypes = []string{"embed"}
		}
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if cfg.MaxPendingTime <= 0 {
		return fmt.Errorf("maxPendingTime must be positive")
	}

	if cfg.ReaperInterval <= 0 {
		return fmt.Errorf("reaperInterval must be positive")
	}

	if cfg.BatchDelay <= 0 {
		return fmt.Errorf("batchDelay must be positive")
	}

	// The batch delay bounds how long a member waits in an open window;
	// it must stay below the pending timeout or flushed members could be
	// reaped before their window fires.
	if cfg.BatchDelay >= cfg.MaxPendingTime {
		return fmt.Errorf("batchDelay must be shorter than maxPendingTime")
	}

	if cfg.MaxBatchSize <= 0 {
		return fmt.Errorf("maxBatchSize must be positive")
	}

	if cfg.StaggerDelay < 0 {
		return fmt.Errorf("staggerDelay must be non-negative")
	}

	if cfg.MaxConcurrentOps < 0 {
		return fmt.Errorf("maxConcurrentOps must be non-negative")
	}

	if cfg.Cache != nil && cfg.Cache.Enabled {
		if cfg.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive when cache is enabled")
		}
		if cfg.Cache.Size <= 0 {
			return fmt.Errorf("cache.size must be positive when cache is enabled")
		}
	}

	if cfg.Monitor != nil && cfg.Monitor.Enabled {
		if cfg.Monitor.Port < 1 || cfg.Monitor.Port > 65535 {
			return fmt.Errorf("monitor.port must be between 1 and 65535")
		}
		if cfg.Monitor.PushInterval <= 0 {
			return fmt.Errorf("monitor.pushInterval must be positive when monitor is enabled")
		}
	}

	if cfg.Simulation != nil && cfg.Simulation.Enabled {
		if cfg.Simulation.Callers <= 0 {
			return fmt.Errorf("simulation.callers must be positive")
		}
		if cfg.Simulation.KeySpace <= 0 {
			return fmt.Errorf("simulation.keySpace must be positive")
		}
	}

	return nil
}
