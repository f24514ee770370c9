package config

import "time"

// Config represents the main configuration structure
type Config struct {
	LogLevel         string            `json:"logLevel"`
	MaxPendingTime   int               `json:"maxPendingTime"`   // ms - max time a request may stay pending before the reaper fails it
	ReaperInterval   int               `json:"reaperInterval"`   // ms - interval between reaper sweeps
	BatchDelay       int               `json:"batchDelay"`       // ms - accumulation window before a batch flushes
	MaxBatchSize     int               `json:"maxBatchSize"`     // members that force an immediate flush
	StaggerDelay     int               `json:"staggerDelay"`     // ms - per-member delay within a flushed batch
	MaxConcurrentOps int               `json:"maxConcurrentOps"` // 0 means unbounded
	Cache            *CacheConfig      `json:"cache,omitempty"`
	Monitor          *MonitorConfig    `json:"monitor,omitempty"`
	Simulation       *SimulationConfig `json:"simulation,omitempty"`
}

// CacheConfig represents result cache configuration
type CacheConfig struct {
	Enabled       bool     `json:"enabled"`
	TTL           int      `json:"ttl"`           // seconds
	Size          int      `json:"size"`          // number of entries
	DisabledKinds []string `json:"disabledKinds"` // request kinds to exclude from caching
}

// MonitorConfig represents the stats monitor configuration
type MonitorConfig struct {
	Enabled      bool   `json:"enabled"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	PushInterval int    `json:"pushInterval"` // ms - interval between WebSocket stats pushes
}

// SimulationConfig drives the synthetic workload of the demo binary
type SimulationConfig struct {
	Enabled    bool     `json:"enabled"`
	Callers    int      `json:"callers"`
	KeySpace   int      `json:"keySpace"`   // number of distinct request contents
	BatchTypes []string `json:"batchTypes"` // batch types the workload cycles through
	Interval   int      `json:"interval"`   // ms - delay between submissions per caller
}

// Default values
const (
	DefaultLogLevel         = "info"
	DefaultMaxPendingTime   = 30000 // ms
	DefaultReaperInterval   = 60000 // ms
	DefaultBatchDelay       = 100   // ms
	DefaultMaxBatchSize     = 10
	DefaultStaggerDelay     = 50 // ms
	DefaultMaxConcurrentOps = 0  // unbounded
	DefaultMonitorHost      = "localhost"
	DefaultMonitorPort      = 8080
	DefaultPushInterval     = 1000 // ms
	DefaultSimCallers       = 8
	DefaultSimKeySpace      = 32
	DefaultSimInterval      = 200 // ms
)

// GetMaxPendingTimeDuration returns max pending time as time.Duration
func (c *Config) GetMaxPendingTimeDuration() time.Duration {
	return time.Duration(c.MaxPendingTime) * time.Millisecond
}

// GetReaperIntervalDuration returns reaper interval as time.Duration
func (c *Config) GetReaperIntervalDuration() time.Duration {
	return time.Duration(c.ReaperInterval) * time.Millisecond
}

// GetBatchDelayDuration returns batch delay as time.Duration
func (c *Config) GetBatchDelayDuration() time.Duration {
	return time.Duration(c.BatchDelay) * time.Millisecond
}

// GetStaggerDelayDuration returns stagger delay as time.Duration
func (c *Config) GetStaggerDelayDuration() time.Duration {
	return time.Duration(c.StaggerDelay) * time.Millisecond
}

// IsCacheEnabled returns true if the result cache is configured and enabled
func (c *Config) IsCacheEnabled() bool {
	return c.Cache != nil && c.Cache.Enabled
}

// IsMonitorEnabled returns true if the stats monitor is configured and enabled
func (c *Config) IsMonitorEnabled() bool {
	return c.Monitor != nil && c.Monitor.Enabled
}

// IsSimulationEnabled returns true if the synthetic workload is enabled
func (c *Config) IsSimulationEnabled() bool {
	return c.Simulation != nil && c.Simulation.Enabled
}

// GetTTLDuration returns cache TTL as time.Duration
func (c *CacheConfig) GetTTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// GetPushIntervalDuration returns monitor push interval as time.Duration
func (m *MonitorConfig) GetPushIntervalDuration() time.Duration {
	return time.Duration(m.PushInterval) * time.Millisecond
}

// GetIntervalDuration returns the per-caller submission interval as time.Duration
func (s *SimulationConfig) GetIntervalDuration() time.Duration {
	return time.Duration(s.Interval) * time.Millisecond
}
