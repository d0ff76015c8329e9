package registry

import "time"

// Config configures the registry and its health monitor.
type Config struct {
	// ProbeInterval is how often every service is health-probed.
	ProbeInterval time.Duration `yaml:"probe_interval" mapstructure:"probe_interval"`
	// ProbeTimeout bounds each individual probe call.
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
	// FailuresToUnhealthy is the consecutive probe failures demoting a
	// service to unhealthy.
	FailuresToUnhealthy int `yaml:"failures_to_unhealthy" mapstructure:"failures_to_unhealthy"`
	// SuccessesToHealthy is the consecutive probe successes promoting a
	// degraded service back to healthy.
	SuccessesToHealthy int `yaml:"successes_to_healthy" mapstructure:"successes_to_healthy"`
	// FindCacheTTL is how long find() results stay cached. Topology and
	// health changes invalidate affected keys eagerly regardless.
	FindCacheTTL time.Duration `yaml:"find_cache_ttl" mapstructure:"find_cache_ttl"`
}

// ApplyDefaults fills zero fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 15 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 3 * time.Second
	}
	if c.FailuresToUnhealthy <= 0 {
		c.FailuresToUnhealthy = 3
	}
	if c.SuccessesToHealthy <= 0 {
		c.SuccessesToHealthy = 2
	}
	if c.FindCacheTTL <= 0 {
		c.FindCacheTTL = 3 * time.Second
	}
}
