package config

import (
	"fmt"

	"github.com/analyticore/gatekit/breaker"
	"github.com/analyticore/gatekit/cache"
	"github.com/analyticore/gatekit/gateway"
	"github.com/analyticore/gatekit/logger"
	"github.com/analyticore/gatekit/observability"
	"github.com/analyticore/gatekit/registry"
	"github.com/analyticore/gatekit/server"
	"github.com/analyticore/gatekit/validation"
)

// Config is the root configuration for a gatekit process. Every section
// carries its own defaults; an empty Config is valid after ApplyDefaults.
type Config struct {
	// Name identifies this process in logs, metrics and traces.
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"required,oneof=development staging production"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`

	Logging  logger.Config              `yaml:"logging" mapstructure:"logging"`
	Server   server.Config              `yaml:"server" mapstructure:"server"`
	Gateway  gateway.Config             `yaml:"gateway" mapstructure:"gateway"`
	Registry registry.Config            `yaml:"registry" mapstructure:"registry"`
	Breaker  breaker.Config             `yaml:"breaker" mapstructure:"breaker"`
	Redis    cache.RedisConfig          `yaml:"redis" mapstructure:"redis"`
	Metrics  observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
	Tracing  observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
}

// ApplyDefaults fills zero fields across every section and propagates the
// process identity into logging, metrics and tracing.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "gatekit"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}

	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	for _, id := range []struct {
		name, version, env *string
	}{
		{&c.Metrics.ServiceName, &c.Metrics.ServiceVersion, &c.Metrics.Environment},
		{&c.Tracing.ServiceName, &c.Tracing.ServiceVersion, &c.Tracing.Environment},
	} {
		if *id.name == "" {
			*id.name = c.Name
		}
		if *id.version == "" {
			*id.version = c.Version
		}
		if *id.env == "" {
			*id.env = c.Environment
		}
	}

	c.Logging.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Gateway.ApplyDefaults()
	c.Registry.ApplyDefaults()
	c.Breaker.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Metrics.ApplyDefaults()
	c.Tracing.ApplyDefaults()
}

// Validate checks the whole configuration. Struct tags cover the identity
// fields; sections with cross-field rules validate themselves.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config: logging: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config: server: %w", err)
	}
	if err := c.Gateway.Validate(); err != nil {
		return fmt.Errorf("config: gateway: %w", err)
	}
	return nil
}
