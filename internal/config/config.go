package config

import (
	"fmt"
	"time"

	"github.com/daig/daig-node/internal/node"
	"github.com/daig/daig-node/internal/retry"
	"github.com/daig/daig-node/internal/store"
)

// Config represents the complete configuration for the registry process
type Config struct {
	Store    store.Config   `yaml:"store" mapstructure:"store"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Gossip   GossipConfig   `yaml:"gossip" mapstructure:"gossip"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	API      APIConfig      `yaml:"api" mapstructure:"api"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// RetryConfig holds the backoff bounds for remote operations
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	Multiplier  float64       `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter      bool          `yaml:"jitter" mapstructure:"jitter"`
}

// Policy converts the configuration into a retry policy
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
		Multiplier:  c.Multiplier,
		Jitter:      c.Jitter,
	}
}

// RegistryConfig holds the node fleet configuration
type RegistryConfig struct {
	Collection        string        `yaml:"collection" mapstructure:"collection"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	FailureThreshold  int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	Nodes             []NodeSpec    `yaml:"nodes" mapstructure:"nodes"`
}

// NodeSpec declares one node to run in this process
type NodeSpec struct {
	Capabilities []string `yaml:"capabilities" mapstructure:"capabilities"`
}

// GossipConfig holds gossip protocol configuration
type GossipConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	BindPort       int           `yaml:"bind_port" mapstructure:"bind_port"`
	SeedNodes      []string      `yaml:"seed_nodes" mapstructure:"seed_nodes"`
	GossipInterval time.Duration `yaml:"gossip_interval" mapstructure:"gossip_interval"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
	ProbeInterval  time.Duration `yaml:"probe_interval" mapstructure:"probe_interval"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    int    `yaml:"port" mapstructure:"port"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// APIConfig holds the registry HTTP API configuration
type APIConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns the configuration used before any file or
// environment override is applied
func DefaultConfig() *Config {
	policy := retry.DefaultPolicy()

	return &Config{
		Store: store.Config{
			Addr:         "localhost:6379",
			EmulatorHost: "localhost:8080",
		},
		Retry: RetryConfig{
			MaxAttempts: policy.MaxAttempts,
			BaseDelay:   policy.BaseDelay,
			Multiplier:  policy.Multiplier,
			Jitter:      policy.Jitter,
		},
		Registry: RegistryConfig{
			Collection:        node.DefaultCollection,
			HeartbeatInterval: 30 * time.Second,
			FailureThreshold:  node.DefaultFailureThreshold,
			Nodes: []NodeSpec{
				{Capabilities: []string{string(node.CapabilityDataProcessing)}},
			},
		},
		Gossip: GossipConfig{
			BindPort:       7946,
			GossipInterval: 200 * time.Millisecond,
			ProbeTimeout:   500 * time.Millisecond,
			ProbeInterval:  time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		API: APIConfig{
			Enabled:      true,
			Port:         8081,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1")
	}
	if c.Registry.HeartbeatInterval <= 0 {
		return fmt.Errorf("registry.heartbeat_interval must be positive")
	}
	if c.Registry.FailureThreshold < 1 {
		return fmt.Errorf("registry.failure_threshold must be at least 1")
	}
	if len(c.Registry.Nodes) == 0 {
		return fmt.Errorf("registry.nodes must declare at least one node")
	}
	for i, spec := range c.Registry.Nodes {
		if len(spec.Capabilities) == 0 {
			return fmt.Errorf("registry.nodes[%d] must declare at least one capability", i)
		}
		for _, capability := range spec.Capabilities {
			if _, err := node.ParseCapability(capability); err != nil {
				return fmt.Errorf("registry.nodes[%d]: %w", i, err)
			}
		}
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		return fmt.Errorf("api.port must be between 1 and 65535")
	}
	return nil
}

// Parse resolves a node spec onto the capability vocabulary. The spec
// must have passed Validate first; unknown tags are skipped.
func (s NodeSpec) Parse() []node.Capability {
	caps := make([]node.Capability, 0, len(s.Capabilities))
	for _, c := range s.Capabilities {
		capability, err := node.ParseCapability(c)
		if err != nil {
			continue
		}
		caps = append(caps, capability)
	}
	return caps
}
