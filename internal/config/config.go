// Package config loads and validates the static node configuration.
//
// The configuration is read once at startup. A node that cannot tell which
// role it plays, or where its parent lives, must not start at all, so every
// validation failure is reported as ErrInvalidConfig.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a required field is missing or malformed
// for the declared role.
var ErrInvalidConfig = errors.New("invalid config")

// Role is the fixed role a node plays for its whole lifetime.
type Role string

const (
	RoleMaster Role = "master"
	RoleSlave  Role = "slave"
)

// Config holds the node configuration.
type Config struct {
	Role          Role     `yaml:"role"`
	SelfAddress   string   `yaml:"self_address"`
	ParentAddress string   `yaml:"parent_address"`
	Slaves        []string `yaml:"slaves"`
	Name          string   `yaml:"name"`

	// PassTransport hands the transport handle to the start callback.
	PassTransport bool `yaml:"pass_transport"`

	// Timing
	MonitorInterval  time.Duration `yaml:"monitor_interval"`  // Time between monitor ticks
	PeerTimeout      time.Duration `yaml:"peer_timeout"`      // Bound on every outbound peer call
	StaggerStep      time.Duration `yaml:"stagger_step"`      // Failover delay per priority position
	OverrideDuration time.Duration `yaml:"override_duration"` // Default temporary status lifetime
	CacheTTL         time.Duration `yaml:"cache_ttl"`         // Peer status cache window, 0 disables
}

// Default returns a configuration with every timing field populated.
// Role and addresses are left empty and must be supplied.
func Default() *Config {
	return &Config{
		MonitorInterval:  5 * time.Second,
		PeerTimeout:      2 * time.Second,
		StaggerStep:      5 * time.Second,
		OverrideDuration: 60 * time.Second,
		CacheTTL:         0,
	}
}

// Load reads a YAML (or JSON) configuration file, fills unset timing fields
// with defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes raw configuration bytes. JSON documents are accepted since
// they are valid YAML.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = d.MonitorInterval
	}
	if c.PeerTimeout <= 0 {
		c.PeerTimeout = d.PeerTimeout
	}
	if c.StaggerStep <= 0 {
		c.StaggerStep = d.StaggerStep
	}
	if c.OverrideDuration <= 0 {
		c.OverrideDuration = d.OverrideDuration
	}
	if c.CacheTTL < 0 {
		c.CacheTTL = 0
	}
}

// Validate checks that the configuration is unambiguous for its role.
func (c *Config) Validate() error {
	switch c.Role {
	case RoleMaster, RoleSlave:
	case "":
		return fmt.Errorf("%w: role is required", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidConfig, c.Role)
	}

	if c.SelfAddress == "" {
		return fmt.Errorf("%w: self_address is required", ErrInvalidConfig)
	}
	if _, err := splitPort(c.SelfAddress); err != nil {
		return fmt.Errorf("%w: self_address: %v", ErrInvalidConfig, err)
	}

	if c.Role == RoleSlave {
		if c.ParentAddress == "" {
			return fmt.Errorf("%w: parent_address is required for role slave", ErrInvalidConfig)
		}
		if _, err := splitPort(c.ParentAddress); err != nil {
			return fmt.Errorf("%w: parent_address: %v", ErrInvalidConfig, err)
		}
		if c.ParentAddress == c.SelfAddress {
			return fmt.Errorf("%w: parent_address must differ from self_address", ErrInvalidConfig)
		}
	}

	for i, s := range c.Slaves {
		if _, err := splitPort(s); err != nil {
			return fmt.Errorf("%w: slaves[%d]: %v", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

// Port returns the numeric port of SelfAddress.
func (c *Config) Port() int {
	p, _ := splitPort(c.SelfAddress)
	return p
}

func splitPort(addr string) (int, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return 0, fmt.Errorf("bad port %q", port)
	}
	return p, nil
}
