// Package config loads the servermon daemon configuration from TOML or YAML.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/prestonvasquez/servermon/description"
)

const (
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultTimeout           = 5 * time.Second
	DefaultLogLevel          = "info"
	DefaultAppName           = "servermon"
)

var (
	ErrConfigLoadFailed = errors.New("failed to load configuration")
	ErrNoServers        = errors.New("no servers configured")
	ErrInvalidValue     = errors.New("config value invalid")
)

// Duration is a time.Duration that decodes from strings such as "10s".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(duration)

	return nil
}

// ServerEntry is one monitored server.
type ServerEntry struct {
	Address string `toml:"address" yaml:"address"`
}

// Config is the daemon configuration.
type Config struct {
	LogLevel          string        `toml:"log_level,omitempty" yaml:"log_level,omitempty"`
	HeartbeatInterval Duration      `toml:"heartbeat_interval,omitempty" yaml:"heartbeat_interval,omitempty"`
	Timeout           Duration      `toml:"timeout,omitempty" yaml:"timeout,omitempty"`
	AppName           string        `toml:"app_name,omitempty" yaml:"app_name,omitempty"`
	LegacyHello       bool          `toml:"legacy_hello,omitempty" yaml:"legacy_hello,omitempty"`
	Servers           []ServerEntry `toml:"servers" yaml:"servers"`
}

// Load reads the file at path, picking the decoder from its extension
// (.toml, .yaml or .yml), fills in defaults and validates the result.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", ErrConfigLoadFailed)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file (%s): %w", ErrConfigLoadFailed, path, err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigLoadFailed, path, err)
	}

	return cfg, nil
}

// Parse decodes data in the format named by ext, fills in defaults and
// validates the result.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := &Config{}

	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to decode toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalidValue, ext)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Addresses returns the configured server addresses.
func (c *Config) Addresses() []description.Address {
	addrs := make([]description.Address, 0, len(c.Servers))
	for _, s := range c.Servers {
		addrs = append(addrs, description.Address(strings.TrimSpace(s.Address)))
	}

	return addrs
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = Duration(DefaultHeartbeatInterval)
	}

	if c.Timeout == 0 {
		c.Timeout = Duration(DefaultTimeout)
	}

	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
}

func (c *Config) validate() error {
	if len(c.Servers) == 0 {
		return ErrNoServers
	}

	var errs []error

	seen := make(map[string]struct{}, len(c.Servers))
	for _, s := range c.Servers {
		addr := strings.TrimSpace(s.Address)
		if err := IsValidAddr(addr); err != nil {
			errs = append(errs, fmt.Errorf("%w: server address '%s': %w", ErrInvalidValue, s.Address, err))
			continue
		}

		if _, ok := seen[addr]; ok {
			errs = append(errs, fmt.Errorf("%w: duplicate server address '%s'", ErrInvalidValue, addr))
		}

		seen[addr] = struct{}{}
	}

	if c.HeartbeatInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: heartbeat_interval must be positive", ErrInvalidValue))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: timeout must be positive", ErrInvalidValue))
	}

	return errors.Join(errs...)
}

// IsValidAddr returns an error if the address is not a valid "host:port" string
// with a host.
func IsValidAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	if host == "" {
		return fmt.Errorf("address missing host")
	}

	if port == "" {
		return fmt.Errorf("address missing port")
	}

	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("invalid address port: %s", port)
	}

	return nil
}
