// Package config loads the kinet CLI configuration from a YAML file,
// KINET_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete CLI configuration.
type Config struct {
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Client  ClientConfig  `mapstructure:"client" yaml:"client"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Supply  SupplyConfig  `mapstructure:"supply" yaml:"supply"`
	Bridge  BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
}

// NetworkConfig selects the local interface. Address and Netmask win over
// Interface; with neither set the first up, non-loopback IPv4 interface is
// used.
type NetworkConfig struct {
	Interface string `mapstructure:"interface" yaml:"interface"`
	Address   string `mapstructure:"address" yaml:"address"`
	Netmask   string `mapstructure:"netmask" yaml:"netmask"`
	Bind      string `mapstructure:"bind" yaml:"bind"`
	Port      int    `mapstructure:"port" yaml:"port"`
}

// ClientConfig tunes the send pipeline.
type ClientConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after" yaml:"stale_after"`
	SlowSend   time.Duration `mapstructure:"slow_send" yaml:"slow_send"`
	QueueSize  int           `mapstructure:"queue_size" yaml:"queue_size"`
}

// LogConfig controls logging. An empty File logs to stdout only.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig controls statistics sampling and the Prometheus endpoint.
// An empty Addr disables the endpoint.
type MetricsConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Path     string        `mapstructure:"path" yaml:"path"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// SupplyConfig is the identity of an emulated supply.
type SupplyConfig struct {
	ProtocolVersion int          `mapstructure:"protocol_version" yaml:"protocol_version"`
	Details         string       `mapstructure:"details" yaml:"details"`
	Model           string       `mapstructure:"model" yaml:"model"`
	MAC             string       `mapstructure:"mac" yaml:"mac"`
	Serial          string       `mapstructure:"serial" yaml:"serial"`
	Ports           []PortConfig `mapstructure:"ports" yaml:"ports"`
}

// PortConfig is one output port of an emulated supply.
type PortConfig struct {
	ID   int    `mapstructure:"id" yaml:"id"`
	Type string `mapstructure:"type" yaml:"type"`
}

// BridgeConfig maps one supply port onto BLE lights.
type BridgeConfig struct {
	Port   int                    `mapstructure:"port" yaml:"port"`
	Lights map[string]LightConfig `mapstructure:"lights" yaml:"lights"`
}

// LightConfig is one BLE light. Linux identifies lights by MAC, macOS by
// UUID. The byte fields are DMX channel offsets.
type LightConfig struct {
	MAC       string `mapstructure:"mac" yaml:"mac"`
	UUID      string `mapstructure:"uuid" yaml:"uuid"`
	RedByte   int    `mapstructure:"redByte" yaml:"redByte"`
	GreenByte int    `mapstructure:"greenByte" yaml:"greenByte"`
	BlueByte  int    `mapstructure:"blueByte" yaml:"blueByte"`
}

// Options control Load.
type Options struct {
	// Path of the YAML file.
	Path string
	// Required makes a missing file an error.
	Required bool
	// Flags maps configuration keys such as "network.address" to the
	// command line flags that override them.
	Flags map[string]*pflag.Flag
}

// Load reads the configuration.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KINET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, flag := range opts.Flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", key, err)
		}
	}

	if opts.Path != "" {
		v.SetConfigFile(opts.Path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if opts.Required || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", opts.Path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network.bind", "0.0.0.0")
	v.SetDefault("network.port", 6038)

	v.SetDefault("client.stale_after", "100ms")
	v.SetDefault("client.slow_send", "20ms")
	v.SetDefault("client.queue_size", 1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.interval", "10s")

	v.SetDefault("supply.protocol_version", 1)
	v.SetDefault("supply.details", "M:Color Kinetics Incorporated\nD:kinet emulated supply")
	v.SetDefault("supply.model", "sPDS-60ca")
	v.SetDefault("supply.mac", "02:00:00:00:00:01")
	v.SetDefault("supply.serial", "0000000000000001")
}

// Validate checks values that viper cannot.
func (c *Config) Validate() error {
	if c.Network.Port <= 0 || c.Network.Port > 0xffff {
		return fmt.Errorf("network.port %d out of range", c.Network.Port)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	switch c.Supply.ProtocolVersion {
	case 1, 2:
	default:
		return fmt.Errorf("supply.protocol_version must be 1 or 2, got %d", c.Supply.ProtocolVersion)
	}
	for _, p := range c.Supply.Ports {
		if p.ID < 0 || p.ID > 0xff {
			return fmt.Errorf("supply port id %d out of range", p.ID)
		}
	}
	if c.Bridge.Port < 0 || c.Bridge.Port > 0xff {
		return fmt.Errorf("bridge.port %d out of range", c.Bridge.Port)
	}
	for name, l := range c.Bridge.Lights {
		for _, b := range []int{l.RedByte, l.GreenByte, l.BlueByte} {
			if b < 0 || b >= 512 {
				return fmt.Errorf("light %s: channel %d outside the DMX universe", name, b)
			}
		}
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
