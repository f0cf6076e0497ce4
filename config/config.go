// Package config handles courier-agent configuration loading.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

const redacted = "******"

// Config holds all courier-agent configuration. It is read once at startup
// and must not be modified afterwards.
type Config struct {
	General General `yaml:"general"`
	Broker  Broker  `yaml:"broker"`
	Consul  Consul  `yaml:"consul"`
	Metrics Metrics `yaml:"metrics"`
}

// General holds the device identity and publish cadence.
type General struct {
	DeviceID string `yaml:"devid" env:"COURIER_AGENT_DEVID"`
	// LocalTime selects the local timezone for timestamps, UTC otherwise.
	LocalTime bool     `yaml:"tz"`
	Periodic  Duration `yaml:"periodic"`
	LogLevel  string   `yaml:"log_level" env:"COURIER_AGENT_LOG_LEVEL"`
	// EchoCredentials prints the broker password in the startup banner.
	EchoCredentials bool `yaml:"echo_credentials"`
}

// Broker defines the MQTT broker connection and retry bounds.
type Broker struct {
	// Host is a broker URI (tcp://, ssl://, ws://, wss://, mqtt://, mqtts://)
	// or consul://<service> to resolve it through Consul.
	Host      string   `yaml:"host" env:"COURIER_AGENT_BROKER_HOST"`
	User      string   `yaml:"user" env:"COURIER_AGENT_BROKER_USER"`
	Pass      string   `yaml:"pass" env:"COURIER_AGENT_BROKER_PASS"`
	QoS       int      `yaml:"qos"`
	Topic     string   `yaml:"topic"`
	Reconnect Duration `yaml:"reconnect"`
	Retries   int8     `yaml:"retries"`

	KeepAlive      Duration `yaml:"keepalive"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout"`
	ReceiveTimeout Duration `yaml:"receive_timeout"`
}

// Consul configures broker discovery for consul:// hosts.
type Consul struct {
	Address     string `yaml:"address" env:"COURIER_AGENT_CONSUL_ADDRESS"`
	Tag         string `yaml:"tag"`
	HealthyOnly bool   `yaml:"healthy_only"`
}

// Metrics configures the optional HTTP endpoint for /metrics and /telemetry.
type Metrics struct {
	Listen string `yaml:"listen" env:"COURIER_AGENT_METRICS_LISTEN"`
}

// Default returns a configuration with every optional field populated.
func Default() *Config {
	return &Config{
		General: General{
			DeviceID:  "device",
			LocalTime: true,
			Periodic:  Duration(time.Second),
			LogLevel:  "info",
		},
		Broker: Broker{
			Host:           "tcp://localhost:1883",
			QoS:            1,
			Topic:          "courier",
			Reconnect:      Duration(5 * time.Second),
			Retries:        10,
			KeepAlive:      Duration(20 * time.Second),
			ConnectTimeout: Duration(30 * time.Second),
			WriteTimeout:   Duration(10 * time.Second),
			ReceiveTimeout: Duration(time.Second),
		},
		Consul: Consul{
			Address:     "localhost:8500",
			HealthyOnly: true,
		},
	}
}

// Load reads the YAML file at path, expands environment variables in it,
// applies COURIER_AGENT_* overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML. The file is created owner-readable only
// since it carries broker credentials.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate reports every problem found in c.
func (c *Config) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(c.General.DeviceID) == "" {
		result = multierror.Append(result, errors.New("general.devid is required"))
	}

	if c.General.Periodic <= 0 {
		result = multierror.Append(result, fmt.Errorf("general.periodic must be positive, got %s", c.General.Periodic))
	}

	if _, err := ParseLogLevel(c.General.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("general.log_level: %w", err))
	}

	if c.Broker.Host == "" {
		result = multierror.Append(result, errors.New("broker.host is required"))
	} else if _, err := url.Parse(c.Broker.Host); err != nil {
		result = multierror.Append(result, fmt.Errorf("broker.host: %w", err))
	}

	if c.Broker.Topic == "" {
		result = multierror.Append(result, errors.New("broker.topic is required"))
	}

	if c.Broker.QoS < 0 || c.Broker.QoS > 2 {
		result = multierror.Append(result, fmt.Errorf("broker.qos must be 0, 1 or 2, got %d", c.Broker.QoS))
	}

	if c.Broker.Reconnect < 0 {
		result = multierror.Append(result, fmt.Errorf("broker.reconnect must not be negative, got %s", c.Broker.Reconnect))
	}

	for _, d := range []struct {
		name  string
		value Duration
	}{
		{name: "keepalive", value: c.Broker.KeepAlive},
		{name: "connect_timeout", value: c.Broker.ConnectTimeout},
		{name: "write_timeout", value: c.Broker.WriteTimeout},
		{name: "receive_timeout", value: c.Broker.ReceiveTimeout},
	} {
		if d.value <= 0 {
			result = multierror.Append(result, fmt.Errorf("broker.%s must be positive, got %s", d.name, d.value))
		}
	}

	return result.ErrorOrNil()
}

// Redacted returns a copy of c with the broker password masked.
func (c Config) Redacted() Config {
	if c.Broker.Pass != "" {
		c.Broker.Pass = redacted
	}

	return c
}
