package consul

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gojek/courier-agent/config"
)

// Scheme marks a broker host that names a Consul service, e.g. consul://mqtt-broker.
const Scheme = "consul"

// Config holds what the Resolver needs to query Consul.
type Config struct {
	ConsulAddress string
	ServiceName   string
	Tag           string
	HealthyOnly   bool
	// BrokerScheme is the scheme of the resolved broker URI. Default is "tcp".
	BrokerScheme string
}

// FromAgentConfig builds a Config for the consul:// host of cfg.
func FromAgentConfig(cfg *config.Config) (*Config, error) {
	svc, err := ServiceName(cfg.Broker.Host)
	if err != nil {
		return nil, err
	}

	return &Config{
		ConsulAddress: cfg.Consul.Address,
		ServiceName:   svc,
		Tag:           cfg.Consul.Tag,
		HealthyOnly:   cfg.Consul.HealthyOnly,
	}, nil
}

// IsConsulHost reports whether host uses the consul:// scheme.
func IsConsulHost(host string) bool {
	return strings.HasPrefix(host, Scheme+"://")
}

// ServiceName extracts the service from a consul://<service> host.
func ServiceName(host string) (string, error) {
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("consul: %w", err)
	}

	if u.Scheme != Scheme {
		return "", fmt.Errorf("consul: host %q does not use the %s:// scheme", host, Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("consul: host %q has no service name", host)
	}

	return u.Host, nil
}

func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("consul: service name is required")
	}

	if c.ConsulAddress == "" {
		return errors.New("consul: Consul address is required")
	}

	return nil
}
