// Package consul resolves the broker URI from the instances of a Consul service.
package consul

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"

	consulapi "github.com/hashicorp/consul/api"

	agent "github.com/gojek/courier-agent"
)

// ErrNoInstances is returned when Consul knows no (healthy) instance of the service.
var ErrNoInstances = errors.New("consul: no service instances found")

type healthAPI interface {
	Service(service, tag string, passingOnly bool, q *consulapi.QueryOptions) ([]*consulapi.ServiceEntry, *consulapi.QueryMeta, error)
}

// Resolver implements agent.Resolver on top of the Consul health API. Every
// Resolve issues one query, so a broker that moved between connect attempts
// is picked up. Instances are handed out round-robin.
type Resolver struct {
	health      healthAPI
	serviceName string
	tag         string
	healthyOnly bool
	scheme      string

	next atomic.Uint64
}

var _ agent.Resolver = (*Resolver)(nil)

func NewResolver(config *Config) (*Resolver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = config.ConsulAddress

	client, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("consul: failed to create client: %w", err)
	}

	return newResolver(config, client.Health()), nil
}

func newResolver(config *Config, h healthAPI) *Resolver {
	scheme := config.BrokerScheme
	if scheme == "" {
		scheme = "tcp"
	}

	return &Resolver{
		health:      h,
		serviceName: config.ServiceName,
		tag:         config.Tag,
		healthyOnly: config.HealthyOnly,
		scheme:      scheme,
	}
}

// Resolve returns "{scheme}://{address}:{port}" of one instance of the service.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)

	entries, _, err := r.health.Service(r.serviceName, r.tag, r.healthyOnly, q)
	if err != nil {
		return "", fmt.Errorf("consul: failed to query service %q: %w", r.serviceName, err)
	}

	addrs := toAddresses(entries)
	if len(addrs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoInstances, r.serviceName)
	}

	i := (r.next.Add(1) - 1) % uint64(len(addrs))

	return r.scheme + "://" + addrs[i], nil
}

func toAddresses(entries []*consulapi.ServiceEntry) []string {
	addrs := make([]string, 0, len(entries))

	for _, e := range entries {
		if e == nil || e.Service == nil {
			continue
		}

		host := e.Service.Address
		if host == "" && e.Node != nil {
			host = e.Node.Address
		}

		if host == "" || e.Service.Port == 0 {
			continue
		}

		addrs = append(addrs, net.JoinHostPort(host, strconv.Itoa(e.Service.Port)))
	}

	return addrs
}
