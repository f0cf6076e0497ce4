package consul

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gojek/courier-agent/config"
)

func TestServiceName(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		want    string
		wantErr assert.ErrorAssertionFunc
	}{
		{name: "ConsulHost", host: "consul://mqtt-broker", want: "mqtt-broker", wantErr: assert.NoError},
		{name: "TCPHost", host: "tcp://localhost:1883", wantErr: assert.Error},
		{name: "NoService", host: "consul://", wantErr: assert.Error},
		{name: "Unparseable", host: "consul://%zz", wantErr: assert.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ServiceName(tt.host)
			tt.wantErr(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsConsulHost(t *testing.T) {
	assert.True(t, IsConsulHost("consul://broker"))
	assert.False(t, IsConsulHost("tcp://broker:1883"))
}

func TestFromAgentConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Broker.Host = "consul://broker"
	cfg.Consul.Tag = "primary"

	c, err := FromAgentConfig(cfg)
	assert.NoError(t, err)
	assert.Equal(t, &Config{
		ConsulAddress: "localhost:8500",
		ServiceName:   "broker",
		Tag:           "primary",
		HealthyOnly:   true,
	}, c)

	cfg.Broker.Host = "tcp://localhost:1883"
	_, err = FromAgentConfig(cfg)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.EqualError(t, (&Config{ConsulAddress: "localhost:8500"}).Validate(), "consul: service name is required")
	assert.EqualError(t, (&Config{ServiceName: "broker"}).Validate(), "consul: Consul address is required")
	assert.NoError(t, (&Config{ServiceName: "broker", ConsulAddress: "localhost:8500"}).Validate())
}
