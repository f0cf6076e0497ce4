package agent

import (
	"fmt"
	"sync"

	"github.com/gojek/courier-agent/clock"
	"github.com/gojek/courier-agent/config"
)

// DataTopic returns the topic readings are published to, "{topic}/{devid}/data".
func DataTopic(cfg *config.Config) string {
	return cfg.Broker.Topic + "/" + cfg.General.DeviceID + "/data"
}

// ClientIDs issues MQTT client identifiers derived from the topic prefix,
// the device id and the current instant in microseconds.
//
// Two identifiers are never issued for the same microsecond: when the clock
// has not advanced past the last issued value, the value is bumped by one.
type ClientIDs struct {
	prefix string
	device string
	clock  clock.Clock

	mu   sync.Mutex
	last int64
}

// NewClientIDs returns ClientIDs for cfg reading time from c.
func NewClientIDs(cfg *config.Config, c clock.Clock) *ClientIDs {
	return &ClientIDs{
		prefix: cfg.Broker.Topic,
		device: cfg.General.DeviceID,
		clock:  c,
	}
}

// Device returns a "{topic}/{devid}/{micros}" identifier.
func (c *ClientIDs) Device() string {
	return fmt.Sprintf("%s/%s/%d", c.prefix, c.device, c.next())
}

// Topic returns a "{topic}/{micros}" identifier.
func (c *ClientIDs) Topic() string {
	return fmt.Sprintf("%s/%d", c.prefix, c.next())
}

func (c *ClientIDs) next() int64 {
	now := clock.Micros(c.clock.Now())

	c.mu.Lock()
	defer c.mu.Unlock()

	if now <= c.last {
		now = c.last + 1
	}

	c.last = now

	return now
}
