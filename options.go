package agent

import (
	"github.com/gojek/courier-agent/clock"
	"github.com/gojek/courier-agent/metrics"
)

// Option allows to configure the behaviour of the Connector, Publisher and Subscriber.
type Option interface{ apply(*options) }

// WithClock sets the Clock used for timestamps and client identifiers.
// Default is the system clock in the zone selected by general.tz.
func WithClock(c clock.Clock) Option {
	return optionFunc(func(o *options) {
		o.clock = c
	})
}

// WithSleepFunc replaces the function used for every backoff and publish period wait.
func WithSleepFunc(f clock.SleepFunc) Option {
	return optionFunc(func(o *options) {
		o.sleep = f
	})
}

// WithResolver sets the Resolver consulted for the broker URI on every connect attempt.
// Default resolves to broker.host as configured.
func WithResolver(r Resolver) Option {
	return optionFunc(func(o *options) {
		o.resolver = r
	})
}

// WithMetrics sets the metrics.Collector which receives operation results.
func WithMetrics(c metrics.Collector) Option {
	return optionFunc(func(o *options) {
		o.metrics = c
	})
}

// WithTelemetry shares t with the loop so the current session state can be observed.
func WithTelemetry(t *Telemetry) Option {
	return optionFunc(func(o *options) {
		o.telemetry = t
	})
}

// WithCustomEncoder allows to transform payloads into the desired message bytes.
func WithCustomEncoder(encoderFunc EncoderFunc) Option { return encoderFunc }

type options struct {
	logger     Logger
	clock      clock.Clock
	sleep      clock.SleepFunc
	resolver   Resolver
	metrics    metrics.Collector
	telemetry  *Telemetry
	newEncoder EncoderFunc
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

func newOptions(localTime bool, opts []Option) *options {
	o := &options{
		logger:     defaultLogger,
		clock:      clock.New(localTime),
		sleep:      clock.Sleep,
		metrics:    metrics.NoOp{},
		newEncoder: DefaultEncoderFunc,
	}

	for _, opt := range opts {
		opt.apply(o)
	}

	if o.telemetry == nil {
		o.telemetry = &Telemetry{}
	}

	return o
}
