package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/gojek/courier-agent/config"
	"github.com/gojek/courier-agent/metrics"
)

// Connector builds connected Sessions. Attempts are synchronous and
// separated by the fixed broker.reconnect delay; the connector gives up
// once the attempt count goes past broker.retries.
type Connector struct {
	broker  config.Broker
	options *options
}

// NewConnector creates a Connector for the broker section of cfg.
func NewConnector(cfg *config.Config, opts ...Option) *Connector {
	return newConnector(cfg, newOptions(cfg.General.LocalTime, opts))
}

func newConnector(cfg *config.Config, o *options) *Connector {
	if o.resolver == nil {
		o.resolver = StaticResolver(cfg.Broker.Host)
	}

	return &Connector{broker: cfg.Broker, options: o}
}

// Connect returns a connected Session presenting clientID to the broker.
// Resolution, client construction and connect failures are all counted as
// failed attempts. It returns an error wrapping ErrMaxRetriesExceeded when
// the attempts are exhausted, or the context error if ctx is done first.
func (c *Connector) Connect(ctx context.Context, clientID string) (*Session, error) {
	for attempt := 1; ; {
		s, err := c.attempt(ctx, clientID)
		if err == nil {
			c.options.logger.Info(ctx, "successfully connected", map[string]any{
				"attempt":   attempt,
				"client_id": clientID,
				"broker":    s.Broker(),
			})

			return s, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c.options.logger.Error(ctx, fmt.Errorf("unable to connect, retrying: %w", err), map[string]any{
			"attempt":   attempt,
			"client_id": clientID,
		})

		if err := c.options.sleep(ctx, c.broker.Reconnect.Std()); err != nil {
			return nil, err
		}

		attempt++
		if attempt > int(c.broker.Retries) {
			err := fmt.Errorf("%w: gave up connecting after %d attempts", ErrMaxRetriesExceeded, attempt-1)
			c.options.logger.Error(ctx, err, map[string]any{
				"attempt":   attempt,
				"client_id": clientID,
			})

			return nil, err
		}
	}
}

func (c *Connector) attempt(ctx context.Context, clientID string) (*Session, error) {
	start := time.Now()
	s, err := c.dial(ctx, clientID)
	c.options.report(metrics.ConnectOp, start, err)

	return s, err
}

func (c *Connector) dial(ctx context.Context, clientID string) (*Session, error) {
	broker, err := c.options.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve broker: %w", err)
	}

	if err := validateBrokerURI(broker); err != nil {
		return nil, err
	}

	s := newSession(clientID, broker, c.broker, c.options)
	if err := s.connect(); err != nil {
		return nil, err
	}

	return s, nil
}
