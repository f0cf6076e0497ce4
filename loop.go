package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/gojek/courier-agent/config"
	"github.com/gojek/courier-agent/metrics"
)

// loop carries what the publisher and subscriber share: the connector, the
// retry bound and the disconnect handling both of them run.
type loop struct {
	mode      string
	topic     string
	qos       QOSLevel
	retries   int
	cfg       *config.Config
	connector *Connector
	ids       *ClientIDs
	options   *options
}

func newLoop(mode string, cfg *config.Config, opts []Option) loop {
	o := newOptions(cfg.General.LocalTime, opts)
	o.telemetry.setMode(mode)

	return loop{
		mode:      mode,
		topic:     DataTopic(cfg),
		qos:       QOSLevel(cfg.Broker.QoS),
		retries:   int(cfg.Broker.Retries),
		cfg:       cfg,
		connector: newConnector(cfg, o),
		ids:       NewClientIDs(cfg, o.clock),
		options:   o,
	}
}

// Topic returns the topic the loop publishes to or subscribes on.
func (l *loop) Topic() string { return l.topic }

// ClientID derives a fresh "{topic}/{devid}/{micros}" identifier, the form
// both modes use for their first session.
func (l *loop) ClientID() string { return l.ids.Device() }

// onDisconnect records the failures-th detected disconnect. It returns an
// error wrapping ErrMaxRetriesExceeded once failures goes past the bound.
func (l *loop) onDisconnect(ctx context.Context, failures int) error {
	l.options.telemetry.setFailures(failures)
	l.options.count(metrics.ReconnectOp)
	l.options.logger.Warn(ctx, "client disconnected, attempting to reconnect", map[string]any{
		"mode":  l.mode,
		"retry": failures,
	})

	if failures > l.retries {
		err := fmt.Errorf("%w: %d disconnects detected", ErrMaxRetriesExceeded, failures)
		l.options.logger.Error(ctx, err, map[string]any{
			"mode":  l.mode,
			"retry": failures,
		})

		return err
	}

	return nil
}

// replace connects a new session under clientID. The old session is
// dropped, never reused.
func (l *loop) replace(ctx context.Context, old *Session, clientID string) (*Session, error) {
	old.release()

	s, err := l.connector.Connect(ctx, clientID)
	if err != nil {
		return nil, err
	}

	l.options.telemetry.setSession(s)

	return s, nil
}

// backoff waits broker.reconnect after a tolerated failure.
func (l *loop) backoff(ctx context.Context) {
	_ = l.options.sleep(ctx, l.cfg.Broker.Reconnect.Std())
}

// shutdown unsubscribes topics and disconnects s if it is still connected.
func (l *loop) shutdown(s *Session, topics ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.Broker.WriteTimeout.Std())
	defer cancel()

	if s.IsConnected() {
		l.options.logger.Info(ctx, "disconnecting", map[string]any{
			"mode":      l.mode,
			"client_id": s.ClientID(),
		})

		var result *multierror.Error

		for _, topic := range topics {
			if err := s.Unsubscribe(ctx, topic); err != nil {
				result = multierror.Append(result, fmt.Errorf("unsubscribe %s: %w", topic, err))
			}
		}

		s.Disconnect()

		if err := result.ErrorOrNil(); err != nil {
			l.options.logger.Error(ctx, err, map[string]any{"mode": l.mode})
		}
	}

	s.release()
	l.options.logger.Info(ctx, "exiting", map[string]any{"mode": l.mode})
}

// ignoreCanceled turns the error of an operation interrupted by ctx into nil.
func ignoreCanceled(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}

	return err
}
