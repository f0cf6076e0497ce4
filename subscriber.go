package agent

import (
	"context"
	"fmt"

	"github.com/gojek/courier-agent/clock"
	"github.com/gojek/courier-agent/config"
	"github.com/gojek/courier-agent/metrics"
)

// Subscriber subscribes to "{topic}/{devid}/data" and logs every message it
// receives. An empty receive is the only point where liveness is checked.
type Subscriber struct {
	loop
}

type subscriberState struct {
	session  *Session
	failures int
}

// NewSubscriber creates a Subscriber for cfg.
func NewSubscriber(cfg *config.Config, opts ...Option) *Subscriber {
	return &Subscriber{loop: newLoop("subscriber", cfg, opts)}
}

// Run connects with clientID, subscribes and receives until ctx is done or
// the retries are exhausted. Leaving the receive loop while still connected
// unsubscribes and disconnects.
func (sub *Subscriber) Run(ctx context.Context, clientID string) error {
	s, err := sub.connector.Connect(ctx, clientID)
	if err != nil {
		return ignoreCanceled(ctx, err)
	}

	sub.options.telemetry.setSession(s)

	st := &subscriberState{session: s}
	defer func() { sub.shutdown(st.session, sub.topic) }()

	sub.subscribe(ctx, st.session)
	sub.options.logger.Info(ctx, "ready to receive messages", map[string]any{"topic": sub.topic})

	for {
		if err := sub.receive(ctx, st); err != nil {
			return ignoreCanceled(ctx, err)
		}
	}
}

func (sub *Subscriber) receive(ctx context.Context, st *subscriberState) error {
	msg, err := st.session.Receive(ctx)
	if err != nil {
		return err
	}

	if msg != nil {
		sub.handle(ctx, msg)

		return nil
	}

	if st.session.IsConnected() {
		return nil
	}

	st.failures++
	if err := sub.onDisconnect(ctx, st.failures); err != nil {
		return err
	}

	next, err := sub.replace(ctx, st.session, sub.ids.Topic())
	if err != nil {
		return err
	}

	st.session = next

	sub.options.logger.Info(ctx, "resubscribe topics", map[string]any{"topic": sub.topic})
	sub.subscribe(ctx, st.session)

	return nil
}

// subscribe failures are logged and backed off, not retried.
func (sub *Subscriber) subscribe(ctx context.Context, s *Session) {
	if err := s.Subscribe(ctx, sub.topic, sub.qos); err != nil {
		sub.options.logger.Error(ctx, fmt.Errorf("error subscribing topic: %w", err), map[string]any{
			"topic":     sub.topic,
			"client_id": s.ClientID(),
		})
		sub.backoff(ctx)
	}
}

func (sub *Subscriber) handle(ctx context.Context, msg *Message) {
	sub.options.count(metrics.ReceiveOp)
	sub.options.logger.Info(ctx, "received message", map[string]any{
		"received_at": clock.Timestamp(sub.options.clock.Now()),
		"topic":       msg.Topic,
		"payload":     msg.PayloadString(),
	})
}
