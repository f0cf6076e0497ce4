package agent

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gojek/courier-agent/config"
)

// Publisher publishes a synthetic Payload to "{topic}/{devid}/data" every
// general.periodic. Liveness is polled at the top of each cycle; a dead
// session is replaced through the connector under a fresh client id.
type Publisher struct {
	loop
}

type publisherState struct {
	session  *Session
	cycle    int
	failures int
}

// NewPublisher creates a Publisher for cfg.
func NewPublisher(cfg *config.Config, opts ...Option) *Publisher {
	return &Publisher{loop: newLoop("publisher", cfg, opts)}
}

// Run connects with clientID and publishes until ctx is done or the
// retries are exhausted. Only the latter is reported as an error.
func (p *Publisher) Run(ctx context.Context, clientID string) error {
	s, err := p.connector.Connect(ctx, clientID)
	if err != nil {
		return ignoreCanceled(ctx, err)
	}

	p.options.telemetry.setSession(s)

	st := &publisherState{session: s}
	defer func() { p.shutdown(st.session) }()

	for {
		if err := p.cycle(ctx, st); err != nil {
			return ignoreCanceled(ctx, err)
		}

		if err := p.options.sleep(ctx, p.cfg.General.Periodic.Std()); err != nil {
			return nil
		}
	}
}

func (p *Publisher) cycle(ctx context.Context, st *publisherState) error {
	st.cycle++
	p.options.telemetry.setCycles(st.cycle)

	now := p.options.clock.Now()

	if !st.session.IsConnected() {
		st.failures++
		if err := p.onDisconnect(ctx, st.failures); err != nil {
			return err
		}

		s, err := p.replace(ctx, st.session, p.ids.Device())
		if err != nil {
			return err
		}

		st.session = s
	}

	p.publish(ctx, st.session, NewPayload(p.cfg.General.DeviceID, now, st.cycle))

	return nil
}

// publish failures are logged and backed off but never counted; a dead
// session is caught by the liveness check of the next cycle.
func (p *Publisher) publish(ctx context.Context, s *Session, payload Payload) {
	buf := bytes.Buffer{}
	if err := p.options.newEncoder(ctx, &buf).Encode(payload); err != nil {
		p.options.logger.Error(ctx, fmt.Errorf("encode payload: %w", err), map[string]any{"topic": p.topic})

		return
	}

	body := bytes.TrimRight(buf.Bytes(), "\n")

	p.options.logger.Info(ctx, "publish", map[string]any{
		"topic":   p.topic,
		"payload": string(body),
	})

	if err := s.Publish(ctx, p.topic, p.qos, body); err != nil {
		p.options.logger.Error(ctx, fmt.Errorf("error sending message: %w", err), map[string]any{
			"topic":     p.topic,
			"client_id": s.ClientID(),
		})
		p.backoff(ctx)
	}
}
