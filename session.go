package agent

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gojekfarm/xtools/generic"

	"github.com/gojek/courier-agent/config"
	"github.com/gojek/courier-agent/metrics"
)

const (
	inboundBuffer     = 64
	disconnectQuiesce = 250 * time.Millisecond
)

var newClientFunc = defaultNewClientFunc()

var supportedSchemes = generic.NewSet("tcp", "mqtt", "ssl", "tls", "mqtts", "tcps", "ws", "wss", "unix")

// Session owns one MQTT connection and the channel its inbound messages
// are delivered on. A Session is never reconnected in place: the connector
// builds a new one and the loop replaces the old value.
type Session struct {
	clientID string
	broker   string
	username string

	mqttClient mqtt.Client
	options    *options

	connectTimeout, writeTimeout, receiveTimeout time.Duration

	inbound chan *Message
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	topics generic.Set[string]
}

func newSession(clientID, broker string, b config.Broker, o *options) *Session {
	s := &Session{
		clientID:       clientID,
		broker:         broker,
		username:       b.User,
		options:        o,
		connectTimeout: b.ConnectTimeout.Std(),
		writeTimeout:   b.WriteTimeout.Std(),
		receiveTimeout: b.ReceiveTimeout.Std(),
		inbound:        make(chan *Message, inboundBuffer),
		done:           make(chan struct{}),
		topics:         generic.NewSet[string](),
	}

	s.mqttClient = newClientFunc.Load().(func(*mqtt.ClientOptions) mqtt.Client)(toClientOptions(s, b))

	return s
}

// ClientID returns the identifier this session presented to the broker.
func (s *Session) ClientID() string { return s.clientID }

// Broker returns the resolved broker URI.
func (s *Session) Broker() string { return s.broker }

// IsConnected checks whether the session still has an open connection to the broker.
func (s *Session) IsConnected() bool {
	return s.mqttClient != nil && s.mqttClient.IsConnectionOpen()
}

// Publish sends payload to topic.
func (s *Session) Publish(ctx context.Context, topic string, qos QOSLevel, payload []byte) error {
	start := time.Now()
	err := s.handleToken(ctx, s.mqttClient.Publish(topic, byte(qos), false, payload), ErrPublishTimeout)
	s.options.report(metrics.PublishOp, start, err)

	return err
}

// Subscribe routes messages on topic to the session's inbound channel.
func (s *Session) Subscribe(ctx context.Context, topic string, qos QOSLevel) error {
	start := time.Now()
	err := s.handleToken(ctx, s.mqttClient.Subscribe(topic, byte(qos), s.handleMessage), ErrSubscribeTimeout)
	s.options.report(metrics.SubscribeOp, start, err)

	if err != nil {
		return err
	}

	s.mu.Lock()
	s.topics.Add(topic)
	s.mu.Unlock()

	return nil
}

// Unsubscribe removes any subscription to topics.
func (s *Session) Unsubscribe(ctx context.Context, topics ...string) error {
	start := time.Now()
	err := s.handleToken(ctx, s.mqttClient.Unsubscribe(topics...), ErrUnsubscribeTimeout)
	s.options.report(metrics.UnsubscribeOp, start, err)

	if err != nil {
		return err
	}

	s.mu.Lock()
	s.topics.Delete(topics...)
	s.mu.Unlock()

	return nil
}

// Topics returns the topics currently subscribed, sorted.
func (s *Session) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}

	sort.Strings(topics)

	return topics
}

// Disconnect closes the connection and stops inbound delivery.
func (s *Session) Disconnect() {
	s.mqttClient.Disconnect(uint(disconnectQuiesce / time.Millisecond))
	s.release()
}

// Receive waits for the next inbound message. A nil message with a nil
// error is an empty receive: either nothing arrived within the receive
// timeout or the connection was lost. Callers use it to probe IsConnected.
func (s *Session) Receive(ctx context.Context) (*Message, error) {
	timer := time.NewTimer(s.receiveTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m := <-s.inbound:
		return m, nil
	case <-timer.C:
		return nil, nil
	}
}

// release unblocks any delivery still waiting on the inbound channel.
func (s *Session) release() {
	s.once.Do(func() { close(s.done) })
}

func (s *Session) connect() error {
	t := s.mqttClient.Connect()
	if !t.WaitTimeout(s.connectTimeout) {
		return ErrConnectTimeout
	}

	return t.Error()
}

func (s *Session) handleMessage(_ mqtt.Client, m mqtt.Message) {
	s.deliver(&Message{
		ID:        int(m.MessageID()),
		Topic:     m.Topic(),
		Payload:   m.Payload(),
		QoS:       QOSLevel(m.Qos()),
		Duplicate: m.Duplicate(),
		Retained:  m.Retained(),
	})
}

func (s *Session) deliver(m *Message) {
	select {
	case s.inbound <- m:
	case <-s.done:
	}
}

// signalEmpty wakes a pending Receive without blocking the caller.
func (s *Session) signalEmpty() {
	select {
	case s.inbound <- nil:
	default:
	}
}

func (s *Session) handleToken(ctx context.Context, t mqtt.Token, timeoutErr error) error {
	if err := s.waitForToken(ctx, t, timeoutErr); err != nil {
		return err
	}

	return t.Error()
}

func (s *Session) waitForToken(ctx context.Context, t mqtt.Token, timeoutErr error) error {
	if _, ok := ctx.Deadline(); ok {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Done():
			return nil
		}
	}

	if !t.WaitTimeout(s.writeTimeout) {
		return timeoutErr
	}

	return nil
}

func toClientOptions(s *Session, b config.Broker) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()

	opts.AddBroker(s.broker).
		SetClientID(s.clientID).
		SetUsername(b.User).
		SetPassword(b.Pass).
		SetKeepAlive(b.KeepAlive.Std()).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(b.ConnectTimeout.Std()).
		SetWriteTimeout(b.WriteTimeout.Std()).
		SetDefaultPublishHandler(s.handleMessage).
		SetConnectionLostHandler(connectionLostHandler(s)).
		SetOnConnectHandler(onConnectHandler(s))

	return opts
}

func connectionLostHandler(s *Session) mqtt.ConnectionLostHandler {
	return func(_ mqtt.Client, err error) {
		s.options.logger.Warn(context.Background(), "connection lost", map[string]any{
			"client_id": s.clientID,
			"error":     err,
		})
		s.signalEmpty()
	}
}

func onConnectHandler(s *Session) mqtt.OnConnectHandler {
	return func(_ mqtt.Client) {
		s.options.logger.Debug(context.Background(), "connection established", map[string]any{
			"client_id": s.clientID,
			"broker":    s.broker,
		})
	}
}

func validateBrokerURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBrokerURI, err)
	}

	if !supportedSchemes.HasAll(u.Scheme) {
		return fmt.Errorf("%w: unsupported scheme %q in %q", ErrInvalidBrokerURI, u.Scheme, uri)
	}

	if u.Host == "" && u.Scheme != "unix" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidBrokerURI, uri)
	}

	return nil
}

func defaultNewClientFunc() *atomic.Value {
	v := &atomic.Value{}
	v.Store(mqtt.NewClient)

	return v
}
