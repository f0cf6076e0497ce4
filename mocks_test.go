package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/mock"

	"github.com/gojek/courier-agent/config"
	"github.com/gojek/courier-agent/metrics"
)

// mocks
type mockClient struct {
	mock.Mock
}

func (m *mockClient) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *mockClient) IsConnectionOpen() bool {
	return m.Called().Bool(0)
}

func (m *mockClient) Connect() mqtt.Token {
	return m.Called().Get(0).(mqtt.Token)
}

func (m *mockClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return m.Called(topic, qos, retained, payload).Get(0).(mqtt.Token)
}

func (m *mockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return m.Called(topic, qos, callback).Get(0).(mqtt.Token)
}

func (m *mockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return m.Called(filters, callback).Get(0).(mqtt.Token)
}

func (m *mockClient) Unsubscribe(topics ...string) mqtt.Token {
	return m.Called(topics).Get(0).(mqtt.Token)
}

func (m *mockClient) AddRoute(topic string, callback mqtt.MessageHandler) {
	m.Called(topic, callback)
}

func (m *mockClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

type mockToken struct {
	mock.Mock
}

func (m *mockToken) Wait() bool {
	return m.Called().Bool(0)
}

func (m *mockToken) WaitTimeout(duration time.Duration) bool {
	return m.Called(duration).Bool(0)
}

func (m *mockToken) Done() <-chan struct{} {
	return m.Called().Get(0).(<-chan struct{})
}

func (m *mockToken) Error() error {
	return m.Called().Error(0)
}

// doneToken returns a token that has already completed with err.
func doneToken(err error) *mockToken {
	ch := make(chan struct{})
	close(ch)

	t := &mockToken{}
	t.On("WaitTimeout", mock.Anything).Return(true).Maybe()
	t.On("Wait").Return(true).Maybe()
	t.On("Done").Return((<-chan struct{})(ch)).Maybe()
	t.On("Error").Return(err).Maybe()

	return t
}

// pendingToken returns a token that never completes.
func pendingToken() *mockToken {
	t := &mockToken{}
	t.On("WaitTimeout", mock.Anything).Return(false).Maybe()
	t.On("Done").Return((<-chan struct{})(make(chan struct{}))).Maybe()
	t.On("Error").Return(nil).Maybe()

	return t
}

// connectedClient returns a client whose Connect succeeds and whose
// connection reports open as given.
func connectedClient(open bool) *mockClient {
	m := &mockClient{}
	m.On("Connect").Return(doneToken(nil))
	m.On("IsConnectionOpen").Return(open).Maybe()
	m.On("Disconnect", uint(250)).Return().Maybe()

	return m
}

// stubClients makes newSession hand out clients in order, repeating the
// last one. It returns the options every client was built with.
func stubClients(t *testing.T, clients ...mqtt.Client) *clientRecorder {
	t.Helper()

	r := &clientRecorder{clients: clients}
	original := newClientFunc.Load()

	newClientFunc.Store(func(o *mqtt.ClientOptions) mqtt.Client {
		return r.next(o)
	})

	t.Cleanup(func() { newClientFunc.Store(original) })

	return r
}

type clientRecorder struct {
	mu      sync.Mutex
	clients []mqtt.Client
	opts    []*mqtt.ClientOptions
}

func (r *clientRecorder) next(o *mqtt.ClientOptions) mqtt.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opts = append(r.opts, o)

	i := len(r.opts) - 1
	if i >= len(r.clients) {
		i = len(r.clients) - 1
	}

	return r.clients[i]
}

func (r *clientRecorder) clientIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.opts))
	for _, o := range r.opts {
		ids = append(ids, o.ClientID)
	}

	return ids
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 7 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeClock starts at a fixed instant and moves one microsecond per read.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now
	c.now = c.now.Add(time.Microsecond)

	return now
}

// fakeSleeper records every wait and returns immediately. Once limit waits
// of period have happened it cancels the loop's context.
type fakeSleeper struct {
	mu     sync.Mutex
	calls  []time.Duration
	period time.Duration
	limit  int
	cancel context.CancelFunc
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)

	n := 0
	for _, c := range s.calls {
		if c == s.period {
			n++
		}
	}
	s.mu.Unlock()

	if s.cancel != nil && d == s.period && n >= s.limit {
		s.cancel()
	}

	return ctx.Err()
}

func (s *fakeSleeper) durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]time.Duration(nil), s.calls...)
}

type logEntry struct {
	level string
	msg   string
	attrs map[string]any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, attrs map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, logEntry{level: level, msg: msg, attrs: attrs})
}

func (l *recordingLogger) Error(_ context.Context, err error, attrs map[string]any) {
	l.record("error", err.Error(), attrs)
}

func (l *recordingLogger) Warn(_ context.Context, msg string, attrs map[string]any) {
	l.record("warn", msg, attrs)
}

func (l *recordingLogger) Info(_ context.Context, msg string, attrs map[string]any) {
	l.record("info", msg, attrs)
}

func (l *recordingLogger) Debug(_ context.Context, msg string, attrs map[string]any) {
	l.record("debug", msg, attrs)
}

// find returns the entries whose message contains substr.
func (l *recordingLogger) find(substr string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []logEntry

	for _, e := range l.entries {
		if strings.Contains(e.msg, substr) {
			out = append(out, e)
		}
	}

	return out
}

// attrValues returns attrs[key] of every entry matching substr.
func (l *recordingLogger) attrValues(substr, key string) []any {
	var out []any
	for _, e := range l.find(substr) {
		out = append(out, e.attrs[key])
	}

	return out
}

type recordingCollector struct {
	mu      sync.Mutex
	results []metrics.Result
}

func (c *recordingCollector) Update(r metrics.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r.RunDuration = 0
	c.results = append(c.results, r)
}

func (c *recordingCollector) byOp(op metrics.Operation) []metrics.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []metrics.Result

	for _, r := range c.results {
		if r.OpType == op {
			out = append(out, r)
		}
	}

	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.General.DeviceID = "dev1"
	cfg.General.LocalTime = false
	cfg.General.Periodic = config.Duration(time.Second)
	cfg.Broker.Host = "tcp://broker.local:1883"
	cfg.Broker.User = "alice"
	cfg.Broker.Pass = "secret"
	cfg.Broker.Topic = "site"
	cfg.Broker.Retries = 3
	cfg.Broker.ReceiveTimeout = config.Duration(5 * time.Millisecond)

	return cfg
}

func ints(n ...int) []any {
	out := make([]any, 0, len(n))
	for _, v := range n {
		out = append(out, v)
	}

	return out
}
