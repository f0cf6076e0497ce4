package agent

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/gojek/courier-agent/config"
	"github.com/gojek/courier-agent/metrics"
)

type PublisherSuite struct {
	suite.Suite
	cfg       *config.Config
	logger    *recordingLogger
	sleeper   *fakeSleeper
	metrics   *recordingCollector
	telemetry *Telemetry
	ctx       context.Context
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	ctx, cancel := context.WithCancel(context.Background())
	s.T().Cleanup(cancel)

	s.ctx = ctx
	s.cfg = testConfig()
	s.logger = &recordingLogger{}
	s.metrics = &recordingCollector{}
	s.telemetry = &Telemetry{}
	s.sleeper = &fakeSleeper{period: time.Second, limit: 3, cancel: cancel}
}

func (s *PublisherSuite) newPublisher() *Publisher {
	return NewPublisher(s.cfg,
		WithLogger(s.logger),
		WithSleepFunc(s.sleeper.Sleep),
		WithMetrics(s.metrics),
		WithTelemetry(s.telemetry),
		WithClock(newFakeClock()),
	)
}

func (s *PublisherSuite) TestRun_PublishesReadings() {
	var published [][]byte

	m := connectedClient(true)
	m.On("Publish", "site/dev1/data", byte(QOSOne), false, mock.Anything).
		Run(func(args mock.Arguments) { published = append(published, args.Get(3).([]byte)) }).
		Return(doneToken(nil))
	stubClients(s.T(), m)

	p := s.newPublisher()
	s.Equal("site/dev1/data", p.Topic())

	s.NoError(p.Run(s.ctx, p.ClientID()))

	s.Require().Len(published, 3)

	for i, body := range published {
		n := float32(i + 1)

		var got Payload
		s.Require().NoError(json.Unmarshal(body, &got))
		s.Equal("dev1", got.DeviceID)
		s.Require().Len(got.Data, 2)
		s.Equal(uint8(1), got.Data[0].SensorID)
		s.InDelta(15.1+n, got.Data[0].Temp, 1e-4)
		s.InDelta(25.5+n, got.Data[0].RH, 1e-4)
		s.Equal(uint8(2), got.Data[1].SensorID)
		s.InDelta(25.1+n, got.Data[1].Temp, 1e-4)
		s.InDelta(55.5+n, got.Data[1].RH, 1e-4)
	}

	s.Contains(string(published[0]), "\n  \"dev_id\": \"dev1\"")
	s.NotEqual(byte('\n'), published[0][len(published[0])-1])

	s.Equal([]time.Duration{time.Second, time.Second, time.Second}, s.sleeper.durations())
	s.Empty(s.logger.find("client disconnected"))
	s.Len(s.logger.find("publish"), 3)
	s.Len(s.logger.find("disconnecting"), 1)
	s.Len(s.logger.find("exiting"), 1)
	s.Equal(int64(3), s.telemetry.Info().Cycles)
	s.Len(s.metrics.byOp(metrics.PublishOp), 3)
	m.AssertCalled(s.T(), "Disconnect", uint(250))
}

func (s *PublisherSuite) TestRun_ReconnectsWithDeviceClientID() {
	dead := connectedClient(false)
	live := connectedClient(true)
	live.On("Publish", "site/dev1/data", byte(QOSOne), false, mock.Anything).Return(doneToken(nil))
	rec := stubClients(s.T(), dead, live)

	s.sleeper.limit = 1

	p := s.newPublisher()
	s.NoError(p.Run(s.ctx, "site/dev1/1704164645000000"))

	ids := rec.clientIDs()
	s.Require().Len(ids, 2)
	s.Equal("site/dev1/1704164645000000", ids[0])
	s.Regexp(regexp.MustCompile(`^site/dev1/\d+$`), ids[1])
	s.NotEqual(ids[0], ids[1])

	s.Equal(ints(1), s.logger.attrValues("client disconnected, attempting to reconnect", "retry"))
	s.Len(s.metrics.byOp(metrics.ReconnectOp), 1)
	s.Equal(int64(1), s.telemetry.Info().Failures)
	s.Equal(ids[1], s.telemetry.Info().ClientID)
	dead.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	live.AssertNumberOfCalls(s.T(), "Publish", 1)
}

func (s *PublisherSuite) TestRun_ExhaustsRetries() {
	m := connectedClient(false)
	m.On("Publish", "site/dev1/data", byte(QOSOne), false, mock.Anything).Return(doneToken(nil))
	rec := stubClients(s.T(), m)

	s.sleeper.cancel = nil

	p := s.newPublisher()
	err := p.Run(s.ctx, p.ClientID())
	s.ErrorIs(err, ErrMaxRetriesExceeded)

	s.Equal(ints(1, 2, 3, 4), s.logger.attrValues("client disconnected, attempting to reconnect", "retry"))
	s.Len(s.logger.find("exceeded maximum retries"), 1)
	s.Len(rec.opts, 4)
	m.AssertNumberOfCalls(s.T(), "Publish", 3)
	m.AssertNotCalled(s.T(), "Disconnect", mock.Anything)
	s.Equal(int64(4), s.telemetry.Info().Failures)
}

func (s *PublisherSuite) TestRun_PublishFailureIsNotCounted() {
	m := connectedClient(true)
	m.On("Publish", "site/dev1/data", byte(QOSOne), false, mock.Anything).Return(doneToken(errors.New("not authorized")))
	rec := stubClients(s.T(), m)

	p := s.newPublisher()
	s.NoError(p.Run(s.ctx, p.ClientID()))

	s.Equal([]time.Duration{
		5 * time.Second, time.Second,
		5 * time.Second, time.Second,
		5 * time.Second, time.Second,
	}, s.sleeper.durations())
	s.Len(s.logger.find("error sending message: not authorized"), 3)
	s.Empty(s.logger.find("client disconnected"))
	s.Len(rec.opts, 1)
	s.Equal(int64(0), s.telemetry.Info().Failures)
}

func (s *PublisherSuite) TestRun_InitialConnectFails() {
	m := &mockClient{}
	m.On("Connect").Return(doneToken(errors.New("connection refused")))
	rec := stubClients(s.T(), m)

	s.sleeper.cancel = nil

	p := s.newPublisher()
	s.ErrorIs(p.Run(s.ctx, p.ClientID()), ErrMaxRetriesExceeded)
	s.Len(rec.opts, 3)
	s.Empty(s.logger.find("publish"))
}

func (s *PublisherSuite) TestRun_CompactEncoder() {
	var body []byte

	m := connectedClient(true)
	m.On("Publish", "site/dev1/data", byte(QOSOne), false, mock.Anything).
		Run(func(args mock.Arguments) { body = args.Get(3).([]byte) }).
		Return(doneToken(nil))
	stubClients(s.T(), m)

	s.sleeper.limit = 1

	p := NewPublisher(s.cfg,
		WithSleepFunc(s.sleeper.Sleep),
		WithClock(newFakeClock()),
		WithCustomEncoder(CompactEncoderFunc),
	)
	s.NoError(p.Run(s.ctx, p.ClientID()))

	s.Equal(`{"dev_id":"dev1","ts":"2024-01-02T03:04:05.000001Z","data":[{"sensor_id":1,"temp":16.1,"rh":26.5},{"sensor_id":2,"temp":26.1,"rh":56.5}]}`, string(body))
}
