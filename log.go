package agent

import (
	"context"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// WithLogger sets the Logger used by the connector and both loops.
func WithLogger(l Logger) Option { return optionFunc(func(o *options) { o.logger = l }) }

// Logger is the interface that wraps the Info and Error methods.
type Logger interface {
	Error(ctx context.Context, err error, attrs map[string]any)
	Warn(ctx context.Context, msg string, attrs map[string]any)
	Info(ctx context.Context, msg string, attrs map[string]any)
	Debug(ctx context.Context, msg string, attrs map[string]any)
}

var defaultLogger Logger = noOpLogger{}

type noOpLogger struct{}

func (noOpLogger) Error(context.Context, error, map[string]any)  {}
func (noOpLogger) Warn(context.Context, string, map[string]any)  {}
func (noOpLogger) Info(context.Context, string, map[string]any)  {}
func (noOpLogger) Debug(context.Context, string, map[string]any) {}

// UsePahoLogger routes the MQTT library's internal diagnostics to l.
// The library loggers are package globals, so this affects every session.
func UsePahoLogger(l Logger) {
	mqtt.ERROR = &pahoLogger{logger: l, level: errorLevel}
	mqtt.CRITICAL = &pahoLogger{logger: l, level: errorLevel}
	mqtt.WARN = &pahoLogger{logger: l, level: warnLevel}
	mqtt.DEBUG = &pahoLogger{logger: l, level: debugLevel}
}

type logLevel int

const (
	debugLevel logLevel = iota
	warnLevel
	errorLevel
)

type pahoLogger struct {
	logger Logger
	level  logLevel
}

func (l *pahoLogger) Println(v ...interface{}) {
	l.log(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (l *pahoLogger) Printf(format string, v ...interface{}) {
	l.log(fmt.Sprintf(format, v...))
}

func (l *pahoLogger) log(msg string) {
	attrs := map[string]any{"source": "paho"}

	switch l.level {
	case errorLevel:
		l.logger.Error(context.Background(), fmt.Errorf("%s", msg), attrs)
	case warnLevel:
		l.logger.Warn(context.Background(), msg, attrs)
	case debugLevel:
		l.logger.Debug(context.Background(), msg, attrs)
	}
}
