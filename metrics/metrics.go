// Package metrics collects counters and durations for the broker operations
// performed by the agent.
package metrics

import (
	"time"

	gokit "github.com/go-kit/kit/metrics"
)

// Counter and Histogram are the go-kit instruments an Aggregator is built from.
type (
	Counter   = gokit.Counter
	Histogram = gokit.Histogram
)

// Operation identifies an agent operation being measured.
type Operation int

const (
	// ConnectOp is a single connect attempt made by the connector.
	ConnectOp Operation = iota
	// ReconnectOp is a detected disconnect that triggers a reconnect.
	ReconnectOp
	PublishOp
	SubscribeOp
	UnsubscribeOp
	// ReceiveOp is an inbound message handed to the subscriber loop.
	ReceiveOp
)

func (o Operation) String() string {
	switch o {
	case ConnectOp:
		return "connect"
	case ReconnectOp:
		return "reconnect"
	case PublishOp:
		return "publish"
	case SubscribeOp:
		return "subscribe"
	case UnsubscribeOp:
		return "unsubscribe"
	case ReceiveOp:
		return "receive"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Operation.
type Result struct {
	OpType      Operation
	Attempts    int
	Successes   int
	Errors      int
	Timeouts    int
	RunDuration time.Duration
}

// Collector receives operation results.
type Collector interface {
	Update(Result)
}

// Aggregator holds the metric collectors for an operation
type Aggregator struct {
	// Attempts is a counter which tracks number of attempts for an operation
	Attempts Counter

	// Timeouts is a counter which tracks number of timeouts for an operation
	Timeouts Counter

	// Errors is a counter which tracks number of errors for an operation
	Errors Counter

	// Successes is a counter which tracks number of successes for an operation
	Successes Counter

	// RunDuration is a histogram which tracks run durations of an operation
	RunDuration Histogram
}

// NoOp discards every Result.
type NoOp struct{}

// Update implements Collector.
func (NoOp) Update(Result) {}
