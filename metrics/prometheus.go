package metrics

import (
	"fmt"
	"sync"

	gokitprom "github.com/go-kit/kit/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	subsystemPrefix = "courier_agent"

	metricSuccesses   = "successes"
	metricAttempts    = "attempts"
	metricErrors      = "errors"
	metricTimeouts    = "timeouts"
	metricRunDuration = "run_duration"
)

var (
	operations = []Operation{ConnectOp, ReconnectOp, PublishOp, SubscribeOp, UnsubscribeOp, ReceiveOp}

	counters   = []string{metricSuccesses, metricAttempts, metricErrors, metricTimeouts}
	histograms = []string{metricRunDuration}
)

func subsystem(op Operation) string { return subsystemPrefix + "_" + op.String() }

// NewPrometheus creates a PrometheusMetrics instance which implements the Collector interface
func NewPrometheus() *PrometheusMetrics {
	m := &PrometheusMetrics{operationMap: make(map[Operation]*Aggregator, len(operations))}
	for _, op := range operations {
		m.operationMap[op] = &Aggregator{}
	}

	return m
}

// PrometheusMetrics is a prometheus collector for agent operations
type PrometheusMetrics struct {
	sync.RWMutex
	operationMap map[Operation]*Aggregator
}

// Update implements Collector. Results for collectors that were never added
// to a registry are dropped.
func (p *PrometheusMetrics) Update(r Result) {
	p.RWMutex.Lock()
	defer p.RWMutex.Unlock()

	a, ok := p.operationMap[r.OpType]
	if !ok {
		return
	}

	if r.Attempts > 0 && a.Attempts != nil {
		a.Attempts.Add(float64(r.Attempts))
	}
	if r.Timeouts > 0 && a.Timeouts != nil {
		a.Timeouts.Add(float64(r.Timeouts))
	}
	if r.Errors > 0 && a.Errors != nil {
		a.Errors.Add(float64(r.Errors))
	}
	if r.Successes > 0 && a.Successes != nil {
		a.Successes.Add(float64(r.Successes))
	}
	if r.RunDuration > 0 && a.RunDuration != nil {
		a.RunDuration.Observe(r.RunDuration.Seconds())
	}
}

// AddToRegistry is used to register the collectors with a prometheus.Registerer
func (p *PrometheusMetrics) AddToRegistry(registerer prometheus.Registerer) error {
	p.RWMutex.Lock()
	defer p.RWMutex.Unlock()

	for s, op := range p.operationMap {
		for _, c := range counters {
			v, cv := newCounterRefFrom(prometheus.CounterOpts{
				Name:      c,
				Help:      fmt.Sprintf("%s counter", c),
				Subsystem: subsystem(s),
			}, nil)
			if err := registerer.Register(cv); err != nil {
				return err
			}
			addCounterRefToOp(c, v, op)
		}
	}
	for s, op := range p.operationMap {
		for _, c := range histograms {
			v, cv := newHistogramRefFrom(prometheus.HistogramOpts{
				Name:      c,
				Help:      fmt.Sprintf("%s histogram", c),
				Subsystem: subsystem(s),
			}, nil)
			if err := registerer.Register(cv); err != nil {
				return err
			}
			addHistogramRefToOp(c, v, op)
		}
	}
	return nil
}

func newCounterRefFrom(opts prometheus.CounterOpts, labelNames []string) (*gokitprom.Counter, prometheus.Collector) {
	cv := prometheus.NewCounterVec(opts, labelNames)
	return gokitprom.NewCounter(cv), cv
}

func newHistogramRefFrom(opts prometheus.HistogramOpts, labelNames []string) (*gokitprom.Histogram, prometheus.Collector) {
	hv := prometheus.NewHistogramVec(opts, labelNames)
	return gokitprom.NewHistogram(hv), hv
}

func addCounterRefToOp(name string, c *gokitprom.Counter, a *Aggregator) {
	switch name {
	case metricSuccesses:
		a.Successes = c
	case metricAttempts:
		a.Attempts = c
	case metricErrors:
		a.Errors = c
	case metricTimeouts:
		a.Timeouts = c
	}
}

func addHistogramRefToOp(name string, h *gokitprom.Histogram, a *Aggregator) {
	switch name {
	case metricRunDuration:
		a.RunDuration = h
	}
}
