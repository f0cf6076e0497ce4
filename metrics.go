package agent

import (
	"time"

	"github.com/gojek/courier-agent/metrics"
)

func (o *options) report(op metrics.Operation, start time.Time, err error) {
	r := metrics.Result{
		OpType:      op,
		Attempts:    1,
		RunDuration: time.Since(start),
	}

	switch {
	case err == nil:
		r.Successes = 1
	case isTimeout(err):
		r.Timeouts = 1
	default:
		r.Errors = 1
	}

	o.metrics.Update(r)
}

func (o *options) count(op metrics.Operation) {
	o.metrics.Update(metrics.Result{OpType: op, Attempts: 1, Successes: 1})
}
