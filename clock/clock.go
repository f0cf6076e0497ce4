// Package clock supplies the current instant to the agent, either in the
// local timezone or in UTC, along with the two renderings the agent needs:
// an RFC 3339 timestamp for payloads and log lines, and a microsecond count
// used to derive client identifiers.
package clock

import (
	"context"
	"time"
)

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// Func allows a plain function to be used as a Clock.
type Func func() time.Time

// Now implements Clock on Func.
func (f Func) Now() time.Time { return f() }

// New returns a Clock reading the system time. When local is true the
// instant carries the local zone offset, otherwise it is fixed to UTC.
func New(local bool) Clock {
	return Func(func() time.Time {
		if local {
			return time.Now().Local()
		}

		return time.Now().UTC()
	})
}

// Timestamp formats t as RFC 3339 with sub-second precision.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// Micros returns t as microseconds since the Unix epoch.
func Micros(t time.Time) int64 {
	return t.UnixMicro()
}

// SleepFunc blocks for a duration or until the context is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d. It returns ctx.Err() if the context is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
