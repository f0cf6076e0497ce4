package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes human-readable strings
// such as "1s", "1m30s" or "2min 30sec".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	return d.Decode(s)
}

// Decode implements envdecode.Decoder.
func (d *Duration) Decode(s string) error {
	v, err := ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(v)

	return nil
}

var (
	humanPart = regexp.MustCompile(`(\d+)\s*([a-zA-Z]+)`)
	humanFull = regexp.MustCompile(`^(\s*\d+\s*[a-zA-Z]+)+\s*$`)
)

var humanUnits = map[string]time.Duration{
	"nsec": time.Nanosecond, "ns": time.Nanosecond,
	"usec": time.Microsecond, "us": time.Microsecond,
	"msec": time.Millisecond, "ms": time.Millisecond,
	"seconds": time.Second, "second": time.Second, "sec": time.Second, "s": time.Second,
	"minutes": time.Minute, "minute": time.Minute, "min": time.Minute, "m": time.Minute,
	"hours": time.Hour, "hour": time.Hour, "hr": time.Hour, "h": time.Hour,
	"days": 24 * time.Hour, "day": 24 * time.Hour, "d": 24 * time.Hour,
	"weeks": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "w": 7 * 24 * time.Hour,
}

// ParseDuration accepts Go duration strings ("1m30s") as well as the
// space separated unit names older config files use ("1min 30sec", "1day").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("config: empty duration")
	}

	if d, err := time.ParseDuration(strings.ReplaceAll(s, " ", "")); err == nil {
		return d, nil
	}

	if !humanFull.MatchString(s) {
		return 0, fmt.Errorf("config: invalid duration %q", s)
	}

	var total time.Duration

	for _, m := range humanPart.FindAllStringSubmatch(s, -1) {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("config: invalid duration %q: %w", s, err)
		}

		unit, ok := humanUnits[strings.ToLower(m[2])]
		if !ok {
			return 0, fmt.Errorf("config: unknown duration unit %q in %q", m[2], s)
		}

		total += time.Duration(n) * unit
	}

	return total, nil
}
