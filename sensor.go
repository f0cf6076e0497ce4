package agent

import (
	"time"

	"github.com/gojekfarm/xtools/generic/slice"

	"github.com/gojek/courier-agent/clock"
)

// Reading is one synthetic sensor sample.
type Reading struct {
	SensorID uint8   `json:"sensor_id"`
	Temp     float32 `json:"temp"`
	RH       float32 `json:"rh"`
}

// Payload is the document published every cycle.
type Payload struct {
	DeviceID  string    `json:"dev_id"`
	Timestamp string    `json:"ts"`
	Data      []Reading `json:"data"`
}

var baseReadings = []Reading{
	{SensorID: 1, Temp: 15.1, RH: 25.5},
	{SensorID: 2, Temp: 25.1, RH: 55.5},
}

// Readings returns the readings for cycle n: every base value offset by n.
func Readings(n int) []Reading {
	off := float32(n)

	return slice.Map(baseReadings, func(r Reading) Reading {
		return Reading{SensorID: r.SensorID, Temp: r.Temp + off, RH: r.RH + off}
	})
}

// NewPayload builds the payload for cycle n taken at t.
func NewPayload(deviceID string, t time.Time, n int) Payload {
	return Payload{
		DeviceID:  deviceID,
		Timestamp: clock.Timestamp(t),
		Data:      Readings(n),
	}
}
