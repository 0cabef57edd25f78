package telemetry

import (
	"fmt"
	"math"
	"time"

	"github.com/homesync/node-agent/internal/diag"
	"github.com/homesync/node-agent/internal/sensor"
)

// Sanitize replaces every faulty field of r with zero.
//
// A field is faulty when it is NaN, infinite or negative. Each replacement
// is recorded as a sensor_fault warning. No field is ever dropped, so the
// telemetry cadence holds even while the meter is failing.
func Sanitize(r sensor.Reading, rec diag.Recorder, now time.Duration) sensor.Reading {
	out := r
	for _, kind := range sensor.Kinds() {
		v, _ := r.Value(kind)
		if !faulty(v) {
			continue
		}
		out.Set(kind, 0)
		rec.Record(diag.Event{
			Kind:     diag.KindSensorFault,
			Severity: diag.SeverityWarning,
			Source:   "telemetry",
			Detail:   fmt.Sprintf("%s read %v, substituted 0", kind, v),
			Uptime:   now,
		})
	}
	return out
}

func faulty(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}
