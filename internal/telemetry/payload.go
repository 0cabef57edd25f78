package telemetry

import (
	"strconv"
	"time"
)

// Timestamp converts device uptime to the integer seconds carried in payloads.
func Timestamp(uptime time.Duration) int64 {
	return int64(uptime / time.Second)
}

// FormatMeasurement renders {"value":<2-decimal>,"timestamp":<seconds>}.
func FormatMeasurement(value float64, uptime time.Duration) []byte {
	b := make([]byte, 0, 48)
	b = append(b, `{"value":`...)
	b = strconv.AppendFloat(b, value, 'f', 2, 64)
	b = append(b, `,"timestamp":`...)
	b = strconv.AppendInt(b, Timestamp(uptime), 10)
	b = append(b, '}')
	return b
}

// FormatState renders {"state":<true|false>,"timestamp":<seconds>}.
func FormatState(on bool, uptime time.Duration) []byte {
	b := make([]byte, 0, 40)
	b = append(b, `{"state":`...)
	b = strconv.AppendBool(b, on)
	b = append(b, `,"timestamp":`...)
	b = strconv.AppendInt(b, Timestamp(uptime), 10)
	b = append(b, '}')
	return b
}
