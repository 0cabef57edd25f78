package sensor

import (
	"context"
	"errors"
)

// Measurement kinds carried by a Reading.
const (
	KindVoltage     = "voltage"
	KindCurrent     = "current"
	KindPower       = "power"
	KindEnergy      = "energy"
	KindFrequency   = "frequency"
	KindPowerFactor = "power_factor"
)

// ErrReadFailed is returned by readers when no measurement could be taken.
var ErrReadFailed = errors.New("sensor: read failed")

// Reader returns point-in-time measurements.
type Reader interface {
	Read(ctx context.Context) (Reading, error)
}

// Reading is one sample of every quantity the meter reports.
type Reading struct {
	Voltage     float64 // V
	Current     float64 // A
	Power       float64 // W
	Energy      float64 // kWh
	Frequency   float64 // Hz
	PowerFactor float64
}

// Kinds returns every measurement kind in a fixed order.
func Kinds() []string {
	return []string{KindVoltage, KindCurrent, KindPower, KindEnergy, KindFrequency, KindPowerFactor}
}

// Value returns the field named by kind.
func (r Reading) Value(kind string) (float64, bool) {
	switch kind {
	case KindVoltage:
		return r.Voltage, true
	case KindCurrent:
		return r.Current, true
	case KindPower:
		return r.Power, true
	case KindEnergy:
		return r.Energy, true
	case KindFrequency:
		return r.Frequency, true
	case KindPowerFactor:
		return r.PowerFactor, true
	default:
		return 0, false
	}
}

// Set stores v in the field named by kind. Unknown kinds are ignored.
func (r *Reading) Set(kind string, v float64) {
	switch kind {
	case KindVoltage:
		r.Voltage = v
	case KindCurrent:
		r.Current = v
	case KindPower:
		r.Power = v
	case KindEnergy:
		r.Energy = v
	case KindFrequency:
		r.Frequency = v
	case KindPowerFactor:
		r.PowerFactor = v
	}
}
