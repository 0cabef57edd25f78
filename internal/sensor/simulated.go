package sensor

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Nominal mains values for the simulated meter.
const (
	nominalVoltage   = 230.0
	voltageJitter    = 4.0
	maxCurrent       = 10.0
	nominalFrequency = 50.0
	frequencyJitter  = 0.05
	minPowerFactor   = 0.9
)

// Simulated produces plausible single-phase mains readings.
//
// With a non-zero fault rate each field independently reads NaN with that
// probability, the way a meter with a loose serial connection behaves.
// Energy accumulates across reads from the computed power.
//
// Not safe for concurrent use; the control loop is its only caller.
type Simulated struct {
	rng       *rand.Rand
	faultRate float64
	now       func() time.Time

	energy   float64
	lastRead time.Time
}

// NewSimulated creates a simulated meter. The seed makes sequences
// reproducible in tests.
func NewSimulated(faultRate float64, seed uint64) *Simulated {
	return &Simulated{
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		faultRate: faultRate,
		now:       time.Now,
	}
}

// Read implements Reader.
func (s *Simulated) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	now := s.now()
	voltage := nominalVoltage + (s.rng.Float64()*2-1)*voltageJitter
	current := s.rng.Float64() * maxCurrent
	pf := minPowerFactor + s.rng.Float64()*(1-minPowerFactor)
	power := voltage * current * pf

	if !s.lastRead.IsZero() {
		hours := now.Sub(s.lastRead).Hours()
		if hours > 0 {
			s.energy += power * hours / 1000
		}
	}
	s.lastRead = now

	r := Reading{
		Voltage:     voltage,
		Current:     current,
		Power:       power,
		Energy:      s.energy,
		Frequency:   nominalFrequency + (s.rng.Float64()*2-1)*frequencyJitter,
		PowerFactor: pf,
	}

	if s.faultRate > 0 {
		for _, kind := range Kinds() {
			if s.rng.Float64() < s.faultRate {
				r.Set(kind, math.NaN())
			}
		}
	}

	return r, nil
}
