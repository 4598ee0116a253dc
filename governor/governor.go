// Package governor implements the drive-current governing filters for an
// electrically assisted vehicle: a closed-loop speed limiter and a pair of
// asymmetric current ramp limiters, composed in a fixed per-tick order.
//
// The package performs no I/O and spawns no goroutines. Time enters every
// call as an explicit millisecond clock value so callers can drive the
// filters from a hardware timer or from synthetic time in tests. One set of
// filter instances serves exactly one motor channel.
package governor

import "fmt"

// Config holds the tuning constants for one motor channel. These are fixed
// at construction; the filters never re-read them mid-ride. Start from
// DefaultConfig, the zero value fails Validate.
type Config struct {
	// WheelCircumferenceMM converts between vehicle speed and wheel rpm.
	WheelCircumferenceMM uint32 `json:"wheel_circumference_mm"`

	// MaxCurrentAmps and RampUpAmpsPerSec together derive the ramp-up step
	// interval: one percentage point per maxCurrent*10/rampRate milliseconds
	// (fixed-point tenths of a second, 25*10/8 = 31 ms with defaults).
	MaxCurrentAmps   uint16 `json:"max_current_amps"`
	RampUpAmpsPerSec uint16 `json:"ramp_up_amps_per_sec"`

	// RampDownStepPercent is removed from the commanded current every
	// RampDownIntervalMS while a drop is being smoothed.
	RampDownStepPercent uint8  `json:"ramp_down_step_percent"`
	RampDownIntervalMS  uint32 `json:"ramp_down_interval_ms"`

	// Speed limit PID gains. float32 keeps the integrator arithmetic
	// identical on 32-bit targets.
	Kp float32 `json:"kp"`
	Ki float32 `json:"ki"`
	Kd float32 `json:"kd"`

	// SpeedCeilingKPH is the speed the limiter holds the vehicle under.
	// Zero disables speed limiting entirely.
	SpeedCeilingKPH uint8 `json:"speed_ceiling_kph"`

	// PIDEvalIntervalMS is the minimum time between PID evaluations. The
	// nominal design period is 50 ms, but the gains are tuned against the
	// 60 ms guard that has always shipped; change both together or not at all.
	PIDEvalIntervalMS uint32 `json:"pid_eval_interval_ms"`

	// DormancyResetMS is the evaluation gap after which the controller
	// memory is considered stale and re-seeded.
	DormancyResetMS uint32 `json:"dormancy_reset_ms"`
}

// DefaultConfig returns the reference tuning for a 25 A drive on a 26-inch
// wheel (2268 mm circumference) with a 25 km/h assist ceiling.
func DefaultConfig() Config {
	return Config{
		WheelCircumferenceMM: 2268,
		MaxCurrentAmps:       25,
		RampUpAmpsPerSec:     8,
		RampDownStepPercent:  5,
		RampDownIntervalMS:   10,
		Kp:                   0.10,
		Ki:                   0.004,
		Kd:                   0.01,
		SpeedCeilingKPH:      25,
		PIDEvalIntervalMS:    60,
		DormancyResetMS:      2000,
	}
}

// Validate rejects configurations that would divide by zero or deadlock a
// ramp. Call it before wiring a Config into live filters; New does.
func (c Config) Validate() error {
	if c.WheelCircumferenceMM == 0 {
		return fmt.Errorf("invalid wheel_circumference_mm: %d", c.WheelCircumferenceMM)
	}
	if c.MaxCurrentAmps == 0 {
		return fmt.Errorf("invalid max_current_amps: %d", c.MaxCurrentAmps)
	}
	if c.RampUpAmpsPerSec == 0 {
		return fmt.Errorf("invalid ramp_up_amps_per_sec: %d", c.RampUpAmpsPerSec)
	}
	if c.RampDownStepPercent == 0 {
		return fmt.Errorf("invalid ramp_down_step_percent: %d", c.RampDownStepPercent)
	}
	if c.RampDownIntervalMS == 0 {
		return fmt.Errorf("invalid ramp_down_interval_ms: %d", c.RampDownIntervalMS)
	}
	return nil
}

// rampUpIntervalMS derives the ramp-up step interval from the configured
// current range and rate. Truncating division, so the reference values give
// 250/8 = 31 ms, not 31.25.
func (c Config) rampUpIntervalMS() uint32 {
	return uint32(c.MaxCurrentAmps) * 10 / uint32(c.RampUpAmpsPerSec)
}

// Request carries one control tick's inputs for a motor channel.
type Request struct {
	Current  uint8 // requested drive current, percent of max, 0-100
	SpeedKPH uint8 // measured vehicle speed
	RampUp   bool  // smooth increases in commanded current
	RampDown bool  // smooth decreases in commanded current
}

// Governor chains the three current filters in their required order: speed
// limit, then ramp-up, then ramp-down. Each stage sees the previous stage's
// output, so callers must not invoke the stages individually.
type Governor struct {
	speedLimit *SpeedLimitController
	rampUp     *RampUpLimiter
	rampDown   *RampDownLimiter
}

// New builds a governor for one motor channel, validating cfg first.
func New(cfg Config) (*Governor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("governor config: %w", err)
	}
	return &Governor{
		speedLimit: NewSpeedLimitController(cfg),
		rampUp:     NewRampUpLimiter(cfg),
		rampDown:   NewRampDownLimiter(cfg),
	}, nil
}

// Tick runs one governing pass and returns the commanded current percentage
// to hand to the drive.
func (g *Governor) Tick(nowMS uint32, req Request) uint8 {
	current := g.speedLimit.Apply(req.Current, req.SpeedKPH, nowMS)
	current = g.rampUp.Apply(current, req.RampUp, nowMS)
	current = g.rampDown.Apply(current, req.RampDown, nowMS)
	return current
}

// Limiting reports whether the speed limiter clamped the request on the most
// recent tick.
func (g *Governor) Limiting() bool {
	return g.speedLimit.Limiting()
}

// Reset clears all filter memory, as after a power cycle.
func (g *Governor) Reset() {
	g.speedLimit.Reset()
	g.rampUp.Reset()
	g.rampDown.Reset()
}

// Diagnostics is a snapshot of the governor's internal state for reporting.
type Diagnostics struct {
	Limiting       bool
	Integral       float32
	ClampedOutput  uint8
	RampUpTarget   uint8
	RampDownTarget uint8
}

// Diagnostics returns the current filter state for logging and monitoring.
func (g *Governor) Diagnostics() Diagnostics {
	return Diagnostics{
		Limiting:       g.speedLimit.Limiting(),
		Integral:       g.speedLimit.Integral(),
		ClampedOutput:  g.speedLimit.ClampedOutput(),
		RampUpTarget:   g.rampUp.Target(),
		RampDownTarget: g.rampDown.Target(),
	}
}

// elapsedMS returns the forward distance from since to now on the wrapping
// 32-bit millisecond clock. The unsigned subtraction stays correct across a
// rollover: elapsedMS(0x10, 0xFFFFFFF0) is 0x20.
func elapsedMS(now, since uint32) uint32 {
	return now - since
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
