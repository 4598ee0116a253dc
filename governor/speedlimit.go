package governor

// SpeedLimitController holds commanded current back so the vehicle stays
// under the configured speed ceiling. A PID loop evaluates at a fixed
// cadence against wheel rpm (scaled x10 for resolution); between
// evaluations the last clamp stays in force, while a request that falls to
// or below the clamp passes through on the very tick it drops.
//
// The integrator is clamped to [0, requested] every evaluation so it cannot
// wind up past what the rider asked for, and the derivative acts on the
// measured rpm rather than the error so a ceiling change cannot kick the
// output.
type SpeedLimitController struct {
	cfg           Config
	ceilingRPMx10 uint16

	lastEvalMS      uint32
	evalSet         bool
	lastSpeedRPMx10 uint16
	integral        float32
	clampedOutput   uint8
	limiting        bool
}

// NewSpeedLimitController derives the rpm ceiling from cfg. A zero speed
// ceiling yields a controller that never limits.
func NewSpeedLimitController(cfg Config) *SpeedLimitController {
	return &SpeedLimitController{
		cfg:           cfg,
		ceilingRPMx10: SpeedToRPM(cfg.SpeedCeilingKPH, cfg.WheelCircumferenceMM) * 10,
	}
}

// Apply returns the current allowed this tick given the measured speed.
// A zero request or a zero ceiling is a no-op: the request is returned
// unchanged and no controller state moves.
func (c *SpeedLimitController) Apply(requested uint8, speedKPH uint8, nowMS uint32) uint8 {
	if c.ceilingRPMx10 == 0 || requested == 0 {
		return requested
	}

	elapsed := elapsedMS(nowMS, c.lastEvalMS)
	if !c.evalSet || elapsed >= c.cfg.PIDEvalIntervalMS {
		currentRPMx10 := SpeedToRPM(speedKPH, c.cfg.WheelCircumferenceMM) * 10

		// After a long gap (or on the very first evaluation) the controller
		// memory is stale. Re-seed the integrator with the request so the
		// output does not dip while it climbs up from zero.
		if !c.evalSet || elapsed >= c.cfg.DormancyResetMS {
			c.lastSpeedRPMx10 = currentRPMx10
			c.integral = float32(requested)
		}

		err := int32(c.ceilingRPMx10) - int32(currentRPMx10)

		c.integral += c.cfg.Ki * float32(err)
		c.integral = clampF32(c.integral, 0, float32(requested))

		dInput := int32(currentRPMx10) - int32(c.lastSpeedRPMx10)

		out := int32(c.cfg.Kp*float32(err) + c.integral - c.cfg.Kd*float32(dInput))
		switch {
		case out < 1:
			// Keep the motor turning at 1% even when fully limited so the
			// torque does not cut in and out.
			c.clampedOutput = 1
		case out > int32(requested):
			c.clampedOutput = requested
		default:
			c.clampedOutput = uint8(out)
		}

		c.lastSpeedRPMx10 = currentRPMx10
		c.lastEvalMS = nowMS
		c.evalSet = true
	}

	if requested > c.clampedOutput {
		c.limiting = true
		return c.clampedOutput
	}
	c.limiting = false
	return requested
}

// Limiting reports whether the most recent Apply clamped the request.
func (c *SpeedLimitController) Limiting() bool {
	return c.limiting
}

// Integral returns the integrator value, for diagnostics.
func (c *SpeedLimitController) Integral() float32 {
	return c.integral
}

// ClampedOutput returns the ceiling computed by the last PID evaluation.
func (c *SpeedLimitController) ClampedOutput() uint8 {
	return c.clampedOutput
}

// Reset clears the controller memory, as after a power cycle. The next
// Apply with a non-zero request evaluates immediately.
func (c *SpeedLimitController) Reset() {
	c.lastEvalMS = 0
	c.evalSet = false
	c.lastSpeedRPMx10 = 0
	c.integral = 0
	c.clampedOutput = 0
	c.limiting = false
}
