package governor

// RampUpLimiter bounds how fast commanded current may rise: one percentage
// point per step interval, derived from the configured maximum current and
// ramp rate (31 ms with the defaults). Decreases pass through untouched;
// smoothing those is RampDownLimiter's job.
//
// While the limiter is enabled and the request sits above the authorized
// target, increases are metered. Disabling the limiter, or a request at or
// below the target, snaps the target to the request at once and clears the
// step timer.
type RampUpLimiter struct {
	intervalMS uint32

	target     uint8  // highest current authorized so far, percent
	lastStepMS uint32 // clock value of the previous metered step
	timerSet   bool
}

// NewRampUpLimiter derives the step interval from cfg.
func NewRampUpLimiter(cfg Config) *RampUpLimiter {
	return &RampUpLimiter{intervalMS: cfg.rampUpIntervalMS()}
}

// Apply returns the current the limiter authorizes this tick.
func (l *RampUpLimiter) Apply(requested uint8, enabled bool, nowMS uint32) uint8 {
	if !enabled || requested <= l.target {
		l.target = requested
		l.timerSet = false
		return requested
	}

	if !l.timerSet {
		// No reference point after a snap: step right away and time the
		// next step from here.
		l.target++
		l.lastStepMS = nowMS
		l.timerSet = true
	} else if elapsedMS(nowMS, l.lastStepMS) >= l.intervalMS {
		l.target++
		// Advance by the exact interval, not to now, so tick jitter cannot
		// accumulate into a slower ramp.
		l.lastStepMS += l.intervalMS
	}
	return l.target
}

// Target reports the highest current authorized so far.
func (l *RampUpLimiter) Target() uint8 {
	return l.target
}

// Reset forgets all ramp progress.
func (l *RampUpLimiter) Reset() {
	l.target = 0
	l.timerSet = false
}

// RampDownLimiter bounds how fast commanded current may fall: up to the
// configured step every interval (5 points per 10 ms with the defaults),
// with the final step shortened to land exactly on the request. The faster
// rate relative to ramp-up keeps the drive responsive when torque is being
// withdrawn. Increases pass through untouched.
type RampDownLimiter struct {
	stepPercent uint8
	intervalMS  uint32

	target     uint8
	lastStepMS uint32
	timerSet   bool
}

// NewRampDownLimiter copies the step size and interval from cfg.
func NewRampDownLimiter(cfg Config) *RampDownLimiter {
	return &RampDownLimiter{
		stepPercent: cfg.RampDownStepPercent,
		intervalMS:  cfg.RampDownIntervalMS,
	}
}

// Apply returns the current the limiter authorizes this tick.
func (l *RampDownLimiter) Apply(requested uint8, enabled bool, nowMS uint32) uint8 {
	if !enabled || requested >= l.target {
		l.target = requested
		l.timerSet = false
		return requested
	}

	if !l.timerSet {
		l.stepDown(requested)
		l.lastStepMS = nowMS
		l.timerSet = true
	} else if elapsedMS(nowMS, l.lastStepMS) >= l.intervalMS {
		l.stepDown(requested)
		l.lastStepMS += l.intervalMS
	}
	return l.target
}

// stepDown moves the target one step toward requested without overshooting.
func (l *RampDownLimiter) stepDown(requested uint8) {
	if gap := l.target - requested; gap >= l.stepPercent {
		l.target -= l.stepPercent
	} else {
		l.target -= gap
	}
}

// Target reports the current the limiter is holding.
func (l *RampDownLimiter) Target() uint8 {
	return l.target
}

// Reset forgets all ramp progress.
func (l *RampDownLimiter) Reset() {
	l.target = 0
	l.timerSet = false
}
