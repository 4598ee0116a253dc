package governor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeedLimitFirstCallEvaluates(t *testing.T) {
	c := NewSpeedLimitController(DefaultConfig())

	// No interval has to elapse before the first evaluation, and the
	// integrator preload keeps the output from dipping at startup.
	got := c.Apply(100, 0, 0)
	assert.Equal(t, uint8(100), got)
	assert.False(t, c.Limiting())
	assert.Equal(t, float32(100), c.Integral())
	assert.Equal(t, uint8(100), c.ClampedOutput())
}

func TestSpeedLimitHoldsBetweenEvaluations(t *testing.T) {
	c := NewSpeedLimitController(DefaultConfig())
	require.Equal(t, uint8(100), c.Apply(100, 0, 0))

	// Speed jumps over the 25 kph ceiling, but the clamp from the last
	// evaluation stays in force until 60 ms have passed.
	assert.Equal(t, uint8(100), c.Apply(100, 30, 30))
	assert.Equal(t, uint8(100), c.Apply(100, 30, 59))

	got := c.Apply(100, 30, 60)
	assert.Equal(t, uint8(39), got)
	assert.True(t, c.Limiting())
	assert.Equal(t, uint8(39), c.ClampedOutput())
	assert.InDelta(t, 98.52, float64(c.Integral()), 0.001)
}

func TestSpeedLimitRequestDropPassesThroughImmediately(t *testing.T) {
	c := NewSpeedLimitController(DefaultConfig())
	c.Apply(100, 0, 0)
	require.Equal(t, uint8(39), c.Apply(100, 30, 60))
	require.True(t, c.Limiting())

	// Rider backs off below the clamp: no evaluation needed, the lower
	// request wins on this very tick.
	assert.Equal(t, uint8(20), c.Apply(20, 30, 70))
	assert.False(t, c.Limiting())

	// Asking for more again runs into the standing clamp.
	assert.Equal(t, uint8(39), c.Apply(100, 30, 80))
	assert.True(t, c.Limiting())
}

func TestSpeedLimitFloorsAtOnePercent(t *testing.T) {
	c := NewSpeedLimitController(DefaultConfig())

	// Way over the ceiling: raw PID output is deeply negative, but the
	// clamp keeps 1% flowing so torque does not cut out entirely.
	got := c.Apply(100, 100, 0)
	assert.Equal(t, uint8(1), got)
	assert.True(t, c.Limiting())
	assert.InDelta(t, 77.96, float64(c.Integral()), 0.001)
}

func TestSpeedLimitIntegratorStaysBounded(t *testing.T) {
	c := NewSpeedLimitController(DefaultConfig())

	steps := []struct {
		requested uint8
		speedKPH  uint8
	}{
		{100, 0},
		{100, 50},
		{10, 50},
		{10, 0},
		{50, 30},
		{100, 100},
		{5, 100},
		{80, 0},
		{80, 26},
	}
	now := uint32(0)
	for _, s := range steps {
		c.Apply(s.requested, s.speedKPH, now)
		assert.GreaterOrEqual(t, c.Integral(), float32(0), "at t=%d", now)
		assert.LessOrEqual(t, c.Integral(), float32(s.requested), "at t=%d", now)
		now += 60
	}
}

func TestSpeedLimitDormancyReset(t *testing.T) {
	c := NewSpeedLimitController(DefaultConfig())
	require.Equal(t, uint8(1), c.Apply(100, 100, 0))
	require.InDelta(t, 77.96, float64(c.Integral()), 0.001)

	// 2.1 s of silence: integrator re-seeds from the request and the
	// derivative sees no speed jump. Without the reset the stale 7340
	// rpm sample would feed a huge derivative kick.
	got := c.Apply(100, 40, 2100)
	assert.Equal(t, uint8(1), got)
	assert.InDelta(t, 95.6, float64(c.Integral()), 0.001)
}

func TestSpeedLimitZeroRequestBypassesController(t *testing.T) {
	c := NewSpeedLimitController(DefaultConfig())
	c.Apply(100, 0, 0)
	require.Equal(t, uint8(39), c.Apply(100, 30, 60))

	// Zero request returns untouched and freezes all state, clamp
	// included.
	assert.Equal(t, uint8(0), c.Apply(0, 30, 120))
	assert.Equal(t, uint8(39), c.ClampedOutput())
}

func TestSpeedLimitZeroCeilingNeverLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpeedCeilingKPH = 0
	c := NewSpeedLimitController(cfg)

	assert.Equal(t, uint8(77), c.Apply(77, 200, 0))
	assert.Equal(t, uint8(77), c.Apply(77, 200, 60))
	assert.False(t, c.Limiting())
	assert.Equal(t, uint8(0), c.ClampedOutput())
}

func TestSpeedLimitReset(t *testing.T) {
	c := NewSpeedLimitController(DefaultConfig())
	c.Apply(100, 0, 0)
	c.Apply(100, 30, 60)
	require.True(t, c.Limiting())

	c.Reset()
	assert.False(t, c.Limiting())
	assert.Equal(t, float32(0), c.Integral())
	assert.Equal(t, uint8(0), c.ClampedOutput())

	// First call after a reset evaluates immediately, same as startup.
	got := c.Apply(60, 0, 123456)
	assert.Equal(t, uint8(60), got)
	assert.Equal(t, float32(60), c.Integral())
}

func TestSpeedLimitClockWraparound(t *testing.T) {
	c := NewSpeedLimitController(DefaultConfig())
	require.Equal(t, uint8(100), c.Apply(100, 0, 0xFFFFFFC4))

	// 0x20 - 0xFFFFFFC4 wraps to 92 ms: a full interval has elapsed and
	// the evaluation runs on the far side of the rollover.
	got := c.Apply(100, 30, 0x20)
	assert.Equal(t, uint8(39), got)
	assert.True(t, c.Limiting())
}
