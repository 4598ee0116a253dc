package governor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeedToRPMReferenceValues(t *testing.T) {
	tests := []struct {
		speedKPH uint8
		want     uint16
	}{
		{0, 0},
		{1, 7},    // 100000/13608 truncates, not rounds
		{10, 73},
		{25, 183}, // the default ceiling speed
		{30, 220},
		{50, 367},
		{100, 734},
		{255, 1873},
	}
	for _, tt := range tests {
		got := SpeedToRPM(tt.speedKPH, 2268)
		assert.Equal(t, tt.want, got, "SpeedToRPM(%d, 2268)", tt.speedKPH)
	}
}

func TestSpeedToRPMMonotone(t *testing.T) {
	prev := SpeedToRPM(0, 2268)
	assert.Equal(t, uint16(0), prev)
	for s := 1; s <= 255; s++ {
		got := SpeedToRPM(uint8(s), 2268)
		assert.GreaterOrEqual(t, got, prev, "rpm decreased at %d kph", s)
		prev = got
	}
}

func TestSpeedToRPMOtherWheels(t *testing.T) {
	// Smaller wheel spins faster at the same road speed.
	smaller := SpeedToRPM(25, 1596)
	bigger := SpeedToRPM(25, 2268)
	assert.Greater(t, smaller, bigger)
}
