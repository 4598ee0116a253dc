package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVehicleModelStepFromRest(t *testing.T) {
	m := NewVehicleModel(DefaultVehicleParams())

	got := m.Step(100, 0.005)
	assert.InDelta(t, 0.01, got, 1e-12)
	assert.Equal(t, got, m.Speed())
}

func TestVehicleModelDragDecay(t *testing.T) {
	m := NewVehicleModel(DefaultVehicleParams())
	for i := 0; i < 2000; i++ {
		m.Step(50, 0.005)
	}
	peak := m.Speed()
	assert.Greater(t, peak, 5.0)

	prev := peak
	for i := 0; i < 2000; i++ {
		s := m.Step(0, 0.005)
		assert.Less(t, s, prev)
		prev = s
	}
}

func TestVehicleModelSettlesAtDragBalance(t *testing.T) {
	m := NewVehicleModel(DefaultVehicleParams())
	for i := 0; i < 1_000_000; i++ {
		m.Step(8, 0.005)
	}
	// 8% of 0.02 thrust against 0.006 drag balances at 26.67 kph.
	assert.InDelta(t, 26.667, m.Speed(), 0.01)
}

func TestVehicleModelFloorsAtZero(t *testing.T) {
	m := NewVehicleModel(DefaultVehicleParams())
	for i := 0; i < 100; i++ {
		assert.Equal(t, 0.0, m.Step(0, 0.005))
	}
}

func TestDefaultVehicleParams(t *testing.T) {
	p := DefaultVehicleParams()
	assert.Equal(t, 0.02, p.AccelPerPercent)
	assert.Equal(t, 0.006, p.DragPerKPH)
}
