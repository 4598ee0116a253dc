package main

// VehicleParams holds the coefficients of the longitudinal model used when
// a scenario feeds the governor from simulation instead of the bus.
// Commanded current produces thrust, speed-proportional drag opposes it.
type VehicleParams struct {
	AccelPerPercent float64 `json:"accel_per_percent"`
	DragPerKPH      float64 `json:"drag_per_kph"`
}

// DefaultVehicleParams matches a light e-bike on flat ground: full current
// pulls about 2 kph/s from standstill and drag balances it near 330 kph,
// so the speed limiter is what actually caps the ride.
func DefaultVehicleParams() VehicleParams {
	return VehicleParams{
		AccelPerPercent: 0.02,
		DragPerKPH:      0.006,
	}
}

// VehicleModel integrates vehicle speed from commanded current.
type VehicleModel struct {
	params   VehicleParams
	speedKPH float64
}

func NewVehicleModel(params VehicleParams) *VehicleModel {
	return &VehicleModel{params: params}
}

// Step advances the model by dtS seconds under the given drive current and
// returns the new speed. There is no reverse: speed floors at zero.
func (m *VehicleModel) Step(commandedPct uint8, dtS float64) float64 {
	accel := m.params.AccelPerPercent*float64(commandedPct) - m.params.DragPerKPH*m.speedKPH
	m.speedKPH += accel * dtS
	if m.speedKPH < 0 {
		m.speedKPH = 0
	}
	return m.speedKPH
}

// Speed returns the current model speed in kph.
func (m *VehicleModel) Speed() float64 {
	return m.speedKPH
}
