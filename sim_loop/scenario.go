package main

import (
	"encoding/json"
	"fmt"
	"os"

	"ebike-governor-core/governor"
)

// Scenario defines one complete ride to drive through the governor.
type Scenario struct {
	Meta     ScenarioMeta     `json:"meta"`
	Timing   ScenarioTiming   `json:"timing"`
	Defaults RideDefaults     `json:"defaults"`
	Segments []RideSegment    `json:"segments"`
	Dynamics VehicleParams    `json:"dynamics"`
	Governor *governor.Config `json:"governor,omitempty"` // nil means governor.DefaultConfig
}

// ScenarioMeta contains scenario metadata.
type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
	Feedback    string `json:"feedback,omitempty"` // "model" (default) or "bus"
}

// ScenarioTiming defines the control cadence and run length.
type ScenarioTiming struct {
	TickMS       uint32  `json:"tick_ms"`
	DurationS    float64 `json:"duration_s"`
	ReportMS     uint32  `json:"report_ms"`
	RealTimeMode bool    `json:"real_time_mode"`
	StartClockMS uint32  `json:"start_clock_ms,omitempty"` // first tick's clock value, for rollover runs
}

// RideDefaults is the rider input in force outside any segment.
type RideDefaults struct {
	ThrottlePct uint8 `json:"throttle_pct"`
	RampUp      bool  `json:"ramp_up"`
	RampDown    bool  `json:"ramp_down"`
}

// RideSegment overrides rider input on [t0, t1). Nil fields inherit the
// defaults; t1 < 0 means until the end of the run.
type RideSegment struct {
	T0          float64 `json:"t0"`
	T1          float64 `json:"t1"`
	ThrottlePct *uint8  `json:"throttle_pct,omitempty"`
	RampUp      *bool   `json:"ramp_up,omitempty"`
	RampDown    *bool   `json:"ramp_down,omitempty"`
	Comment     string  `json:"comment,omitempty"`
}

// DriveInput is the resolved rider input for one tick.
type DriveInput struct {
	ThrottlePct uint8
	RampUp      bool
	RampDown    bool
}

const (
	FeedbackModel = "model"
	FeedbackBus   = "bus"
)

// LoadScenario loads and validates a scenario from a JSON file. Absent
// timing fields get working defaults: 5 ms ticks, 200 ms reports.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}

	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}

	if scen.Timing.TickMS == 0 {
		scen.Timing.TickMS = 5
	}
	if scen.Timing.ReportMS == 0 {
		scen.Timing.ReportMS = 200
	}
	if scen.Meta.Feedback == "" {
		scen.Meta.Feedback = FeedbackModel
	}
	if scen.Dynamics == (VehicleParams{}) {
		scen.Dynamics = DefaultVehicleParams()
	}

	if scen.Timing.DurationS <= 0 {
		return Scenario{}, fmt.Errorf("invalid duration_s: %f", scen.Timing.DurationS)
	}
	if scen.Meta.Feedback != FeedbackModel && scen.Meta.Feedback != FeedbackBus {
		return Scenario{}, fmt.Errorf("invalid feedback %q (want %q or %q)",
			scen.Meta.Feedback, FeedbackModel, FeedbackBus)
	}
	if scen.Meta.Feedback == FeedbackBus && !scen.Timing.RealTimeMode {
		return Scenario{}, fmt.Errorf("bus feedback requires real_time_mode")
	}
	if scen.Defaults.ThrottlePct > 100 {
		return Scenario{}, fmt.Errorf("invalid defaults.throttle_pct: %d", scen.Defaults.ThrottlePct)
	}
	if scen.Dynamics.AccelPerPercent <= 0 || scen.Dynamics.DragPerKPH < 0 {
		return Scenario{}, fmt.Errorf("invalid dynamics: accel_per_percent=%f drag_per_kph=%f",
			scen.Dynamics.AccelPerPercent, scen.Dynamics.DragPerKPH)
	}
	for i, seg := range scen.Segments {
		if seg.T0 < 0 {
			return Scenario{}, fmt.Errorf("segment %d: invalid t0 %f", i, seg.T0)
		}
		if seg.T1 >= 0 && seg.T1 <= seg.T0 {
			return Scenario{}, fmt.Errorf("segment %d: t1 %f not after t0 %f", i, seg.T1, seg.T0)
		}
		if seg.ThrottlePct != nil && *seg.ThrottlePct > 100 {
			return Scenario{}, fmt.Errorf("segment %d: invalid throttle_pct %d", i, *seg.ThrottlePct)
		}
	}

	return scen, nil
}

// EvalDrive resolves the rider input at time t. The first segment covering
// t wins; its nil fields fall through to the defaults.
func EvalDrive(scen *Scenario, t float64) DriveInput {
	in := DriveInput{
		ThrottlePct: scen.Defaults.ThrottlePct,
		RampUp:      scen.Defaults.RampUp,
		RampDown:    scen.Defaults.RampDown,
	}

	for _, seg := range scen.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = scen.Timing.DurationS
		}
		if t >= seg.T0 && t < t1 {
			if seg.ThrottlePct != nil {
				in.ThrottlePct = *seg.ThrottlePct
			}
			if seg.RampUp != nil {
				in.RampUp = *seg.RampUp
			}
			if seg.RampDown != nil {
				in.RampDown = *seg.RampDown
			}
			break
		}
	}

	return in
}
