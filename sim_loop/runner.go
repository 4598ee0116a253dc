package main

import (
	"context"
	"fmt"
	"time"

	"ebike-governor-core/governor"
	"ebike-governor-core/utils"
)

type RunnerConfig struct {
	Interface    string
	ScenarioPath string
}

// Runner drives one scenario through the governor, publishing the drive
// command every control tick and taking speed feedback from either the
// vehicle model or the bus.
type Runner struct {
	cfg    RunnerConfig
	log    *utils.Logger
	bus    *utils.BusMap
	scen   Scenario
	writer utils.CANWriter
	reader utils.CANReader
	gov    *governor.Governor
	model  *VehicleModel

	sent   uint64
	busKPH float64 // latest wheel speed seen on the bus
	lastRx time.Time
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	scen, err := LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	writer, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
	if err != nil {
		return nil, err
	}
	reader, err := utils.NewSocketCANReader(ctx, cfg.Interface)
	if err != nil {
		writer.Close()
		return nil, err
	}

	r, err := newRunner(cfg, scen, writer, reader, log)
	if err != nil {
		_ = writer.Close()
		_ = reader.Close()
		return nil, err
	}
	return r, nil
}

// newRunner wires a runner from parts so tests can substitute the bus ends.
func newRunner(cfg RunnerConfig, scen Scenario, writer utils.CANWriter, reader utils.CANReader, log *utils.Logger) (*Runner, error) {
	bus, err := utils.DriveBus()
	if err != nil {
		return nil, fmt.Errorf("drive bus catalog: %w", err)
	}

	govCfg := governor.DefaultConfig()
	if scen.Governor != nil {
		govCfg = *scen.Governor
	}
	gov, err := governor.New(govCfg)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:    cfg,
		log:    log,
		bus:    bus,
		scen:   scen,
		writer: writer,
		reader: reader,
		gov:    gov,
		model:  NewVehicleModel(scen.Dynamics),
	}, nil
}

func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
}

func (r *Runner) Run(ctx context.Context) error {
	fd, err := r.bus.FrameByName(utils.FrameDriveCommand)
	if err != nil {
		return err
	}

	mode := "fast"
	if r.scen.Timing.RealTimeMode {
		mode = "real_time"
	}
	r.log.Info("Starting governor loop: scenario=%s duration=%.2fs tick_ms=%d mode=%s feedback=%s frame=%s id=0x%X cycle_ms=%d iface=%s",
		r.scen.Meta.Name, r.scen.Timing.DurationS, r.scen.Timing.TickMS, mode, r.scen.Meta.Feedback,
		fd.Name, fd.ID, fd.CycleMS, r.cfg.Interface)

	if r.scen.Timing.RealTimeMode {
		err = r.runRealTime(ctx)
	} else {
		err = r.runFast(ctx)
	}
	if err != nil {
		return err
	}

	r.log.Info("Completed run. frames_sent=%d", r.sent)
	return nil
}

// runFast replays the scenario on a synthetic clock as fast as the host
// allows. Only model feedback makes sense here; LoadScenario enforces that.
func (r *Runner) runFast(ctx context.Context) error {
	durationMS := uint32(r.scen.Timing.DurationS * 1000)

	for offset := uint32(0); offset <= durationMS; offset += r.scen.Timing.TickMS {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping run")
			return ctx.Err()
		default:
		}

		if err := r.step(ctx, offset); err != nil {
			return err
		}
	}
	return nil
}

// runRealTime paces the scenario on a wall-clock ticker and listens for
// wheel speed feedback in the background.
func (r *Runner) runRealTime(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(r.scen.Timing.TickMS) * time.Millisecond)
	defer ticker.Stop()

	endAfter := time.Duration(r.scen.Timing.DurationS * float64(time.Second))
	start := time.Now()
	r.lastRx = start

	rxCtx, cancelRx := context.WithCancel(ctx)
	defer cancelRx()
	rxChan := make(chan SpeedReading, 100)
	go r.receiveLoop(rxCtx, rxChan)

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping run")
			return ctx.Err()

		case reading := <-rxChan:
			r.busKPH = reading.KPH
			r.lastRx = reading.At
			r.log.Trace("RX wheel_speed=%.2f kph", reading.KPH)

		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed > endAfter {
				return nil
			}

			if r.scen.Meta.Feedback == FeedbackBus {
				if age := now.Sub(r.lastRx); age > 500*time.Millisecond {
					r.log.Warn("No wheel speed for %.0f ms; limiter running on stale feedback", age.Seconds()*1000)
				}
			}

			if err := r.step(ctx, uint32(elapsed.Milliseconds())); err != nil {
				return err
			}
		}
	}
}

// step runs one control tick at the given offset from the start of the run.
func (r *Runner) step(ctx context.Context, offsetMS uint32) error {
	nowMS := r.scen.Timing.StartClockMS + offsetMS
	t := float64(offsetMS) / 1000.0

	drive := EvalDrive(&r.scen, t)

	feedbackKPH := r.model.Speed()
	if r.scen.Meta.Feedback == FeedbackBus {
		feedbackKPH = r.busKPH
	}
	measured := feedbackKPH
	if measured > 255 {
		measured = 255
	}

	out := r.gov.Tick(nowMS, governor.Request{
		Current:  drive.ThrottlePct,
		SpeedKPH: uint8(measured),
		RampUp:   drive.RampUp,
		RampDown: drive.RampDown,
	})

	if r.scen.Meta.Feedback == FeedbackModel {
		feedbackKPH = r.model.Step(out, float64(r.scen.Timing.TickMS)/1000.0)
	}

	if err := r.publish(ctx, out, drive.ThrottlePct); err != nil {
		return err
	}

	if offsetMS%r.scen.Timing.ReportMS == 0 {
		r.log.Info("t=%6d ms | current=%3d %% | speed=%6.2f kph | limiting=%t",
			offsetMS, out, feedbackKPH, r.gov.Limiting())
	}
	if r.sent%100 == 0 {
		d := r.gov.Diagnostics()
		r.log.Debug("governor: clamp=%d integral=%.2f ramp_up=%d ramp_down=%d limiting=%t",
			d.ClampedOutput, d.Integral, d.RampUpTarget, d.RampDownTarget, d.Limiting)
	}
	return nil
}

// publish encodes and transmits the drive command for this tick.
func (r *Runner) publish(ctx context.Context, commanded, requested uint8) error {
	frame, err := r.bus.Encode(utils.FrameDriveCommand, map[string]float64{
		"commanded_current_pct": float64(commanded),
		"requested_current_pct": float64(requested),
		"speed_limiting":        boolToFloat(r.gov.Limiting()),
	})
	if err != nil {
		return fmt.Errorf("encode drive command: %w", err)
	}

	if err := r.writer.WriteFrame(ctx, frame); err != nil {
		r.log.Critical("Transmit failed: %v", err)
		return err
	}

	r.sent++
	r.log.Trace("TX id=0x%X len=%d data=% X commanded=%d requested=%d",
		frame.ID, frame.Length, frame.Data[:frame.Length], commanded, requested)
	return nil
}

// SpeedReading is one decoded wheel speed sample from the bus.
type SpeedReading struct {
	KPH float64
	At  time.Time
}

// receiveLoop reads frames until ctx is canceled, forwarding wheel speed
// samples. Sends never block; samples are dropped when the consumer lags.
func (r *Runner) receiveLoop(ctx context.Context, out chan<- SpeedReading) {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	for {
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("RX error: %v", err)
			continue
		}

		name, vals, err := r.bus.Decode(frame)
		if err != nil {
			r.log.Trace("RX ignored frame id=0x%X: %v", frame.ID, err)
			continue
		}
		if name != utils.FrameWheelSpeed {
			continue
		}

		select {
		case out <- SpeedReading{KPH: vals["vehicle_speed_kph"], At: time.Now()}:
		default:
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
