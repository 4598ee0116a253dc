package utils

import (
	"fmt"
	"sort"
)

// SignalDef describes one little-endian signal packed into a CAN frame.
// Min and Max bound the physical value on encode; Default fills signals
// the caller leaves out.
type SignalDef struct {
	Name      string
	StartBit  int
	BitLength int
	Signed    bool
	Factor    float64
	Offset    float64
	Min       float64
	Max       float64
	Default   float64
	Unit      string
}

// FrameDef describes one CAN frame and the signals it carries. CycleMS is
// the nominal transmit period, zero for event-driven frames.
type FrameDef struct {
	ID      uint32
	Name    string
	DLC     int
	CycleMS int
	Signals []SignalDef
}

// BusMap indexes a frame catalog by id and by name.
type BusMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

// Frame names on the drive bus.
const (
	FrameDriveCommand = "DRIVE_CMD"
	FrameWheelSpeed   = "WHEEL_SPEED"
)

// DriveBus returns the catalog for the assist drive bus: the command frame
// the governor transmits every control tick and the wheel speed feedback
// it consumes.
func DriveBus() (*BusMap, error) {
	return NewBusMap([]FrameDef{
		{
			ID:      0x210,
			Name:    FrameDriveCommand,
			DLC:     3,
			CycleMS: 5,
			Signals: []SignalDef{
				{Name: "commanded_current_pct", StartBit: 0, BitLength: 8, Factor: 1, Min: 0, Max: 100, Unit: "%"},
				{Name: "requested_current_pct", StartBit: 8, BitLength: 8, Factor: 1, Min: 0, Max: 100, Unit: "%"},
				{Name: "speed_limiting", StartBit: 16, BitLength: 1, Factor: 1, Min: 0, Max: 1},
			},
		},
		{
			ID:      0x305,
			Name:    FrameWheelSpeed,
			DLC:     4,
			CycleMS: 100,
			Signals: []SignalDef{
				{Name: "vehicle_speed_kph", StartBit: 0, BitLength: 16, Factor: 0.1, Min: 0, Max: 300, Unit: "km/h"},
				{Name: "wheel_rpm", StartBit: 16, BitLength: 16, Factor: 1, Min: 0, Max: 65535, Unit: "rpm"},
			},
		},
	})
}

// NewBusMap validates and indexes a frame catalog.
func NewBusMap(frames []FrameDef) (*BusMap, error) {
	m := &BusMap{
		ByID:   make(map[uint32]*FrameDef, len(frames)),
		ByName: make(map[string]*FrameDef, len(frames)),
	}
	for i := range frames {
		fd := &frames[i]
		if fd.DLC <= 0 || fd.DLC > 8 {
			return nil, fmt.Errorf("frame %s (0x%X): invalid dlc %d", fd.Name, fd.ID, fd.DLC)
		}
		if _, dup := m.ByID[fd.ID]; dup {
			return nil, fmt.Errorf("duplicate frame id 0x%X", fd.ID)
		}
		if _, dup := m.ByName[fd.Name]; dup {
			return nil, fmt.Errorf("duplicate frame name %q", fd.Name)
		}
		for _, s := range fd.Signals {
			if s.BitLength <= 0 || s.BitLength > 64 {
				return nil, fmt.Errorf("frame %s signal %s: invalid bit_length %d", fd.Name, s.Name, s.BitLength)
			}
			if s.StartBit < 0 || s.StartBit+s.BitLength > fd.DLC*8 {
				return nil, fmt.Errorf("frame %s signal %s: bits %d..%d exceed dlc %d",
					fd.Name, s.Name, s.StartBit, s.StartBit+s.BitLength-1, fd.DLC)
			}
			if s.Factor == 0 {
				return nil, fmt.Errorf("frame %s signal %s: zero factor", fd.Name, s.Name)
			}
		}
		m.ByID[fd.ID] = fd
		m.ByName[fd.Name] = fd
	}
	return m, nil
}

func (m *BusMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown frame %q (available: %v)", name, m.FrameNames())
	}
	return fd, nil
}

func (m *BusMap) FrameByID(id uint32) (*FrameDef, error) {
	fd, ok := m.ByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown frame id 0x%X", id)
	}
	return fd, nil
}

func (m *BusMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
