package preload

import "photoflow/internal/memory"

// Signals are best-effort environment hints used only for admission
// control. Absent values (zero bandwidth class, zero device memory)
// are treated as unconstrained.
type Signals struct {
	SaveData       bool
	Bandwidth      string // effective bandwidth class, e.g. "2g", "3g", "4g"
	DeviceMemoryGB float64
}

// SignalSource supplies environment signals. Implementations must
// never fail; a nil source means no constraints.
type SignalSource interface {
	Signals() Signals
}

// StaticSource returns fixed signals, typically built from
// configuration (PRELOAD_SAVE_DATA and friends).
type StaticSource Signals

// Signals implements SignalSource.
func (s StaticSource) Signals() Signals { return Signals(s) }

// MonitorSource derives the device-memory signal from the process
// memory monitor's headroom, layered over a static base.
type MonitorSource struct {
	Base    Signals
	Monitor *memory.Monitor
}

// Signals implements SignalSource.
func (s MonitorSource) Signals() Signals {
	out := s.Base
	if s.Monitor != nil {
		if gb := s.Monitor.AvailableGB(); gb > 0 {
			out.DeviceMemoryGB = gb
		}
	}
	return out
}
