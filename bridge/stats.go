package bridge

import "sync/atomic"

// Stats is a snapshot of the bridge diagnostics counters.
type Stats struct {
	Ticks               uint64 // Process calls
	Frames              uint64 // frames rendered by the engine
	DroppedNotReady     uint64 // musical messages received before SynthReady
	RejectedTransitions uint64 // lifecycle messages received in the wrong state
	InvalidEvents       uint64 // out-of-range or non-finite event fields
	LateCommands        uint64 // commands whose target frame had already passed
	RenderFaults        uint64 // blocks replaced by silence
}

type counters struct {
	ticks               atomic.Uint64
	frames              atomic.Uint64
	droppedNotReady     atomic.Uint64
	rejectedTransitions atomic.Uint64
	invalidEvents       atomic.Uint64
	lateCommands        atomic.Uint64
	renderFaults        atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Ticks:               c.ticks.Load(),
		Frames:              c.frames.Load(),
		DroppedNotReady:     c.droppedNotReady.Load(),
		RejectedTransitions: c.rejectedTransitions.Load(),
		InvalidEvents:       c.invalidEvents.Load(),
		LateCommands:        c.lateCommands.Load(),
		RenderFaults:        c.renderFaults.Load(),
	}
}
