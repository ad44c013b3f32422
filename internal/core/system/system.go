package system

import "time"

// Phase orders systems within a single tick.
type Phase int

const (
	PhaseInput   Phase = iota // drain connection queues, apply posted tasks
	PhaseTimers               // fire due combat/status/respawn callbacks
	PhaseUpdate               // world logic (aggro, roaming, regen)
	PhaseEvents               // deliver last tick's events
	PhaseRegion               // region transitions and spawn diffs
	PhaseOutput               // serialize and flush per-connection batches
	PhasePersist              // autosave
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseTimers:
		return "timers"
	case PhaseUpdate:
		return "update"
	case PhaseEvents:
		return "events"
	case PhaseRegion:
		return "region"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	}
	return "unknown"
}

// System is one step of the tick.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
