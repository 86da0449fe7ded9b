package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput   Phase = iota // 0: harvester bots, external input
	PhaseEvents               // 1: dispatch last tick's events
	PhaseUpdate               // 2: world logic
	PhaseTimers               // 3: deferred actions (respawns)
	PhaseOutput               // 4: flush observer sessions
	PhasePersist              // 5: audit log flush
	PhaseCleanup              // 6: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseEvents:
		return "events"
	case PhaseUpdate:
		return "update"
	case PhaseTimers:
		return "timers"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
