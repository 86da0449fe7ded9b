package system

import (
	"time"

	coresys "github.com/l1jgo/remineration/internal/core/system"
	"github.com/l1jgo/remineration/internal/core/timer"
)

// TimerSystem advances deferred callbacks (pending respawns) by the tick
// duration. Phase 3 (Timers).
type TimerSystem struct {
	clock *timer.Scheduler
}

func NewTimerSystem(clock *timer.Scheduler) *TimerSystem {
	return &TimerSystem{clock: clock}
}

func (s *TimerSystem) Phase() coresys.Phase { return coresys.PhaseTimers }

func (s *TimerSystem) Update(dt time.Duration) {
	s.clock.Advance(dt)
}
