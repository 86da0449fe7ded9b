package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingSystem struct {
	name  string
	phase Phase
	log   *[]string
}

func (s *recordingSystem) Phase() Phase { return s.phase }

func (s *recordingSystem) Update(time.Duration) { *s.log = append(*s.log, s.name) }

func TestRunnerOrdersByPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recordingSystem{name: "cleanup", phase: PhaseCleanup, log: &log})
	r.Register(&recordingSystem{name: "timers", phase: PhaseTimers, log: &log})
	r.Register(&recordingSystem{name: "events", phase: PhaseEvents, log: &log})
	r.Register(&recordingSystem{name: "timers-2", phase: PhaseTimers, log: &log})

	r.Tick(200 * time.Millisecond)

	assert.Equal(t, []string{"events", "timers", "timers-2", "cleanup"}, log)
	assert.Equal(t, uint64(1), r.Ticks())
}

func TestRunnerTickPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recordingSystem{name: "output", phase: PhaseOutput, log: &log})
	r.Register(&recordingSystem{name: "persist", phase: PhasePersist, log: &log})

	r.TickPhase(PhasePersist, 0)

	assert.Equal(t, []string{"persist"}, log)
	assert.Zero(t, r.Ticks())
	assert.Equal(t, "persist", PhasePersist.String())
}
