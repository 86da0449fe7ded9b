package ore

import (
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/l1jgo/remineration/internal/config"
	"github.com/l1jgo/remineration/internal/core/ecs"
	"github.com/l1jgo/remineration/internal/core/event"
	"github.com/l1jgo/remineration/internal/core/timer"
)

// Clock registers deferred actions on the game loop.
type Clock interface {
	Once(delay time.Duration, fn func()) *timer.Handle
}

// SpawnPointFinder locates a placement near an origin.
type SpawnPointFinder interface {
	FindSpawnPoint(center mgl64.Vec3, minRadius, maxRadius float64, maxAttempts int) (Candidate, bool)
}

// NodeSpawner creates and activates a resource node in the world.
type NodeSpawner interface {
	SpawnNode(prefab string, pos mgl64.Vec3, rot mgl64.Quat) (ecs.EntityID, error)
}

// Scheduler owns the pending respawn of every depleted node. At most one
// respawn is pending per node identity. All methods run on the game loop.
type Scheduler struct {
	cfg     config.RespawnConfig
	clock   Clock
	finder  SpawnPointFinder
	spawner NodeSpawner
	rng     *rand.Rand
	bus     *event.Bus // optional, receives RespawnCompleted
	log     *zap.Logger

	pending map[ecs.EntityID]*timer.Handle
	closed  bool
}

func NewScheduler(
	cfg config.RespawnConfig,
	clock Clock,
	finder SpawnPointFinder,
	spawner NodeSpawner,
	rng *rand.Rand,
	bus *event.Bus,
	log *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		clock:   clock,
		finder:  finder,
		spawner: spawner,
		rng:     rng,
		bus:     bus,
		log:     log.Named("respawn"),
		pending: make(map[ecs.EntityID]*timer.Handle),
	}
}

// Handle is the NodeDepleted subscriber.
func (s *Scheduler) Handle(ev event.NodeDepleted) {
	s.Schedule(ev)
}

// Schedule registers a respawn for the depleted node and reports whether it
// did. Duplicate depletions of a node already pending are ignored.
func (s *Scheduler) Schedule(ev event.NodeDepleted) bool {
	if s.closed {
		return false
	}
	if s.cfg.RequireHarvester && ev.Harvester.IsZero() {
		return false
	}
	if _, ok := s.pending[ev.Node]; ok {
		s.log.Debug("respawn already pending", zap.Stringer("node", ev.Node))
		return false
	}
	prefab, ok := ResolvePrefab(ev.Prefab)
	if !ok {
		s.log.Warn("no replacement prefab for depleted node",
			zap.Stringer("node", ev.Node),
			zap.String("prefab", ev.Prefab))
		return false
	}

	node, origin, source := ev.Node, ev.Position, ev.Prefab
	h := s.clock.Once(s.cfg.Delay(), func() {
		s.respawn(node, origin, source, prefab)
	})
	s.pending[node] = h

	s.log.Debug("respawn scheduled",
		zap.Stringer("node", node),
		zap.String("replacement", prefab.Path()),
		zap.Duration("due", h.Due()))
	return true
}

// respawn is the deferred action body.
func (s *Scheduler) respawn(node ecs.EntityID, origin mgl64.Vec3, source string, prefab Prefab) {
	path := prefab.Path()
	count := s.cfg.MinNodes + s.rng.IntN(s.cfg.MaxNodes-s.cfg.MinNodes+1)

	done := event.RespawnCompleted{
		Origin:   node,
		Position: origin,
		Prefab:   path,
		Rolled:   count,
	}
	for i := 0; i < count; i++ {
		if !s.chance(s.cfg.ChancePercent) {
			continue
		}
		done.Attempted++

		c, ok := s.finder.FindSpawnPoint(origin, s.cfg.MinRadius, s.cfg.MaxRadius, s.cfg.MaxAttempts)
		if !ok {
			continue
		}
		id, err := s.spawner.SpawnNode(path, c.Position, c.Rotation)
		if err != nil {
			s.log.Debug("node spawn refused", zap.String("prefab", path), zap.Error(err))
			continue
		}
		done.Spawned = append(done.Spawned, id)
	}

	delete(s.pending, node)

	if s.bus != nil {
		event.Emit(s.bus, done)
	}
	s.log.Debug("respawn fired",
		zap.Stringer("node", node),
		zap.String("source", source),
		zap.Int("rolled", done.Rolled),
		zap.Int("attempted", done.Attempted),
		zap.Int("spawned", len(done.Spawned)))
}

func (s *Scheduler) chance(percent int) bool {
	return s.rng.IntN(100) < percent
}

// Teardown cancels every pending respawn. Nothing fires afterwards and
// later depletions are ignored.
func (s *Scheduler) Teardown() int {
	n := 0
	for _, h := range s.pending {
		if h.Cancel() {
			n++
		}
	}
	clear(s.pending)
	s.closed = true
	if n > 0 {
		s.log.Info("pending respawns cancelled", zap.Int("count", n))
	}
	return n
}

// Pending returns the number of nodes waiting to respawn.
func (s *Scheduler) Pending() int { return len(s.pending) }

func (s *Scheduler) IsPending(node ecs.EntityID) bool {
	_, ok := s.pending[node]
	return ok
}
