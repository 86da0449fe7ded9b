package system

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/l1jgo/remineration/internal/core/ecs"
	coresys "github.com/l1jgo/remineration/internal/core/system"
	"github.com/l1jgo/remineration/internal/world"
)

// reach is how far from a node's centre a harvester stands.
const reach = 2.0

// HarvestSystem drives bot harvesters: each picks a live node, walks next
// to it and swings every interval ticks until the node is gone.
// Phase 0 (Input).
type HarvestSystem struct {
	world    *world.State
	rng      *rand.Rand
	tool     string
	interval int
	ticks    int
	log      *zap.Logger
}

func NewHarvestSystem(ws *world.State, rng *rand.Rand, tool string, intervalTicks int, log *zap.Logger) *HarvestSystem {
	if intervalTicks <= 0 {
		intervalTicks = 1
	}
	return &HarvestSystem{
		world:    ws,
		rng:      rng,
		tool:     tool,
		interval: intervalTicks,
		log:      log.Named("harvest"),
	}
}

func (s *HarvestSystem) Phase() coresys.Phase { return coresys.PhaseInput }

// AddHarvesters places n bots at random dry spots. Returns how many were
// placed.
func (s *HarvestSystem) AddHarvesters(n int) int {
	minX, minZ, maxX, maxZ := s.world.Terrain().Bounds()
	placed := 0
	for i := 0; i < n; i++ {
		for try := 0; try < 16; try++ {
			x := minX + s.rng.Float64()*(maxX-minX)
			z := minZ + s.rng.Float64()*(maxZ-minZ)
			if h, ok := s.world.Terrain().HeightAt(x, z); !ok || h < s.world.Terrain().WaterLevel() {
				continue
			}
			if _, err := s.world.AddPlayer(fmt.Sprintf("bot-%d", i+1), s.tool, x, z); err != nil {
				continue
			}
			placed++
			break
		}
	}
	return placed
}

func (s *HarvestSystem) Update(_ time.Duration) {
	s.ticks++
	if s.ticks < s.interval {
		return
	}
	s.ticks = 0

	for _, id := range s.world.PlayerIDs() {
		s.swing(id)
	}
}

func (s *HarvestSystem) swing(id ecs.EntityID) {
	p, ok := s.world.Player(id)
	if !ok {
		return
	}
	if !s.validTarget(p.Target) {
		p.Target = s.pickTarget()
		if p.Target.IsZero() {
			return
		}
		s.approach(id, p.Target)
	}

	res, ok := s.world.Hit(p.Target, id)
	if !ok {
		p.Target = 0
		return
	}
	s.log.Debug("swing",
		zap.String("player", p.Name),
		zap.Stringer("node", p.Target),
		zap.Int("amount", res.Amount))

	if n, ok := s.world.Node(p.Target); ok && n.Depleted {
		p.Target = 0
	}
}

func (s *HarvestSystem) validTarget(id ecs.EntityID) bool {
	if id.IsZero() || !s.world.Alive(id) {
		return false
	}
	n, ok := s.world.Node(id)
	return ok && !n.Depleted
}

func (s *HarvestSystem) pickTarget() ecs.EntityID {
	ids := s.world.NodeIDs()
	if len(ids) == 0 {
		return 0
	}
	return ids[s.rng.IntN(len(ids))]
}

// approach moves the harvester to stand reach units from the node on the
// side it came from.
func (s *HarvestSystem) approach(player, node ecs.EntityID) {
	from, ok := s.world.Position(player)
	if !ok {
		return
	}
	at, ok := s.world.Position(node)
	if !ok {
		return
	}
	dir := mgl64.Vec3{from.X() - at.X(), 0, from.Z() - at.Z()}
	if dir.Len() < 1e-9 {
		a := s.rng.Float64() * 2 * math.Pi
		dir = mgl64.Vec3{math.Cos(a), 0, math.Sin(a)}
	}
	dest := at.Add(dir.Normalize().Mul(reach))
	h, ok := s.world.Terrain().HeightAt(dest.X(), dest.Z())
	if !ok {
		h = at.Y()
	}
	s.world.MoveEntity(player, mgl64.Vec3{dest.X(), h, dest.Z()})
}
