package world

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/l1jgo/remineration/internal/core/ecs"
	"github.com/l1jgo/remineration/internal/core/event"
	"github.com/l1jgo/remineration/internal/data"
	"github.com/l1jgo/remineration/internal/ore"
	"github.com/l1jgo/remineration/internal/scripting"
)

// Transform is an entity's placement.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Collider makes an entity visible to overlap queries.
type Collider struct {
	Layer  ore.Layer
	Radius float64
}

// OreNode is a harvestable resource node.
type OreNode struct {
	Prefab    string
	Kind      ore.Kind
	Biome     ore.Biome
	Capacity  int
	Remaining int
	Depleted  bool
}

// Player is a harvesting actor.
type Player struct {
	Name   string
	Tool   string
	Target ecs.EntityID // node the harvester walks to
	Swings int          // swings on Struck so far
	Struck ecs.EntityID // node of the last swing
}

// Structure is a static construction or deployable.
type Structure struct {
	Name string
}

// HarvestRules supplies node capacity and swing yield. *scripting.Engine
// implements it.
type HarvestRules interface {
	NodeCapacity(kind, biome string) int
	CalcHarvestYield(ctx scripting.HarvestContext) scripting.HarvestResult
}

const (
	nodeRadius   = 1.5
	playerRadius = 0.5
	gridCellSize = 16
)

var (
	ErrOutsideTerrain = errors.New("position outside terrain")
	ErrNotOrePrefab   = errors.New("not an ore prefab")
)

// State holds the sandbox world: terrain plus ECS-backed players, ore nodes
// and structures. Accessed only from the game loop goroutine; no locks needed.
type State struct {
	ecs        *ecs.World
	transforms *ecs.Store[Transform]
	colliders  *ecs.Store[Collider]
	nodes      *ecs.Store[OreNode]
	players    *ecs.Store[Player]
	structures *ecs.Store[Structure]
	grid       *SpatialGrid
	maxRadius  float64 // largest collider ever placed; widens grid queries

	terrain *data.Terrain
	bus     *event.Bus
	rules   HarvestRules
	log     *zap.Logger
}

func NewState(terrain *data.Terrain, bus *event.Bus, rules HarvestRules, log *zap.Logger) *State {
	s := &State{
		ecs:        ecs.NewWorld(),
		transforms: ecs.NewStore[Transform](),
		colliders:  ecs.NewStore[Collider](),
		nodes:      ecs.NewStore[OreNode](),
		players:    ecs.NewStore[Player](),
		structures: ecs.NewStore[Structure](),
		grid:       NewSpatialGrid(gridCellSize),
		terrain:    terrain,
		bus:        bus,
		rules:      rules,
		log:        log.Named("world"),
	}
	s.ecs.Register(s.transforms)
	s.ecs.Register(s.colliders)
	s.ecs.Register(s.nodes)
	s.ecs.Register(s.players)
	s.ecs.Register(s.structures)
	s.ecs.OnDestroy(func(id ecs.EntityID) {
		if tr, ok := s.transforms.Get(id); ok {
			s.grid.Remove(id, tr.Position)
		}
	})
	return s
}

func (s *State) Terrain() *data.Terrain { return s.terrain }

// ── Entities ─────────────────────────────────────────────────────

func (s *State) place(pos mgl64.Vec3, rot mgl64.Quat, col Collider) ecs.EntityID {
	id := s.ecs.CreateEntity()
	s.transforms.Set(id, &Transform{Position: pos, Rotation: rot})
	s.colliders.Set(id, &col)
	s.grid.Add(id, pos)
	s.maxRadius = max(s.maxRadius, col.Radius)
	return id
}

// SpawnNode creates and activates an ore node. The prefab must resolve to a
// known ore kind.
func (s *State) SpawnNode(prefab string, pos mgl64.Vec3, rot mgl64.Quat) (ecs.EntityID, error) {
	if !s.terrain.Contains(pos.X(), pos.Z()) {
		return 0, fmt.Errorf("spawn %s at %v: %w", prefab, pos, ErrOutsideTerrain)
	}
	p, ok := ore.ResolvePrefab(prefab)
	if !ok {
		return 0, fmt.Errorf("spawn %s: %w", prefab, ErrNotOrePrefab)
	}

	capacity := s.rules.NodeCapacity(p.Kind.String(), p.Biome.String())
	id := s.place(pos, rot, Collider{Layer: ore.LayerDefault, Radius: nodeRadius})
	s.nodes.Set(id, &OreNode{
		Prefab:    prefab,
		Kind:      p.Kind,
		Biome:     p.Biome,
		Capacity:  capacity,
		Remaining: capacity,
	})

	event.Emit(s.bus, event.NodeSpawned{Node: id, Position: pos, Rotation: rot, Prefab: prefab})
	return id, nil
}

// AddStructure places a static object resting on the ground at (x, z).
func (s *State) AddStructure(name string, layer ore.Layer, x, z, radius float64) (ecs.EntityID, error) {
	h, ok := s.terrain.HeightAt(x, z)
	if !ok {
		return 0, fmt.Errorf("structure %s: %w", name, ErrOutsideTerrain)
	}
	if radius <= 0 {
		radius = 1
	}
	id := s.place(mgl64.Vec3{x, h, z}, mgl64.QuatIdent(), Collider{Layer: layer, Radius: radius})
	s.structures.Set(id, &Structure{Name: name})
	return id, nil
}

// AddPlayer puts a harvester on the ground at (x, z).
func (s *State) AddPlayer(name, tool string, x, z float64) (ecs.EntityID, error) {
	h, ok := s.terrain.HeightAt(x, z)
	if !ok {
		return 0, fmt.Errorf("player %s: %w", name, ErrOutsideTerrain)
	}
	id := s.place(mgl64.Vec3{x, h, z}, mgl64.QuatIdent(), Collider{Layer: ore.LayerPlayer, Radius: playerRadius})
	s.players.Set(id, &Player{Name: name, Tool: tool})
	return id, nil
}

// MoveEntity updates the position of any placed entity.
func (s *State) MoveEntity(id ecs.EntityID, pos mgl64.Vec3) bool {
	tr, ok := s.transforms.Get(id)
	if !ok {
		return false
	}
	s.grid.Move(id, tr.Position, pos)
	tr.Position = pos
	return true
}

func (s *State) Position(id ecs.EntityID) (mgl64.Vec3, bool) {
	tr, ok := s.transforms.Get(id)
	if !ok {
		return mgl64.Vec3{}, false
	}
	return tr.Position, true
}

func (s *State) Node(id ecs.EntityID) (*OreNode, bool) {
	return s.nodes.Get(id)
}

func (s *State) Player(id ecs.EntityID) (*Player, bool) {
	return s.players.Get(id)
}

// NodeIDs returns live, undepleted nodes in id order.
func (s *State) NodeIDs() []ecs.EntityID {
	ids := make([]ecs.EntityID, 0, s.nodes.Len())
	s.nodes.Each(func(id ecs.EntityID, n *OreNode) {
		if !n.Depleted {
			ids = append(ids, id)
		}
	})
	slices.Sort(ids)
	return ids
}

// EachNode visits every placed node with its transform, depleted or not.
func (s *State) EachNode(fn func(ecs.EntityID, *OreNode, *Transform)) {
	ecs.Each2(s.nodes, s.transforms, fn)
}

// PlayerIDs returns every player in id order.
func (s *State) PlayerIDs() []ecs.EntityID {
	ids := s.players.IDs()
	slices.Sort(ids)
	return ids
}

func (s *State) NodeCount() int { return s.nodes.Len() }

func (s *State) EntityCount() int { return s.ecs.Len() }

// Alive reports whether the id still references a live entity.
func (s *State) Alive(id ecs.EntityID) bool { return s.ecs.Alive(id) }

// ── Harvesting ───────────────────────────────────────────────────

// Hit applies one harvesting swing from harvester to node. The swing that
// empties the node emits NodeDepleted and queues the node for destruction.
// harvester may be zero for non-player depletion.
func (s *State) Hit(node, harvester ecs.EntityID) (scripting.HarvestResult, bool) {
	n, ok := s.nodes.Get(node)
	if !ok || n.Depleted {
		return scripting.HarvestResult{}, false
	}

	swing := 0
	tool := ""
	if p, ok := s.players.Get(harvester); ok {
		if p.Struck != node {
			p.Struck, p.Swings = node, 0
		}
		p.Swings++
		swing, tool = p.Swings, p.Tool
	}

	res := s.rules.CalcHarvestYield(scripting.HarvestContext{
		Kind:      n.Kind.String(),
		Biome:     n.Biome.String(),
		Remaining: n.Remaining,
		Capacity:  n.Capacity,
		Tool:      tool,
		Swing:     swing,
	})
	res.Amount = min(max(res.Amount, 0), n.Remaining)
	n.Remaining -= res.Amount

	if n.Remaining <= 0 || res.Bonus {
		s.deplete(node, n, harvester)
	}
	return res, true
}

func (s *State) deplete(id ecs.EntityID, n *OreNode, harvester ecs.EntityID) {
	n.Depleted = true
	tr, _ := s.transforms.Get(id)
	event.Emit(s.bus, event.NodeDepleted{
		Node:      id,
		Position:  tr.Position,
		Prefab:    n.Prefab,
		Harvester: harvester,
	})
	s.ecs.MarkForDestruction(id)
	s.log.Debug("node depleted",
		zap.Stringer("node", id),
		zap.String("prefab", n.Prefab),
		zap.Stringer("harvester", harvester))
}

// FlushDestroyed removes entities queued for destruction this tick.
func (s *State) FlushDestroyed() int {
	return s.ecs.FlushDestroyQueue()
}
