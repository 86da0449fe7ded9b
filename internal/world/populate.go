package world

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/l1jgo/remineration/internal/data"
	"github.com/l1jgo/remineration/internal/ore"
)

// Populate places the initial node groups and structures. Nodes that land
// outside the terrain or underwater are skipped. Returns the number of nodes
// and structures placed.
func (s *State) Populate(objs *data.WorldObjects, rng *rand.Rand) (int, int) {
	structures := 0
	for _, st := range objs.Structures {
		if _, err := s.AddStructure(st.Name, structureLayer(st.Layer), st.X, st.Z, st.Radius); err != nil {
			s.log.Warn("structure skipped", zap.String("name", st.Name), zap.Error(err))
			continue
		}
		structures++
	}

	nodes := 0
	for _, g := range objs.Nodes {
		for i := 0; i < g.Count; i++ {
			x, z := g.X, g.Z
			if g.Spread > 0 {
				p := ore.RandomPointAround(rng, mgl64.Vec3{x, 0, z}, 0, g.Spread)
				x, z = p.X(), p.Z()
			}
			h, ok := s.terrain.HeightAt(x, z)
			if !ok || h < s.terrain.WaterLevel() {
				continue
			}
			pos := mgl64.Vec3{x, h, z}
			rot := ore.SurfaceRotation(s.terrain.NormalAt(x, z), rng.Float64()*2*math.Pi)
			if _, err := s.SpawnNode(g.Prefab, pos, rot); err != nil {
				s.log.Warn("node skipped", zap.String("prefab", g.Prefab), zap.Error(err))
				continue
			}
			nodes++
		}
	}
	return nodes, structures
}

func structureLayer(name string) ore.Layer {
	switch name {
	case "construction":
		return ore.LayerConstruction
	case "default":
		return ore.LayerDefault
	}
	return ore.LayerDeployed
}
