package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/l1jgo/remineration/internal/ore"
)

// GroundHit casts a vertical segment from start+rangeY down to start-rangeY
// against the terrain. Only LayerTerrain is solid ground in the sandbox.
func (s *State) GroundHit(start mgl64.Vec3, rangeY float64, mask ore.Layer) (ore.GroundHit, bool) {
	if mask&ore.LayerTerrain == 0 {
		return ore.GroundHit{}, false
	}
	h, ok := s.terrain.HeightAt(start.X(), start.Z())
	if !ok {
		return ore.GroundHit{}, false
	}
	if h > start.Y()+rangeY || h < start.Y()-rangeY {
		return ore.GroundHit{}, false
	}
	return ore.GroundHit{
		Point:  mgl64.Vec3{start.X(), h, start.Z()},
		Normal: s.terrain.NormalAt(start.X(), start.Z()),
	}, true
}

// Topology returns the terrain classification at pos.
func (s *State) Topology(pos mgl64.Vec3) ore.Topology {
	return ore.Topology(s.terrain.TopologyAt(pos.X(), pos.Z()))
}

// InWater reports whether pos is below the water surface.
func (s *State) InWater(pos mgl64.Vec3) bool {
	return pos.Y() < s.terrain.WaterLevel()
}

// EntityNearby reports whether any collider on a masked layer overlaps the
// sphere of radius around pos.
func (s *State) EntityNearby(pos mgl64.Vec3, radius float64, mask ore.Layer) bool {
	for _, id := range s.grid.Within(pos, radius+s.maxRadius) {
		col, ok := s.colliders.Get(id)
		if !ok || col.Layer&mask == 0 {
			continue
		}
		tr, ok := s.transforms.Get(id)
		if !ok {
			continue
		}
		if tr.Position.Sub(pos).Len() <= radius+col.Radius {
			return true
		}
	}
	return false
}

var _ ore.TerrainProbe = (*State)(nil)
var _ ore.NodeSpawner = (*State)(nil)
