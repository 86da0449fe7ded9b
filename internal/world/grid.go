package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/l1jgo/remineration/internal/core/ecs"
)

// SpatialGrid is a cell-based index over the horizontal plane. Queries
// return candidates from every cell the search circle touches; callers do
// fine-grained distance filtering.
// Accessed only from the game loop goroutine, no locks.
type SpatialGrid struct {
	cellSize float64
	cells    map[cellKey]map[ecs.EntityID]struct{}
}

type cellKey struct {
	cx int32
	cz int32
}

func NewSpatialGrid(cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 16
	}
	return &SpatialGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[ecs.EntityID]struct{}),
	}
}

func (g *SpatialGrid) coord(v float64) int32 {
	return int32(math.Floor(v / g.cellSize))
}

func (g *SpatialGrid) key(pos mgl64.Vec3) cellKey {
	return cellKey{cx: g.coord(pos.X()), cz: g.coord(pos.Z())}
}

// Add places an entity into the grid.
func (g *SpatialGrid) Add(id ecs.EntityID, pos mgl64.Vec3) {
	k := g.key(pos)
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[ecs.EntityID]struct{})
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
}

// Remove takes an entity out of the grid.
func (g *SpatialGrid) Remove(id ecs.EntityID, pos mgl64.Vec3) {
	k := g.key(pos)
	cell := g.cells[k]
	if cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// Move updates an entity's cell when its position changes.
func (g *SpatialGrid) Move(id ecs.EntityID, oldPos, newPos mgl64.Vec3) {
	if g.key(oldPos) == g.key(newPos) {
		return
	}
	g.Remove(id, oldPos)
	g.Add(id, newPos)
}

// Within returns every entity in cells overlapping the circle of radius
// around pos.
func (g *SpatialGrid) Within(pos mgl64.Vec3, radius float64) []ecs.EntityID {
	minX, maxX := g.coord(pos.X()-radius), g.coord(pos.X()+radius)
	minZ, maxZ := g.coord(pos.Z()-radius), g.coord(pos.Z()+radius)
	var result []ecs.EntityID
	for cx := minX; cx <= maxX; cx++ {
		for cz := minZ; cz <= maxZ; cz++ {
			for id := range g.cells[cellKey{cx: cx, cz: cz}] {
				result = append(result, id)
			}
		}
	}
	return result
}

// Len returns the number of indexed entities.
func (g *SpatialGrid) Len() int {
	n := 0
	for _, cell := range g.cells {
		n += len(cell)
	}
	return n
}
