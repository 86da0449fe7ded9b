package event

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/l1jgo/remineration/internal/core/ecs"
)

// NodeDepleted is emitted when a resource node has been fully harvested.
// Harvester is zero when the node ran out without a player (decay, admin).
type NodeDepleted struct {
	Node      ecs.EntityID
	Position  mgl64.Vec3
	Prefab    string
	Harvester ecs.EntityID
}

// NodeSpawned is emitted for every node placed in the world, both the
// initial population and respawns.
type NodeSpawned struct {
	Node     ecs.EntityID
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Prefab   string
}

// RespawnCompleted summarises one fired respawn cycle.
type RespawnCompleted struct {
	Origin    ecs.EntityID
	Position  mgl64.Vec3
	Prefab    string
	Rolled    int // nodes drawn from [min, max]
	Attempted int // rolls that passed the chance check
	Spawned   []ecs.EntityID
}
