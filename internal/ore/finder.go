package ore

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
)

// Layer is a collision layer bit. Probes filter by a mask of layers.
type Layer uint32

const (
	LayerDefault Layer = 1 << iota
	LayerTerrain
	LayerWorld
	LayerConstruction
	LayerDeployed
	LayerPlayer
)

const (
	// GroundMask is what a node may rest on.
	GroundMask = LayerTerrain | LayerWorld
	// BlockingMask is what must not be near a new node.
	BlockingMask = LayerDefault | LayerConstruction | LayerDeployed | LayerPlayer
)

// Topology is a set of terrain classification flags.
type Topology uint32

const (
	TopologyField Topology = 1 << iota
	TopologyForest
	TopologyBeach
	TopologyRoad
	TopologyRoadside
	TopologyRail
	TopologyRailside
	TopologyCliff
)

// ExcludedTopology marks areas no node is placed on.
const ExcludedTopology = TopologyRoad | TopologyRoadside | TopologyRail | TopologyRailside

// Up is the world vertical axis.
var Up = mgl64.Vec3{0, 1, 0}

// GroundHit is the contact of a vertical probe with the ground.
type GroundHit struct {
	Point  mgl64.Vec3
	Normal mgl64.Vec3
}

// TerrainProbe answers the world queries the finder needs. Implementations
// are called from the game loop only.
type TerrainProbe interface {
	// GroundHit casts from start+rangeY straight down to start-rangeY.
	GroundHit(start mgl64.Vec3, rangeY float64, mask Layer) (GroundHit, bool)
	Topology(pos mgl64.Vec3) Topology
	InWater(pos mgl64.Vec3) bool
	EntityNearby(pos mgl64.Vec3, radius float64, mask Layer) bool
}

// Candidate is a validated placement.
type Candidate struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// FinderOptions tune the per-attempt checks.
type FinderOptions struct {
	ProbeRange  float64 // half height of the vertical ground probe
	CheckRadius float64 // exclusion radius around the contact point
	// TopologyAtCandidate tests road/rail topology at the contact point
	// instead of the search origin.
	TopologyAtCandidate bool
}

// Finder runs the bounded random search for a spawn point. It holds no
// state between searches apart from its random source.
type Finder struct {
	probe TerrainProbe
	rng   *rand.Rand
	opts  FinderOptions
}

func NewFinder(probe TerrainProbe, rng *rand.Rand, opts FinderOptions) *Finder {
	return &Finder{probe: probe, rng: rng, opts: opts}
}

// FindSpawnPoint evaluates at most maxAttempts random candidates between
// minRadius and maxRadius of center and returns the first valid one.
// Failing is routine on crowded or unsuitable terrain.
func (f *Finder) FindSpawnPoint(center mgl64.Vec3, minRadius, maxRadius float64, maxAttempts int) (Candidate, bool) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := RandomPointAround(f.rng, center, minRadius, maxRadius)

		hit, ok := f.probe.GroundHit(candidate, f.opts.ProbeRange, GroundMask)
		if !ok {
			continue
		}
		topologyAt := center
		if f.opts.TopologyAtCandidate {
			topologyAt = hit.Point
		}
		if f.probe.Topology(topologyAt)&ExcludedTopology != 0 {
			continue
		}
		if f.probe.EntityNearby(hit.Point, f.opts.CheckRadius, BlockingMask) {
			continue
		}
		if f.probe.InWater(hit.Point) {
			continue
		}
		return Candidate{
			Position: hit.Point,
			Rotation: SurfaceRotation(hit.Normal, f.rng.Float64()*2*math.Pi),
		}, true
	}
	return Candidate{}, false
}

// RandomPointAround picks a point on the horizontal plane through center at
// a uniform distance in [minRadius, maxRadius] and a uniform bearing.
func RandomPointAround(rng *rand.Rand, center mgl64.Vec3, minRadius, maxRadius float64) mgl64.Vec3 {
	bearing := rng.Float64() * 2 * math.Pi
	distance := minRadius + rng.Float64()*(maxRadius-minRadius)
	dir := mgl64.Vec3{math.Cos(bearing), 0, math.Sin(bearing)}
	return center.Add(dir.Mul(distance))
}

// SurfaceRotation aligns the up axis with normal after turning yaw radians
// about the vertical.
func SurfaceRotation(normal mgl64.Vec3, yaw float64) mgl64.Quat {
	tilt := mgl64.QuatIdent()
	if normal.Len() > 1e-9 {
		tilt = mgl64.QuatBetweenVectors(Up, normal.Normalize())
	}
	return tilt.Mul(mgl64.QuatRotate(yaw, Up)).Normalize()
}

// HorizontalDistance ignores the vertical component.
func HorizontalDistance(a, b mgl64.Vec3) float64 {
	return math.Hypot(a.X()-b.X(), a.Z()-b.Z())
}
