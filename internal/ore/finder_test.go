package ore

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProbe is a flat plane at height 0 with pluggable rejections.
type fakeProbe struct {
	normal     mgl64.Vec3
	noGround   bool
	topology   func(mgl64.Vec3) Topology
	water      func(mgl64.Vec3) bool
	nearby     func(mgl64.Vec3) bool
	groundHits int
	topoCalls  []mgl64.Vec3
	lastRadius float64
	lastMask   Layer
}

func (p *fakeProbe) GroundHit(start mgl64.Vec3, rangeY float64, mask Layer) (GroundHit, bool) {
	p.groundHits++
	if p.noGround || math.Abs(start.Y()) > rangeY || mask&LayerTerrain == 0 {
		return GroundHit{}, false
	}
	n := p.normal
	if n.Len() == 0 {
		n = Up
	}
	return GroundHit{Point: mgl64.Vec3{start.X(), 0, start.Z()}, Normal: n}, true
}

func (p *fakeProbe) Topology(pos mgl64.Vec3) Topology {
	p.topoCalls = append(p.topoCalls, pos)
	if p.topology == nil {
		return TopologyField
	}
	return p.topology(pos)
}

func (p *fakeProbe) InWater(pos mgl64.Vec3) bool {
	return p.water != nil && p.water(pos)
}

func (p *fakeProbe) EntityNearby(pos mgl64.Vec3, radius float64, mask Layer) bool {
	p.lastRadius, p.lastMask = radius, mask
	return p.nearby != nil && p.nearby(pos)
}

func newTestRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestFindSpawnPointRadiusContainment(t *testing.T) {
	probe := &fakeProbe{}
	f := NewFinder(probe, newTestRand(), FinderOptions{ProbeRange: 5, CheckRadius: 5})
	center := mgl64.Vec3{100, 0, -40}

	for i := 0; i < 500; i++ {
		c, ok := f.FindSpawnPoint(center, 5, 20, 1)
		require.True(t, ok)
		d := HorizontalDistance(center, c.Position)
		assert.GreaterOrEqual(t, d, 5-1e-9)
		assert.LessOrEqual(t, d, 20+1e-9)
		assert.Zero(t, c.Position.Y())
	}
	assert.Equal(t, 5.0, probe.lastRadius)
	assert.Equal(t, BlockingMask, probe.lastMask)
}

func TestFindSpawnPointBoundedAttempts(t *testing.T) {
	cases := map[string]*fakeProbe{
		"no ground": {noGround: true},
		"road":      {topology: func(mgl64.Vec3) Topology { return TopologyRoad | TopologyField }},
		"railside":  {topology: func(mgl64.Vec3) Topology { return TopologyRailside }},
		"crowded":   {nearby: func(mgl64.Vec3) bool { return true }},
		"submerged": {water: func(mgl64.Vec3) bool { return true }},
	}
	for name, probe := range cases {
		t.Run(name, func(t *testing.T) {
			f := NewFinder(probe, newTestRand(), FinderOptions{ProbeRange: 5, CheckRadius: 5})
			_, ok := f.FindSpawnPoint(mgl64.Vec3{}, 5, 20, 7)
			assert.False(t, ok)
			assert.Equal(t, 7, probe.groundHits)
		})
	}
}

func TestFindSpawnPointZeroAttempts(t *testing.T) {
	probe := &fakeProbe{}
	f := NewFinder(probe, newTestRand(), FinderOptions{ProbeRange: 5})
	_, ok := f.FindSpawnPoint(mgl64.Vec3{}, 5, 20, 0)
	assert.False(t, ok)
	assert.Zero(t, probe.groundHits)
}

func TestFindSpawnPointRetriesUntilValid(t *testing.T) {
	calls := 0
	probe := &fakeProbe{water: func(mgl64.Vec3) bool {
		calls++
		return calls < 3
	}}
	f := NewFinder(probe, newTestRand(), FinderOptions{ProbeRange: 5})
	_, ok := f.FindSpawnPoint(mgl64.Vec3{}, 5, 20, 10)
	assert.True(t, ok)
	assert.Equal(t, 3, probe.groundHits)
}

func TestFindSpawnPointProbeRange(t *testing.T) {
	probe := &fakeProbe{}
	f := NewFinder(probe, newTestRand(), FinderOptions{ProbeRange: 5})
	_, ok := f.FindSpawnPoint(mgl64.Vec3{0, 8, 0}, 5, 20, 3)
	assert.False(t, ok, "ground 8 below the origin is out of probe range")
}

func TestFindSpawnPointTopologyAtOrigin(t *testing.T) {
	center := mgl64.Vec3{10, 0, 10}
	// Only the origin is on a road; every candidate is off it.
	road := func(p mgl64.Vec3) Topology {
		if p == center {
			return TopologyRoad
		}
		return TopologyField
	}

	probe := &fakeProbe{topology: road}
	f := NewFinder(probe, newTestRand(), FinderOptions{ProbeRange: 5})
	_, ok := f.FindSpawnPoint(center, 5, 20, 5)
	assert.False(t, ok, "origin topology rejects every attempt")
	for _, p := range probe.topoCalls {
		assert.Equal(t, center, p)
	}

	probe = &fakeProbe{topology: road}
	f = NewFinder(probe, newTestRand(), FinderOptions{ProbeRange: 5, TopologyAtCandidate: true})
	c, ok := f.FindSpawnPoint(center, 5, 20, 5)
	require.True(t, ok)
	assert.Equal(t, c.Position, probe.topoCalls[0])
}

func TestFindSpawnPointOrientationFollowsNormal(t *testing.T) {
	normal := mgl64.Vec3{0.3, 1, -0.2}.Normalize()
	probe := &fakeProbe{normal: normal}
	f := NewFinder(probe, newTestRand(), FinderOptions{ProbeRange: 5})

	yaws := map[string]bool{}
	for i := 0; i < 10; i++ {
		c, ok := f.FindSpawnPoint(mgl64.Vec3{}, 5, 20, 1)
		require.True(t, ok)
		up := c.Rotation.Rotate(Up)
		assert.Less(t, up.Sub(normal).Len(), 1e-9, "up %v normal %v", up, normal)
		fwd := c.Rotation.Rotate(mgl64.Vec3{0, 0, 1})
		yaws[fmt.Sprintf("%.4f,%.4f", fwd.X(), fwd.Z())] = true
	}
	assert.Greater(t, len(yaws), 1, "random yaw varies the heading")
}

func TestSurfaceRotationFlatGround(t *testing.T) {
	q := SurfaceRotation(Up, math.Pi/2)
	assert.Less(t, q.Rotate(Up).Sub(Up).Len(), 1e-12)
	fwd := q.Rotate(mgl64.Vec3{1, 0, 0})
	assert.Less(t, fwd.Sub(mgl64.Vec3{0, 0, -1}).Len(), 1e-12, "got %v", fwd)

	q = SurfaceRotation(mgl64.Vec3{}, 0)
	assert.Less(t, q.Rotate(Up).Sub(Up).Len(), 1e-12)
}

func TestRandomPointAroundDegenerateRange(t *testing.T) {
	rng := newTestRand()
	center := mgl64.Vec3{1, 2, 3}
	for i := 0; i < 50; i++ {
		p := RandomPointAround(rng, center, 7, 7)
		assert.InDelta(t, 7, HorizontalDistance(center, p), 1e-9)
		assert.Equal(t, 2.0, p.Y())
	}
}
