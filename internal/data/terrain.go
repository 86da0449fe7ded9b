package data

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// TerrainInfo holds metadata for a terrain patch, loaded from terrain.yaml.
// Samples sit on a regular grid starting at (OriginX, OriginZ), CellSize apart.
type TerrainInfo struct {
	Name         string  `yaml:"name"`
	OriginX      float64 `yaml:"origin_x"`
	OriginZ      float64 `yaml:"origin_z"`
	CellSize     float64 `yaml:"cell_size"`
	Width        int     `yaml:"width"` // samples along X
	Depth        int     `yaml:"depth"` // samples along Z
	HeightScale  float64 `yaml:"height_scale"`
	WaterLevel   float64 `yaml:"water_level"`
	HeightFile   string  `yaml:"height_file"`
	TopologyFile string  `yaml:"topology_file"`
}

// Terrain provides height, normal, topology and water lookups.
type Terrain struct {
	info     TerrainInfo
	heights  []float64 // flat array [z * width + x]
	topology []uint32
}

type terrainFile struct {
	Terrain TerrainInfo `yaml:"terrain"`
}

// LoadTerrain loads terrain metadata from YAML and sample grids from text files.
// yamlPath: path to terrain.yaml
// tileDir: directory containing the height and topology files
func LoadTerrain(yamlPath, tileDir string) (*Terrain, error) {
	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("read terrain %s: %w", yamlPath, err)
	}
	var file terrainFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse terrain: %w", err)
	}
	info := file.Terrain
	if info.Width < 2 || info.Depth < 2 || info.CellSize <= 0 {
		return nil, fmt.Errorf("terrain %q: need at least 2x2 samples and a positive cell size", info.Name)
	}
	if info.HeightScale == 0 {
		info.HeightScale = 1
	}

	heights, err := loadGrid(filepath.Join(tileDir, info.HeightFile), info.Width, info.Depth,
		func(tok string) (float64, error) { return strconv.ParseFloat(tok, 64) })
	if err != nil {
		return nil, fmt.Errorf("terrain %q heights: %w", info.Name, err)
	}
	for i := range heights {
		heights[i] *= info.HeightScale
	}

	topology := make([]uint32, info.Width*info.Depth)
	if info.TopologyFile != "" {
		topology, err = loadGrid(filepath.Join(tileDir, info.TopologyFile), info.Width, info.Depth,
			func(tok string) (uint32, error) {
				v, err := strconv.ParseUint(tok, 0, 32)
				return uint32(v), err
			})
		if err != nil {
			return nil, fmt.Errorf("terrain %q topology: %w", info.Name, err)
		}
	}

	return NewTerrain(info, heights, topology), nil
}

// NewTerrain builds a terrain from in-memory grids laid out [z * width + x].
func NewTerrain(info TerrainInfo, heights []float64, topology []uint32) *Terrain {
	if info.HeightScale == 0 {
		info.HeightScale = 1
	}
	if topology == nil {
		topology = make([]uint32, info.Width*info.Depth)
	}
	return &Terrain{info: info, heights: heights, topology: topology}
}

// loadGrid reads a CSV grid: each line is a row along X, one line per Z.
// Blank lines and lines starting with '#' are skipped. Missing rows or
// columns are an error.
func loadGrid[T any](path string, width, depth int, parse func(string) (T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	grid := make([]T, width*depth)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	z := 0
	for scanner.Scan() && z < depth {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		toks := strings.Split(line, ",")
		if len(toks) < width {
			return nil, fmt.Errorf("%s row %d: %d columns, want %d", path, z, len(toks), width)
		}
		for x := 0; x < width; x++ {
			v, err := parse(strings.TrimSpace(toks[x]))
			if err != nil {
				return nil, fmt.Errorf("%s row %d col %d: %w", path, z, x, err)
			}
			grid[z*width+x] = v
		}
		z++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if z < depth {
		return nil, fmt.Errorf("%s: %d rows, want %d", path, z, depth)
	}
	return grid, nil
}

func (t *Terrain) Info() TerrainInfo { return t.info }

func (t *Terrain) WaterLevel() float64 { return t.info.WaterLevel }

// Bounds returns the min and max corners on the horizontal plane.
func (t *Terrain) Bounds() (minX, minZ, maxX, maxZ float64) {
	minX, minZ = t.info.OriginX, t.info.OriginZ
	maxX = minX + float64(t.info.Width-1)*t.info.CellSize
	maxZ = minZ + float64(t.info.Depth-1)*t.info.CellSize
	return
}

// Contains checks if (x, z) lies within the sampled area.
func (t *Terrain) Contains(x, z float64) bool {
	minX, minZ, maxX, maxZ := t.Bounds()
	return x >= minX && x <= maxX && z >= minZ && z <= maxZ
}

func (t *Terrain) sample(ix, iz int) float64 {
	ix = min(max(ix, 0), t.info.Width-1)
	iz = min(max(iz, 0), t.info.Depth-1)
	return t.heights[iz*t.info.Width+ix]
}

// HeightAt returns the bilinearly interpolated height, or false outside the
// terrain.
func (t *Terrain) HeightAt(x, z float64) (float64, bool) {
	if !t.Contains(x, z) {
		return 0, false
	}
	gx := (x - t.info.OriginX) / t.info.CellSize
	gz := (z - t.info.OriginZ) / t.info.CellSize
	ix, iz := int(math.Floor(gx)), int(math.Floor(gz))
	fx, fz := gx-float64(ix), gz-float64(iz)

	h00 := t.sample(ix, iz)
	h10 := t.sample(ix+1, iz)
	h01 := t.sample(ix, iz+1)
	h11 := t.sample(ix+1, iz+1)

	h0 := h00 + (h10-h00)*fx
	h1 := h01 + (h11-h01)*fx
	return h0 + (h1-h0)*fz, true
}

// NormalAt returns the unit surface normal from central differences,
// falling back to one-sided differences at the grid edge.
func (t *Terrain) NormalAt(x, z float64) mgl64.Vec3 {
	d := t.info.CellSize / 2
	h, _ := t.HeightAt(x, z)
	dx := t.slope(h, x-d, z, x+d, z, d)
	dz := t.slope(h, x, z-d, x, z+d, d)
	return mgl64.Vec3{-dx, 1, -dz}.Normalize()
}

// slope differences the samples at (x0,z0) and (x1,z1), each lying d from
// the centre height h. A sample off the grid is replaced by h and the span
// shrinks to match.
func (t *Terrain) slope(h, x0, z0, x1, z1, d float64) float64 {
	lo, okLo := t.HeightAt(x0, z0)
	hi, okHi := t.HeightAt(x1, z1)
	span := 0.0
	if okLo {
		span += d
	} else {
		lo = h
	}
	if okHi {
		span += d
	} else {
		hi = h
	}
	if span == 0 {
		return 0
	}
	return (hi - lo) / span
}

// TopologyAt returns the topology flags of the nearest sample, 0 outside.
func (t *Terrain) TopologyAt(x, z float64) uint32 {
	if !t.Contains(x, z) {
		return 0
	}
	ix := int(math.Round((x - t.info.OriginX) / t.info.CellSize))
	iz := int(math.Round((z - t.info.OriginZ) / t.info.CellSize))
	ix = min(max(ix, 0), t.info.Width-1)
	iz = min(max(iz, 0), t.info.Depth-1)
	return t.topology[iz*t.info.Width+ix]
}
