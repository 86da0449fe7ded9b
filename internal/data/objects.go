package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeGroup places Count ore nodes of one prefab within Spread of (X, Z).
type NodeGroup struct {
	Prefab string  `yaml:"prefab"`
	X      float64 `yaml:"x"`
	Z      float64 `yaml:"z"`
	Count  int     `yaml:"count"`
	Spread float64 `yaml:"spread"`
}

// Structure is a static player-built or deployed object.
type Structure struct {
	Name   string  `yaml:"name"`
	Layer  string  `yaml:"layer"` // construction, deployed or default
	X      float64 `yaml:"x"`
	Z      float64 `yaml:"z"`
	Radius float64 `yaml:"radius"`
}

// WorldObjects is the initial population of the sandbox world.
type WorldObjects struct {
	Nodes      []NodeGroup `yaml:"nodes"`
	Structures []Structure `yaml:"structures"`
}

// LoadWorldObjects loads node groups and structures from a YAML file.
func LoadWorldObjects(path string) (*WorldObjects, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world objects: %w", err)
	}
	var objs WorldObjects
	if err := yaml.Unmarshal(raw, &objs); err != nil {
		return nil, fmt.Errorf("parse world objects: %w", err)
	}
	for i, g := range objs.Nodes {
		if g.Prefab == "" {
			return nil, fmt.Errorf("node group %d: missing prefab", i)
		}
		if g.Count <= 0 {
			objs.Nodes[i].Count = 1
		}
	}
	for i, s := range objs.Structures {
		switch s.Layer {
		case "construction", "deployed", "default":
		case "":
			objs.Structures[i].Layer = "deployed"
		default:
			return nil, fmt.Errorf("structure %q: unknown layer %q", s.Name, s.Layer)
		}
	}
	return &objs, nil
}

// NodeCount returns how many nodes the groups will place.
func (w *WorldObjects) NodeCount() int {
	n := 0
	for _, g := range w.Nodes {
		n += g.Count
	}
	return n
}
