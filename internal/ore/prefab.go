package ore

import (
	"fmt"
	"strings"
)

// Biome selects the visual variant of a replacement node.
type Biome int

const (
	BiomeDefault Biome = iota
	BiomeSnow
	BiomeSand
)

func (b Biome) String() string {
	switch b {
	case BiomeSnow:
		return "snow"
	case BiomeSand:
		return "sand"
	}
	return "default"
}

// dir is the autospawn folder holding this biome's ore prefabs.
func (b Biome) dir() string {
	switch b {
	case BiomeSnow:
		return "ores_snow"
	case BiomeSand:
		return "ores_sand"
	}
	return "ores"
}

// Kind is the ore a node yields.
type Kind int

const (
	KindUnknown Kind = iota
	KindMetal
	KindStone
	KindSulfur
)

func (k Kind) String() string {
	switch k {
	case KindMetal:
		return "metal"
	case KindStone:
		return "stone"
	case KindSulfur:
		return "sulfur"
	}
	return "unknown"
}

const prefabRoot = "assets/bundled/prefabs/autospawn/resource"

// Prefab is a resolved replacement descriptor.
type Prefab struct {
	Biome Biome
	Kind  Kind
}

// Path returns the canonical prefab path.
func (p Prefab) Path() string {
	return fmt.Sprintf("%s/%s/%s-ore.prefab", prefabRoot, p.Biome.dir(), p.Kind)
}

// ClassifyBiome matches "snow" before "sand"; anything else is default.
func ClassifyBiome(descriptor string) Biome {
	switch {
	case strings.Contains(descriptor, "snow"):
		return BiomeSnow
	case strings.Contains(descriptor, "sand"):
		return BiomeSand
	}
	return BiomeDefault
}

// ClassifyKind matches metal, stone, then sulfur.
func ClassifyKind(descriptor string) Kind {
	switch {
	case strings.Contains(descriptor, "metal"):
		return KindMetal
	case strings.Contains(descriptor, "stone"):
		return KindStone
	case strings.Contains(descriptor, "sulfur"):
		return KindSulfur
	}
	return KindUnknown
}

// ResolvePrefab maps a depleted node's descriptor to its replacement.
// ok is false when the ore kind is not recognised; nothing should spawn.
func ResolvePrefab(descriptor string) (Prefab, bool) {
	kind := ClassifyKind(descriptor)
	if kind == KindUnknown {
		return Prefab{}, false
	}
	return Prefab{Biome: ClassifyBiome(descriptor), Kind: kind}, true
}

// ResolvePrefabPath is ResolvePrefab returning the canonical path.
func ResolvePrefabPath(descriptor string) (string, bool) {
	p, ok := ResolvePrefab(descriptor)
	if !ok {
		return "", false
	}
	return p.Path(), true
}
