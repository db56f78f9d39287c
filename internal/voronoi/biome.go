package voronoi

// Biome is the classified terrain type of a cell.
type Biome uint8

const (
	BiomeNone       Biome = iota // Not classified yet
	BiomeOcean                   // Below sea level
	BiomeLake                    // Inland sink above sea level
	BiomeRiver                   // High accumulated flow
	BiomeBeach                   // Just above sea level
	BiomeMarsh                   // Low and saturated
	BiomeDesert                  // Dry lowland
	BiomeGrassland               // Moderate moisture
	BiomeForest                  // Wet midland
	BiomeRainforest              // Very wet lowland
	BiomeTundra                  // Cold highland
	BiomeMountain                // High and rocky
	BiomeSnow                    // Peaks
	BiomeOutside    Biome = 255  // Raster sentinel: outside the sampling bounds
)

// Biomes lists every classifiable biome in declaration order.
var Biomes = []Biome{
	BiomeOcean, BiomeLake, BiomeRiver, BiomeBeach, BiomeMarsh, BiomeDesert,
	BiomeGrassland, BiomeForest, BiomeRainforest, BiomeTundra, BiomeMountain, BiomeSnow,
}

// String returns a human-readable name for a biome.
func (b Biome) String() string {
	switch b {
	case BiomeNone:
		return "None"
	case BiomeOcean:
		return "Ocean"
	case BiomeLake:
		return "Lake"
	case BiomeRiver:
		return "River"
	case BiomeBeach:
		return "Beach"
	case BiomeMarsh:
		return "Marsh"
	case BiomeDesert:
		return "Desert"
	case BiomeGrassland:
		return "Grassland"
	case BiomeForest:
		return "Forest"
	case BiomeRainforest:
		return "Rainforest"
	case BiomeTundra:
		return "Tundra"
	case BiomeMountain:
		return "Mountain"
	case BiomeSnow:
		return "Snow"
	case BiomeOutside:
		return "Outside"
	default:
		return "Unknown"
	}
}

// IsWater reports whether the biome is open water.
func (b Biome) IsWater() bool {
	return b == BiomeOcean || b == BiomeLake || b == BiomeRiver
}
