package models

type Category string

const (
	CategoryCardio    Category = "cardio"
	CategoryEnergy    Category = "energy"
	CategoryEndurance Category = "endurance"
	CategoryStrength  Category = "strength"
	CategorySpeed     Category = "speed"
	CategoryIntensity Category = "intensity"

	// UnknownCategory is the label of a performance value whose kind id is
	// missing from the source mapping.
	UnknownCategory Category = "unknown"
)

// CanonicalCategories is the storage order of a PerformanceRecord.
var CanonicalCategories = [6]Category{
	CategoryCardio,
	CategoryEnergy,
	CategoryEndurance,
	CategoryStrength,
	CategorySpeed,
	CategoryIntensity,
}

// DisplayCategories is the order the radar chart is drawn in.
var DisplayCategories = [6]Category{
	CategoryIntensity,
	CategorySpeed,
	CategoryStrength,
	CategoryEndurance,
	CategoryEnergy,
	CategoryCardio,
}

func (c Category) Known() bool {
	for _, k := range CanonicalCategories {
		if c == k {
			return true
		}
	}
	return false
}
