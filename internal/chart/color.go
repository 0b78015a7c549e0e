package chart

// DefaultColor is used for any category outside the known piece sizes.
const DefaultColor = "#999999"

// Piece size categories reported by the ultrasonic sensor.
const (
	CategoryLarge  = "Grande"
	CategoryMedium = "Media"
	CategorySmall  = "Pequena"
)

// ColorFor maps a category label to its display color.
func ColorFor(category string) string {
	switch category {
	case CategoryLarge:
		return "#fcff32ff"
	case CategoryMedium:
		return "#34e758ff"
	case CategorySmall:
		return "#ba66f5ff"
	default:
		return DefaultColor
	}
}
