package risk

var guidance = map[Category]string{
	CategoryBackground: "Activity consistent with long-term background. Routine monitoring.",
	CategoryLow:        "Slightly above background. Review monitoring data as it arrives.",
	CategoryModerate:   "Moderate eruption likelihood. Keep hazard maps and contact lists current.",
	CategoryElevated:   "Elevated likelihood. Increase review frequency and confirm local agency bulletins.",
	CategoryHigh:       "High likelihood. Follow official advisories and prepare for possible evacuation of danger zones.",
	CategoryVeryHigh:   "Very high likelihood. Coordinate with civil protection and avoid permanent danger zones.",
	CategoryCritical:   "Critical. Follow official evacuation orders without delay.",
}

// Guidance returns the advisory text for a category.
func Guidance(c Category) string {
	if g, ok := guidance[c]; ok {
		return g
	}
	return guidance[CategoryBackground]
}
