package pipeline

// Level2Product is the single Level 2 target: full reflectivity volumes.
var Level2Product = ProductSpec{
	Level:   2,
	Product: "reflectivity",
	Field:   "reflectivity",
}

// Level3Products are the Level 3 targets. Their product codes come from the
// code catalog at run time, and their per-code counts are written back to it.
var Level3Products = []ProductSpec{
	{Level: 3, Product: "hydrometeor", Field: "radar_echo_classification", UsesCodeCatalog: true},
	{Level: 3, Product: "precipitation", Field: "radar_estimated_rain_rate", UsesCodeCatalog: true},
}

// AllProducts returns every configured product, Level 2 first.
func AllProducts() []ProductSpec {
	return append([]ProductSpec{Level2Product}, Level3Products...)
}
