package geo

// RegionUnknown is attributed to presses that fall outside every
// configured region box (open ocean, poles).
const RegionUnknown = "International Waters"

// regionBox is a coarse latitude/longitude bounding box. Boxes are
// checked in order; the first match wins, so more specific boxes must
// come before the broad ones they overlap.
type regionBox struct {
	name           string
	minLat, maxLat float64
	minLon, maxLon float64
}

var regionBoxes = []regionBox{
	{"Central America", 7, 23, -93, -77},
	{"North America", 23, 72, -168, -52},
	{"South America", -56, 13, -82, -34},
	{"Europe", 36, 71, -10, 40},
	{"Middle East", 12, 42, 26, 63},
	{"Africa", -35, 37, -18, 52},
	{"South Asia", 5, 36, 60, 92},
	{"East Asia", 18, 54, 92, 146},
	{"North Asia", 40, 78, 40, 180},
	{"Southeast Asia", -11, 18, 92, 141},
	{"Oceania", -48, -10, 110, 180},
}

// ResolveRegion maps raw coordinates to a coarse region label. It is a
// pure function of its input and always returns a non-empty label.
func ResolveRegion(c Coordinates) string {
	if c.Validate() != nil {
		return RegionUnknown
	}
	for _, box := range regionBoxes {
		if c.Lat >= box.minLat && c.Lat <= box.maxLat &&
			c.Lon >= box.minLon && c.Lon <= box.maxLon {
			return box.name
		}
	}
	return RegionUnknown
}
