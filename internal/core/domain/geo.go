package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is a rectangular search region defined by its north-east and
// south-west corners. Computed fresh per search, never persisted.
type Bounds struct {
	NELat float64 `json:"ne_lat"`
	NELon float64 `json:"ne_lon"`
	SWLat float64 `json:"sw_lat"`
	SWLon float64 `json:"sw_lon"`
}
