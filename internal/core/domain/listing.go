package domain

import "time"

// RawListing is one record as returned by the upstream stays search. Its
// shape is not ours: fields move between top level and a nested "listing"
// object across upstream schema versions, so it stays a loose map until the
// normalizer has flattened it.
type RawListing = map[string]any

// Listing is the slim normalized shape returned to clients. Every field is
// optional: a null means no probe in the fallback chain resolved a value,
// which is expected and never an error.
type Listing struct {
	// ID is the identifier exactly as the upstream supplied it. Newer search
	// schemas emit a 19-20 digit internal id here that is NOT the classic
	// room id used by the detail endpoints.
	ID *string `json:"id"`
	// LegacyID is the classic room identifier when the record carries one in
	// a dedicated field. We never derive it by truncating ID.
	LegacyID *string  `json:"legacy_id"`
	Title    *string  `json:"title"`
	Price    any      `json:"price"` // numeric amount or formatted label, passed through as-is
	Persons  *int     `json:"persons"`
	Rating   *float64 `json:"rating"`
	Reviews  *int     `json:"reviews"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	URL      *string  `json:"url"`
	// DistanceMi is computed from the search center when coordinates
	// resolved; absent on the single-listing path.
	DistanceMi *float64 `json:"distance_mi,omitempty"`
}

// SearchQuery is the upstream-facing query for one comps search.
type SearchQuery struct {
	Box      Bounds
	CheckIn  string // YYYY-MM-DD, optional
	CheckOut string // YYYY-MM-DD, optional
	PriceMin int    // 0 = unset
	PriceMax int    // 0 = unset
	Currency string
	Locale   string
	Zoom     int
}

// SearchResult echoes the request back along with the normalized listings,
// in the exact order the upstream returned them.
type SearchResult struct {
	Center      GeoPoint  `json:"center"`
	RadiusMiles float64   `json:"radius_mi"`
	Count       int       `json:"count"`
	Listings    []Listing `json:"listings"`
}

// ListingSnapshot bundles the three upstream payloads for a single room:
// metadata, a nightly-rate quote, and an availability calendar. The payloads
// are opaque; we do not own their schema.
type ListingSnapshot struct {
	RoomID   string         `json:"room_id"`
	Details  map[string]any `json:"details"`
	Pricing  map[string]any `json:"pricing"`
	Calendar map[string]any `json:"calendar"`
}

// SearchLog records one performed comps search for the history endpoint.
type SearchLog struct {
	ID          string    `json:"id"`
	Center      GeoPoint  `json:"center"`
	RadiusMiles float64   `json:"radius_mi"`
	CheckIn     string    `json:"check_in,omitempty"`
	CheckOut    string    `json:"check_out,omitempty"`
	Count       int       `json:"count"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchEvent is published after each successful comps search.
type SearchEvent struct {
	Center      GeoPoint  `json:"center"`
	RadiusMiles float64   `json:"radius_mi"`
	Count       int       `json:"count"`
	At          time.Time `json:"at"`
}
