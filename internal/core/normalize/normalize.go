// Package normalize flattens the upstream's schema-drifting search records
// into the slim listing shape the API returns. The upstream has shipped at
// least three shapes for the same data: fields directly on the record,
// fields nested one level under "listing", and mixtures of both, with
// pricing under "pricingQuote" or "price" and ratings either nested or
// flattened. Each output field therefore has an explicit, ordered chain of
// accessors; the first one that resolves wins, and a fully missed chain
// yields null, never an error.
package normalize

import (
	"encoding/json"
	"strconv"

	"github.com/rentsignal/aircomps/internal/core/domain"
)

// probe attempts to read one candidate location from a raw record.
type probe func(raw domain.RawListing) (any, bool)

// at returns a probe that walks nested maps along keys. Missing keys, nil
// values, empty strings and non-map intermediates all report a miss.
func at(keys ...string) probe {
	return func(raw domain.RawListing) (any, bool) {
		var cur any = map[string]any(raw)
		for _, k := range keys {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = m[k]
			if !ok {
				return nil, false
			}
		}
		if cur == nil {
			return nil, false
		}
		if s, ok := cur.(string); ok && s == "" {
			return nil, false
		}
		return cur, true
	}
}

// Probe chains per output field, highest priority first. The order is the
// union of upstream schema versions observed in production; keep new
// variants at the end unless they are known to supersede an older shape.
var (
	idChain = []probe{
		at("listing", "id"),
		at("listing", "listingId"),
		at("id"),
		at("listingId"),
	}
	legacyIDChain = []probe{
		at("listing", "legacyId"),
		at("legacyId"),
	}
	titleChain = []probe{
		at("listing", "name"),
		at("listing", "title"),
		at("title"),
	}
	priceChain = []probe{
		at("pricingQuote", "rate", "amount"),
		at("price", "rate", "amount"),
		at("pricingQuote", "label"),
		at("price", "label"),
	}
	personsChain = []probe{
		at("personCapacity"),
	}
	ratingChain = []probe{
		at("listing", "avgRating"),
		at("rating", "guestSatisfaction"),
	}
	reviewsChain = []probe{
		at("listing", "reviewsCount"),
		at("rating", "reviewsCount"),
	}
	latChain = []probe{
		at("listing", "lat"),
		at("listing", "coordinates", "latitude"),
		at("coordinates", "latitude"),
	}
	lonChain = []probe{
		at("listing", "lng"),
		at("listing", "coordinates", "longitude"),
		at("coordinates", "longitude"),
	}
	urlChain = []probe{
		at("listing", "url"),
		at("url"),
	}
)

// first runs a chain in order and returns the first hit.
func first(raw domain.RawListing, chain []probe) (any, bool) {
	for _, p := range chain {
		if v, ok := p(raw); ok {
			return v, true
		}
	}
	return nil, false
}

// Listing maps one raw search record to the slim output shape. It is a
// total function: any input, including nil, produces a Listing whose
// unresolved fields are null.
func Listing(raw domain.RawListing) domain.Listing {
	var l domain.Listing

	l.ID = asString(first(raw, idChain))
	l.Title = asString(first(raw, titleChain))
	l.Persons = asInt(first(raw, personsChain))
	l.Rating = asFloat(first(raw, ratingChain))
	l.Reviews = asInt(first(raw, reviewsChain))
	l.Lat = asFloat(first(raw, latChain))
	l.Lon = asFloat(first(raw, lonChain))
	l.URL = asString(first(raw, urlChain))

	// Price passes through whichever representation the upstream supplied,
	// numeric amount or formatted label. No unit or currency normalization.
	if v, ok := first(raw, priceChain); ok {
		l.Price = v
	}

	// Classic id: a dedicated legacy field wins; otherwise listingId counts
	// only when it differs from the raw id (some schemas duplicate them).
	l.LegacyID = asString(first(raw, legacyIDChain))
	if l.LegacyID == nil {
		if alt := asString(first(raw, []probe{at("listing", "listingId"), at("listingId")})); alt != nil {
			if l.ID == nil || *alt != *l.ID {
				l.LegacyID = alt
			}
		}
	}

	return l
}

// MissingFields names the output fields that resolved to null, for the
// schema-drift metrics. LegacyID and distance are excluded: they are
// legitimately absent on most records.
func MissingFields(l domain.Listing) []string {
	var missing []string
	if l.ID == nil {
		missing = append(missing, "id")
	}
	if l.Title == nil {
		missing = append(missing, "title")
	}
	if l.Price == nil {
		missing = append(missing, "price")
	}
	if l.Persons == nil {
		missing = append(missing, "persons")
	}
	if l.Rating == nil {
		missing = append(missing, "rating")
	}
	if l.Reviews == nil {
		missing = append(missing, "reviews")
	}
	if l.Lat == nil {
		missing = append(missing, "lat")
	}
	if l.Lon == nil {
		missing = append(missing, "lon")
	}
	if l.URL == nil {
		missing = append(missing, "url")
	}
	return missing
}

// asString renders identifiers and text fields. Numeric identifiers are kept
// as their exact digit strings; with UseNumber decoding this preserves the
// 19-20 digit internal ids that overflow float64.
func asString(v any, ok bool) *string {
	if !ok {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

func asFloat(v any, ok bool) *float64 {
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case float64:
		return &t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return &f
		}
	}
	return nil
}

func asInt(v any, ok bool) *int {
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case int:
		return &t
	case int64:
		n := int(t)
		return &n
	case float64:
		n := int(t)
		return &n
	case json.Number:
		if i, err := t.Int64(); err == nil {
			n := int(i)
			return &n
		}
		if f, err := t.Float64(); err == nil {
			n := int(f)
			return &n
		}
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return &n
		}
	}
	return nil
}
