package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rentsignal/aircomps/internal/core/domain"
	"github.com/rentsignal/aircomps/internal/core/usecases"
)

// CompsHandler runs a comparable-listing search around a center point.
// GET /v1/comps?lat=&lon=&radius=&check_in=&check_out=&price_min=&price_max=
func CompsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		center := domain.GeoPoint{
			Lat: c.QueryFloat("lat", 0),
			Lon: c.QueryFloat("lon", 0),
		}
		radius := c.QueryFloat("radius", deps.DefaultRadiusMiles)

		opts := usecases.SearchOptions{
			CheckIn:  c.Query("check_in"),
			CheckOut: c.Query("check_out"),
			PriceMin: c.QueryInt("price_min", 0),
			PriceMax: c.QueryInt("price_max", 0),
		}

		result, err := deps.Comps.Search(c.Context(), center, radius, opts)
		if err != nil {
			return serviceError(c, err)
		}

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(result)
	}
}

// AvailabilityHandler returns details, pricing and the availability calendar
// for one room.
// GET /v1/listings/:room/availability?check_in=&check_out=
func AvailabilityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		room := c.Params("room")
		checkIn := c.Query("check_in")
		checkOut := c.Query("check_out")
		if checkIn == "" || checkOut == "" {
			return errBadRequest(c, "check_in and check_out are required")
		}

		snap, err := deps.Listings.Availability(c.Context(), room, checkIn, checkOut)
		if err != nil {
			return serviceError(c, err)
		}

		c.Set("Cache-Control", "public, max-age=600")
		return c.JSON(snap)
	}
}

// RecentSearchesHandler lists recently performed comps searches.
// GET /v1/searches/recent?offset=&limit=
func RecentSearchesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 20)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		logs, total, err := deps.History.Page(c.Context(), offset, limit)
		if err != nil {
			return serviceError(c, err)
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: logs, Pagination: pg})
	}
}

// LegacySearchHandler serves the original flat /search route. It keeps the
// old response envelope, including the "centre" spelling, so existing
// clients stay unbroken until the sunset date.
func LegacySearchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		center := domain.GeoPoint{
			Lat: c.QueryFloat("lat", 0),
			Lon: c.QueryFloat("lon", 0),
		}
		radius := c.QueryFloat("radius", deps.DefaultRadiusMiles)

		opts := usecases.SearchOptions{
			CheckIn:  c.Query("check_in"),
			CheckOut: c.Query("check_out"),
		}

		result, err := deps.Comps.Search(c.Context(), center, radius, opts)
		if err != nil {
			return serviceError(c, err)
		}

		return c.JSON(fiber.Map{
			"centre":    result.Center,
			"radius_mi": result.RadiusMiles,
			"count":     result.Count,
			"listings":  result.Listings,
		})
	}
}

// LegacyCalendarHandler serves the original flat /calendar route.
func LegacyCalendarHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		room := c.Query("room")
		checkIn := c.Query("check_in")
		checkOut := c.Query("check_out")
		if room == "" || checkIn == "" || checkOut == "" {
			return errBadRequest(c, "room, check_in and check_out are required")
		}

		snap, err := deps.Listings.Availability(c.Context(), room, checkIn, checkOut)
		if err != nil {
			return serviceError(c, err)
		}

		return c.JSON(fiber.Map{
			"calendar": snap.Calendar,
			"details":  snap.Details,
			"pricing":  snap.Pricing,
		})
	}
}
