package http

import (
	"github.com/nats-io/nats.go"

	"github.com/rentsignal/aircomps/internal/adapters/postgres"
	"github.com/rentsignal/aircomps/internal/adapters/valkey"
	"github.com/rentsignal/aircomps/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers. NATS, DB and
// Cache are optional; handlers degrade when they are nil.
type Dependencies struct {
	Comps    *usecases.CompsService
	Listings *usecases.ListingService
	History  *usecases.HistoryService
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache

	// AuthToken guards the data endpoints; empty disables authentication.
	AuthToken string
	// DefaultRadiusMiles applies when a comps request omits the radius.
	DefaultRadiusMiles float64
}
