package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/rentsignal/aircomps/internal/core/domain"
	"github.com/rentsignal/aircomps/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	listingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Listing",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"legacy_id":   &graphql.Field{Type: graphql.String},
			"title":       &graphql.Field{Type: graphql.String},
			"price":       &graphql.Field{Type: graphql.String, Resolve: resolvePrice},
			"persons":     &graphql.Field{Type: graphql.Int},
			"rating":      &graphql.Field{Type: graphql.Float},
			"reviews":     &graphql.Field{Type: graphql.Int},
			"lat":         &graphql.Field{Type: graphql.Float},
			"lon":         &graphql.Field{Type: graphql.Float},
			"url":         &graphql.Field{Type: graphql.String},
			"distance_mi": &graphql.Field{Type: graphql.Float},
		},
	})

	searchResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SearchResult",
		Fields: graphql.Fields{
			"center":    &graphql.Field{Type: geoPointType},
			"radius_mi": &graphql.Field{Type: graphql.Float},
			"count":     &graphql.Field{Type: graphql.Int},
			"listings":  &graphql.Field{Type: graphql.NewList(listingType)},
		},
	})

	searchLogType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SearchLog",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"center":      &graphql.Field{Type: geoPointType},
			"radius_mi":   &graphql.Field{Type: graphql.Float},
			"check_in":    &graphql.Field{Type: graphql.String},
			"check_out":   &graphql.Field{Type: graphql.String},
			"count":       &graphql.Field{Type: graphql.Int},
			"duration_ms": &graphql.Field{Type: graphql.Int},
			"created_at":  &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"comps": &graphql.Field{
				Type:        searchResultType,
				Description: "Comparable listings around a center point",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius":    &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 5.0},
					"check_in":  &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"check_out": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.GeoPoint{
						Lat: p.Args["lat"].(float64),
						Lon: p.Args["lon"].(float64),
					}
					radius := p.Args["radius"].(float64)
					opts := usecases.SearchOptions{
						CheckIn:  p.Args["check_in"].(string),
						CheckOut: p.Args["check_out"].(string),
					}
					return deps.Comps.Search(p.Context, center, radius, opts)
				},
			},
			"availability": &graphql.Field{
				Type: graphql.NewObject(graphql.ObjectConfig{
					Name: "ListingSnapshot",
					Fields: graphql.Fields{
						"room_id":  &graphql.Field{Type: graphql.String},
						"details":  &graphql.Field{Type: jsonScalar},
						"pricing":  &graphql.Field{Type: jsonScalar},
						"calendar": &graphql.Field{Type: jsonScalar},
					},
				}),
				Description: "Details, pricing and calendar for one room",
				Args: graphql.FieldConfigArgument{
					"room":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"check_in":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"check_out": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Listings.Availability(p.Context,
						p.Args["room"].(string),
						p.Args["check_in"].(string),
						p.Args["check_out"].(string))
				},
			},
			"recentSearches": &graphql.Field{
				Type:        graphql.NewList(searchLogType),
				Description: "Recently performed comps searches",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.History.Recent(p.Context, p.Args["limit"].(int))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// jsonScalar passes opaque upstream payloads through untyped.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value",
	Serialize:   func(value interface{}) interface{} { return value },
	ParseValue:  func(value interface{}) interface{} { return value },
	ParseLiteral: func(valueAST ast.Value) interface{} {
		return nil
	},
})

// resolvePrice renders the loose price value (number or label) as a string.
func resolvePrice(p graphql.ResolveParams) (interface{}, error) {
	l, ok := p.Source.(domain.Listing)
	if !ok {
		return nil, nil
	}
	if l.Price == nil {
		return nil, nil
	}
	return fmt.Sprintf("%v", l.Price), nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
