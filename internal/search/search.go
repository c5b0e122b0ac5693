package search

import (
	"context"

	"github.com/i474232898/pinweather/internal/geo"
)

// Result is a single place-search candidate. It is ephemeral and consumed once
// when the user picks it.
type Result struct {
	Name       string         `json:"name"`
	Coordinate geo.Coordinate `json:"coordinate"`
}

// Provider resolves free text into candidate places.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
}
