// Package geocoder defines the lookup contract the CSV pipeline consumes.
package geocoder

import (
	"context"
	"errors"
	"fmt"
)

type LatLon struct {
	Lat float64
	Lon float64
}

// Result is one matched entity as reported by the geocoding engine.
type Result struct {
	Lat         float64
	Lon         float64
	Label       string
	Score       float64
	Distance    float64
	Type        string
	ID          string
	HouseNumber string
	// remaining entity properties (postcode, city, context...)
	Attributes map[string]string
}

type SearchQuery struct {
	Text         string
	Filters      map[string]string
	Center       *LatLon
	Autocomplete bool
	Limit        int
}

type ReverseQuery struct {
	Lat     float64
	Lon     float64
	Filters map[string]string
	Limit   int
}

// Geocoder resolves free text or coordinates to ranked results.
// An empty slice with a nil error is a miss.
type Geocoder interface {
	Search(ctx context.Context, q SearchQuery) ([]Result, error)
	Reverse(ctx context.Context, q ReverseQuery) ([]Result, error)
}

var ErrQueryTooLarge = errors.New("query too large")

// QueryTooLargeError is returned by Search when the query text exceeds the
// engine's length limit. Length and Limit are counted in characters.
type QueryTooLargeError struct {
	Length int
	Limit  int
}

func (e *QueryTooLargeError) Error() string {
	return fmt.Sprintf("query too long, %d chars, limit is %d", e.Length, e.Limit)
}

func (e *QueryTooLargeError) Is(target error) bool { return target == ErrQueryTooLarge }
