package geocode

import (
	"context"
	"errors"
)

var (
	// ErrNoMatch is returned by a Geocoder when the service has no candidate
	// for the query. It is not retried.
	ErrNoMatch = errors.New("no geocoding match")

	// ErrRejected is returned by a Geocoder when the service refuses the
	// query itself (bad request, forbidden). It is not retried.
	ErrRejected = errors.New("geocoding query rejected")
)

// Query is one forward-geocoding request.
type Query struct {
	Text         string
	CountryCodes []string // ISO 3166-1 alpha-2, e.g. "id"
	Limit        int
}

// Place is the single best candidate returned for a Query.
type Place struct {
	Lat     float64
	Lon     float64
	Display string
}

// Geocoder is the external address-to-coordinate capability. Any error other
// than ErrNoMatch or ErrRejected is treated as transient and retried.
type Geocoder interface {
	Geocode(ctx context.Context, q Query) (Place, error)
}

// GeocoderFunc adapts a function to the Geocoder interface.
type GeocoderFunc func(ctx context.Context, q Query) (Place, error)

// Geocode calls f.
func (f GeocoderFunc) Geocode(ctx context.Context, q Query) (Place, error) {
	return f(ctx, q)
}
