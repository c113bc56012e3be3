package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.ngs.io/nearest-api/internal/domain"
	"go.ngs.io/nearest-api/internal/geocode"
)

var (
	// ErrAddressNotFound means the geocoder had no match for the address.
	ErrAddressNotFound = errors.New("address not found")
	// ErrLookupUnavailable means the geocoder could not be reached.
	ErrLookupUnavailable = errors.New("geocoding service unavailable")
)

// Resolver resolves one address. *geocode.Client implements it.
type Resolver interface {
	Resolve(ctx context.Context, address string) geocode.Result
}

// ReferenceResult is a geocoded reference point
type ReferenceResult struct {
	Point   domain.Point `json:"-"`
	Label   string       `json:"label"`
	Lat     float64      `json:"lat"`
	Lon     float64      `json:"lon"`
	Display string       `json:"display"`
	Query   string       `json:"query"`
	Cached  bool         `json:"cached"`
}

// ReferenceUseCase turns an address into a reference point
type ReferenceUseCase struct {
	resolver Resolver
}

// NewReferenceUseCase creates a new reference use case
func NewReferenceUseCase(resolver Resolver) *ReferenceUseCase {
	return &ReferenceUseCase{resolver: resolver}
}

// Geocode resolves address and labels the resulting point. An empty label
// falls back to the display address.
func (uc *ReferenceUseCase) Geocode(ctx context.Context, address, label string) (*ReferenceResult, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("address is required")
	}

	res := uc.resolver.Resolve(ctx, address)
	switch res.Status {
	case geocode.StatusFound:
	case geocode.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, res.Key)
	default:
		return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, res.Err)
	}

	if label = strings.TrimSpace(label); label == "" {
		label = res.Entry.Display
	}

	return &ReferenceResult{
		Point:   domain.Point{Name: label, Lat: res.Entry.Lat, Lon: res.Entry.Lon},
		Label:   label,
		Lat:     res.Entry.Lat,
		Lon:     res.Entry.Lon,
		Display: res.Entry.Display,
		Query:   res.Key,
		Cached:  res.Cached,
	}, nil
}
