package geocoding

import (
	"context"
	"errors"

	"github.com/UnknownOlympus/storemap/internal/models"
)

// Provider is an interface that defines a method for geocoding an address.
// The Geocode method takes a context and an address string as input,
// and returns the corresponding coordinates and an error if any occurs.
//
// Implementations report an address without any match with ErrNotFound and
// throttling or quota exhaustion on the provider side with ErrRateLimited.
// Every other error is treated as transient.
type Provider interface {
	Geocode(ctx context.Context, address string) (*models.Coordinates, error)
}

// Classification errors shared by all providers.
var (
	ErrNotFound     = errors.New("no candidate found for address")
	ErrRateLimited  = errors.New("geocoding provider is throttling requests")
	ErrUnauthorized = errors.New("geocoding provider rejected the API key")
)

// Lookup geocodes a single address and classifies the result.
func Lookup(ctx context.Context, provider Provider, address string) models.Outcome {
	coords, err := provider.Geocode(ctx, address)
	switch {
	case err == nil && coords != nil:
		return models.Outcome{Status: models.OutcomeResolved, Coordinates: *coords}
	case err == nil:
		return models.Outcome{Status: models.OutcomeNotFound, Err: ErrNotFound}
	case errors.Is(err, ErrRateLimited):
		return models.Outcome{Status: models.OutcomeRateLimited, Err: err}
	case errors.Is(err, ErrNotFound):
		return models.Outcome{Status: models.OutcomeNotFound, Err: err}
	default:
		return models.Outcome{Status: models.OutcomeTransientError, Err: err}
	}
}
