package geocoding

import (
	"errors"
	"fmt"
	"log/slog"

	"googlemaps.github.io/maps"
)

// ProviderType represents the type of geocoding provider.
type ProviderType string

const (
	// ProviderTypeKakao represents the Kakao Local address search.
	ProviderTypeKakao ProviderType = "kakao"
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
)

// placeholderAPIKey is the value shipped in sample env files.
const placeholderAPIKey = "YOUR_REST_API_KEY_HERE"

// ErrMissingAPIKey is returned when a provider is created without usable credentials.
var ErrMissingAPIKey = errors.New("API key is required")

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	Type      ProviderType // Type of provider to create, kakao when empty
	APIKey    string       // API key
	RateLimit int          // Rate limit for requests per second
	Logger    *slog.Logger // Logger for the provider
}

// NewProvider creates a geocoding provider based on the provided configuration.
//
// Supported provider types:
// - "kakao": Kakao Local address search (default)
// - "google": Google Maps Geocoding API
//
// Returns an error if the provider type is unsupported or the API key is missing.
func NewProvider(config ProviderConfig) (Provider, error) {
	if config.Type == "" {
		config.Type = ProviderTypeKakao
	}

	if config.APIKey == "" || config.APIKey == placeholderAPIKey {
		return nil, fmt.Errorf("%w for %s provider", ErrMissingAPIKey, config.Type)
	}

	switch config.Type {
	case ProviderTypeKakao:
		return NewKakaoProvider(config.APIKey, config.RateLimit, config.Logger), nil
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// newGoogleProvider creates a Google Maps geocoding provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}

	if config.RateLimit > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(config.RateLimit))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleProvider(client, config.Logger), nil
}
