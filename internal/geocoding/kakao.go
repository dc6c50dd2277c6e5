package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/UnknownOlympus/storemap/internal/models"
	"golang.org/x/time/rate"
)

// KakaoBaseURL is the Kakao Local address search endpoint.
const KakaoBaseURL = "https://dapi.kakao.com/v2/local/search/address.json"

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// KakaoProvider implements geocoding using the Kakao Local API.
type KakaoProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the Kakao API
	apiKey  string        // REST API key
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter shared by all workers
}

// kakaoResponse is the subset of the address search response we need.
// x is the longitude and y the latitude, both encoded as strings.
type kakaoResponse struct {
	Documents []struct {
		AddressName string `json:"address_name"`
		X           string `json:"x"`
		Y           string `json:"y"`
	} `json:"documents"`
}

// NewKakaoProvider creates a Kakao provider with a plain HTTP client.
// A rateLimit of zero disables client-side pacing.
func NewKakaoProvider(apiKey string, rateLimit int, log *slog.Logger) *KakaoProvider {
	return NewKakaoProviderWithClient(&http.Client{}, apiKey, newLimiter(rateLimit), log)
}

// NewKakaoProviderWithClient allows injecting custom HTTP client and limiter.
func NewKakaoProviderWithClient(
	client HTTPClient,
	apiKey string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *KakaoProvider {
	return &KakaoProvider{
		client:  client,
		baseURL: KakaoBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Geocode converts address into geographic coordinates using the Kakao Local API.
// The first document of the response is taken as the match.
func (kp *KakaoProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	if err := kp.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	kp.log.DebugContext(ctx, "Geocoding using Kakao", "address", address)

	reqURL, err := url.Parse(kp.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("query", address)
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+kp.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := kp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		body, _ := io.ReadAll(resp.Body)
		kp.log.ErrorContext(ctx, "Kakao API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("kakao API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result kakaoResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode kakao response: %w", err)
	}

	if len(result.Documents) == 0 {
		return nil, ErrNotFound
	}

	doc := result.Documents[0]
	lon, err := strconv.ParseFloat(doc.X, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse longitude %q: %w", doc.X, err)
	}
	lat, err := strconv.ParseFloat(doc.Y, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse latitude %q: %w", doc.Y, err)
	}

	kp.log.DebugContext(ctx, "Kakao found result", "address", address, "match", doc.AddressName)

	return &models.Coordinates{Longitude: lon, Latitude: lat}, nil
}

func newLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}
