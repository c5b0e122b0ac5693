package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/search"
	"github.com/i474232898/pinweather/internal/upstream"
)

// API Docs: https://nominatim.org/release-docs/develop/api/Reverse/
// Sample request: https://nominatim.openstreetmap.org/reverse?lat=39.11&lon=-107.65&format=jsonv2
const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultSearchLimit  = 10
	userAgent           = "pinweather/1.0"
)

// NominatimClient reverse geocodes and searches places with OpenStreetMap Nominatim.
type NominatimClient struct {
	baseURL string
	limit   int
	client  *upstream.Client
}

func NewNominatimClient(httpClient *http.Client, baseURL string, limit int) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return &NominatimClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   limit,
		client:  upstream.NewClient("nominatim", httpClient),
	}
}

func (c *NominatimClient) Name() string {
	return "nominatim"
}

// ReverseGeocode returns "City, ST" for the coordinate.
func (c *NominatimClient) ReverseGeocode(ctx context.Context, coord geo.Coordinate) (string, error) {
	body, err := c.get(ctx, "/reverse", func(q url.Values) {
		q.Set("lat", fmt.Sprintf("%f", coord.Lat))
		q.Set("lon", fmt.Sprintf("%f", coord.Lon))
		q.Set("zoom", "10")
	})
	if err != nil {
		return "", upstream.NewProviderError(c.Name(), "reverse geocode", err)
	}

	var resp LookupAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", upstream.NewProviderError(c.Name(), "decode reverse geocode", err)
	}
	// Nominatim reports "Unable to geocode" for open water and similar spots.
	if resp.Error != "" {
		return "", nil
	}

	return FormatAddress(resp.Address.Locality(), resp.Address.RegionCode()), nil
}

// Search resolves free text into candidate places.
func (c *NominatimClient) Search(ctx context.Context, query string) ([]search.Result, error) {
	body, err := c.get(ctx, "/search", func(q url.Values) {
		q.Set("q", query)
		q.Set("limit", strconv.Itoa(c.limit))
		q.Set("addressdetails", "1")
	})
	if err != nil {
		return nil, upstream.NewProviderError(c.Name(), "search", err)
	}

	var places []LookupAPIResponse
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, upstream.NewProviderError(c.Name(), "decode search", err)
	}

	results := make([]search.Result, 0, len(places))
	for _, p := range places {
		lat, latErr := strconv.ParseFloat(p.Lat, 64)
		lon, lonErr := strconv.ParseFloat(p.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		results = append(results, search.Result{
			Name:       p.DisplayLabel(),
			Coordinate: geo.NewCoordinate(lat, lon),
		})
	}
	return results, nil
}

func (c *NominatimClient) get(ctx context.Context, path string, params func(url.Values)) ([]byte, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("format", "jsonv2")
	params(q)
	u.RawQuery = q.Encode()

	return c.client.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		// Nominatim's usage policy requires an identifying agent.
		req.Header.Set("User-Agent", userAgent)
		return req, nil
	})
}
