package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/i474232898/city-weather/internal/weather"
)

const directPath = "/geo/1.0/direct"

// OpenWeatherGeocoder uses the OpenWeatherMap direct geocoding endpoint.
type OpenWeatherGeocoder struct {
	apiKey    string
	baseURL   string
	limit     int
	transport *weather.Transport
}

// NewOpenWeatherGeocoder builds a geocoder sharing the weather API key and
// base URL. Geocoding is never retried.
func NewOpenWeatherGeocoder(client *http.Client, apiKey, baseURL string) *OpenWeatherGeocoder {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = weather.DefaultBaseURL
	}
	backoff := weather.DefaultBackoff()
	backoff.MaxRetries = 0
	return &OpenWeatherGeocoder{
		apiKey:    apiKey,
		baseURL:   base,
		limit:     5,
		transport: weather.NewTransport("openweather-geocoding", client, backoff),
	}
}

type directMatch struct {
	Name    string   `json:"name"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// Geocode implements Geocoder.
func (g *OpenWeatherGeocoder) Geocode(ctx context.Context, text string) ([]Match, error) {
	const op = "geocode"

	if g.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("q", text)
	values.Set("limit", strconv.Itoa(g.limit))
	values.Set("appid", g.apiKey)

	body, err := g.transport.Get(ctx, op, g.baseURL+directPath+"?"+values.Encode())
	if err != nil {
		return nil, err
	}

	var raw []directMatch
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &weather.UpstreamError{
			Op:    op,
			Cause: &weather.DecodeError{Op: op, Details: "malformed geocoding payload", Cause: err},
		}
	}

	matches := make([]Match, 0, len(raw))
	for _, m := range raw {
		if m.Lat == nil || m.Lon == nil {
			continue
		}
		matches = append(matches, Match{
			Name:        m.Name,
			Country:     m.Country,
			Coordinates: weather.Coordinates{Latitude: *m.Lat, Longitude: *m.Lon},
		})
	}
	return matches, nil
}
