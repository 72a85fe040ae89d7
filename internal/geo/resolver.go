// Package geo turns free-text place names into coordinates.
package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/i474232898/city-weather/internal/weather"
)

// Match is one geocoding candidate.
type Match struct {
	Name        string
	Country     string
	Coordinates weather.Coordinates
}

// Geocoder is the injected geocoding capability. Implementations return an
// empty slice, not an error, when nothing matches.
type Geocoder interface {
	Geocode(ctx context.Context, text string) ([]Match, error)
}

// GeocoderFunc adapts a function to Geocoder.
type GeocoderFunc func(ctx context.Context, text string) ([]Match, error)

func (f GeocoderFunc) Geocode(ctx context.Context, text string) ([]Match, error) {
	return f(ctx, text)
}

// Resolver resolves a place query to coordinates using the first match.
// It never retries.
type Resolver struct {
	geocoder Geocoder
	logger   *slog.Logger
}

// NewResolver builds a Resolver around g.
func NewResolver(g Geocoder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{geocoder: g, logger: logger}
}

// NormalizeQuery trims surrounding whitespace. It returns ErrInvalidQuery
// when nothing is left.
func NormalizeQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", weather.ErrInvalidQuery
	}
	return q, nil
}

// Resolve returns the coordinates of the first match for query.
//
// Failures: weather.ErrInvalidQuery for a blank query, weather.ErrNotFound
// for zero matches, *weather.UpstreamError for anything the geocoder itself
// reports.
func (r *Resolver) Resolve(ctx context.Context, query string) (weather.Coordinates, error) {
	q, err := NormalizeQuery(query)
	if err != nil {
		return weather.Coordinates{}, err
	}

	matches, err := r.geocoder.Geocode(ctx, q)
	if err != nil {
		var ue *weather.UpstreamError
		if errors.As(err, &ue) {
			return weather.Coordinates{}, err
		}
		return weather.Coordinates{}, &weather.UpstreamError{Op: "geocode", Cause: err}
	}
	if len(matches) == 0 {
		r.logger.DebugContext(ctx, "geocoder returned no matches", "query", q)
		return weather.Coordinates{}, fmt.Errorf("geocode %q: %w", q, weather.ErrNotFound)
	}

	first := matches[0].Coordinates
	if !first.Valid() {
		return weather.Coordinates{}, &weather.UpstreamError{
			Op:    "geocode",
			Cause: fmt.Errorf("geocoder returned out-of-range coordinates %v for %q", first, q),
		}
	}
	return first, nil
}
