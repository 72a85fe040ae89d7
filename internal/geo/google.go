package geo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kelvins/geocoder"
	"golang.org/x/sync/semaphore"

	"github.com/i474232898/city-weather/internal/weather"
)

const (
	// The library's HTTP client has no timeout, so a hung lookup can only be
	// abandoned. maxPendingLookups bounds how many may pile up.
	maxPendingLookups = 8

	// kelvins/geocoder reports ZERO_RESULTS with this message.
	noResultsMessage = "no results found."
)

var errTooManyLookups = errors.New("too many pending google geocoding lookups")

// kelvins/geocoder keeps its key in a package variable, so one key serves
// the whole process.
var googleKeyOnce sync.Once

// GoogleGeocoder uses the Google Geocoding API through kelvins/geocoder.
// The library returns a single location per lookup.
type GoogleGeocoder struct {
	timeout time.Duration
	pending *semaphore.Weighted
	lookup  func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder builds a GoogleGeocoder authenticated with apiKey. Each
// lookup is bounded by timeout unless the caller's context ends sooner.
func NewGoogleGeocoder(apiKey string, timeout time.Duration) *GoogleGeocoder {
	googleKeyOnce.Do(func() { geocoder.ApiKey = apiKey })
	if timeout <= 0 {
		timeout = weather.DefaultTimeout
	}
	return &GoogleGeocoder{
		timeout: timeout,
		pending: semaphore.NewWeighted(maxPendingLookups),
		lookup:  geocoder.Geocoding,
	}
}

// Geocode implements Geocoder. The blocking library call is abandoned, not
// interrupted, when the context or timeout ends first.
func (g *GoogleGeocoder) Geocode(ctx context.Context, text string) ([]Match, error) {
	if !g.pending.TryAcquire(1) {
		return nil, &weather.UpstreamError{Op: "geocode", Cause: errTooManyLookups}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	lookup := g.lookup

	go func() {
		defer g.pending.Release(1)
		loc, err := lookup(geocoder.Address{City: text})
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &weather.UpstreamError{Op: "geocode", Cause: ctx.Err()}
	case r := <-done:
		if r.err != nil {
			if isZeroResults(r.err) {
				return nil, nil
			}
			return nil, &weather.UpstreamError{Op: "geocode", Cause: r.err}
		}
		return []Match{{
			Name:        text,
			Coordinates: weather.Coordinates{Latitude: r.loc.Latitude, Longitude: r.loc.Longitude},
		}}, nil
	}
}

func isZeroResults(err error) bool {
	return strings.EqualFold(strings.TrimSpace(err.Error()), noResultsMessage)
}
