package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/city-weather/internal/weather"
)

type stubGeocoder struct {
	matches []Match
	err     error
	calls   int
	lastQ   string
}

func (s *stubGeocoder) Geocode(_ context.Context, text string) ([]Match, error) {
	s.calls++
	s.lastQ = text
	return s.matches, s.err
}

func TestResolve_FirstMatch(t *testing.T) {
	g := &stubGeocoder{matches: []Match{
		{Name: "Colombo", Coordinates: weather.Coordinates{Latitude: 6.9271, Longitude: 79.8612}},
		{Name: "Colombo, BR", Coordinates: weather.Coordinates{Latitude: -25.29, Longitude: -49.22}},
	}}
	r := NewResolver(g, nil)

	coords, err := r.Resolve(context.Background(), "  Colombo  ")
	require.NoError(t, err)
	require.Equal(t, 6.9271, coords.Latitude)
	require.Equal(t, "Colombo", g.lastQ)
}

func TestResolve_BlankQuery(t *testing.T) {
	g := &stubGeocoder{}
	r := NewResolver(g, nil)

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := r.Resolve(context.Background(), q)
		require.ErrorIs(t, err, weather.ErrInvalidQuery)
	}
	require.Zero(t, g.calls)
}

func TestResolve_NotFound(t *testing.T) {
	r := NewResolver(&stubGeocoder{}, nil)

	_, err := r.Resolve(context.Background(), "Atlantis")
	require.ErrorIs(t, err, weather.ErrNotFound)

	var ue *weather.UpstreamError
	require.False(t, errors.As(err, &ue))
}

func TestResolve_UpstreamFailure(t *testing.T) {
	r := NewResolver(&stubGeocoder{err: errors.New("connection reset")}, nil)

	_, err := r.Resolve(context.Background(), "Paris")

	var ue *weather.UpstreamError
	require.ErrorAs(t, err, &ue)
	require.False(t, errors.Is(err, weather.ErrNotFound))
}

func TestResolve_InvalidCoordinates(t *testing.T) {
	r := NewResolver(&stubGeocoder{matches: []Match{{Coordinates: weather.Coordinates{Latitude: 123}}}}, nil)

	_, err := r.Resolve(context.Background(), "Nowhere")
	var ue *weather.UpstreamError
	require.ErrorAs(t, err, &ue)
}

func TestOpenWeatherGeocoder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, directPath, r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("appid"))
		switch r.URL.Query().Get("q") {
		case "Tokyo":
			_, _ = w.Write([]byte(`[{"name":"Tokyo","country":"JP","lat":35.6828,"lon":139.759}]`))
		case "Atlantis":
			_, _ = w.Write([]byte(`[]`))
		case "Broken":
			_, _ = w.Write([]byte(`{"oops":`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	g := NewOpenWeatherGeocoder(server.Client(), "k", server.URL)
	r := NewResolver(g, nil)

	coords, err := r.Resolve(context.Background(), "Tokyo")
	require.NoError(t, err)
	require.InDelta(t, 35.6828, coords.Latitude, 1e-9)

	_, err = r.Resolve(context.Background(), "Atlantis")
	require.ErrorIs(t, err, weather.ErrNotFound)

	_, err = r.Resolve(context.Background(), "Broken")
	var ue *weather.UpstreamError
	require.ErrorAs(t, err, &ue)

	_, err = r.Resolve(context.Background(), "Boom")
	require.ErrorAs(t, err, &ue)
	require.Equal(t, http.StatusInternalServerError, ue.StatusCode)
}

func TestGoogleGeocoder(t *testing.T) {
	g := NewGoogleGeocoder("g-key", time.Second)

	g.lookup = func(addr geocoder.Address) (geocoder.Location, error) {
		assert.Equal(t, "Colombo", addr.City)
		assert.Equal(t, "g-key", geocoder.ApiKey)
		return geocoder.Location{Latitude: 6.9271, Longitude: 79.8612}, nil
	}
	matches, err := g.Geocode(context.Background(), "Colombo")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, 79.8612, matches[0].Coordinates.Longitude)

	g.lookup = func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, errors.New("No results found.")
	}
	matches, err = g.Geocode(context.Background(), "Atlantis")
	require.NoError(t, err)
	require.Empty(t, matches)

	for _, msg := range []string{"REQUEST_DENIED", "The provided API key not found."} {
		g.lookup = func(geocoder.Address) (geocoder.Location, error) {
			return geocoder.Location{}, errors.New(msg)
		}
		_, err = g.Geocode(context.Background(), "Paris")
		var ue *weather.UpstreamError
		require.ErrorAs(t, err, &ue, msg)
	}
}

func TestGoogleGeocoder_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	g := NewGoogleGeocoder("g-key", time.Second)
	g.lookup = func(geocoder.Address) (geocoder.Location, error) {
		<-release
		return geocoder.Location{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Geocode(ctx, "Slowtown")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// blockingLookup hangs on "Slowtown" until release is closed.
func blockingLookup(release <-chan struct{}) func(geocoder.Address) (geocoder.Location, error) {
	return func(addr geocoder.Address) (geocoder.Location, error) {
		if addr.City == "Slowtown" {
			<-release
		}
		return geocoder.Location{Latitude: 6.9271, Longitude: 79.8612}, nil
	}
}

func TestGoogleGeocoder_TimesOutHungLookup(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	g := NewGoogleGeocoder("g-key", 20*time.Millisecond)
	g.lookup = blockingLookup(release)

	_, err := g.Geocode(context.Background(), "Slowtown")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// A hung lookup does not hold up the next one.
	matches, err := g.Geocode(context.Background(), "Colombo")
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestGoogleGeocoder_BoundsPendingLookups(t *testing.T) {
	release := make(chan struct{})

	g := NewGoogleGeocoder("g-key", 5*time.Millisecond)
	g.lookup = blockingLookup(release)

	for i := 0; i < maxPendingLookups; i++ {
		_, err := g.Geocode(context.Background(), "Slowtown")
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	_, err := g.Geocode(context.Background(), "Colombo")
	require.ErrorIs(t, err, errTooManyLookups)

	close(release)
	require.Eventually(t, func() bool {
		_, err := g.Geocode(context.Background(), "Colombo")
		return err == nil
	}, time.Second, 10*time.Millisecond)
}
