package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/city-weather/internal/weather"
)

func TestHub_SeparateSlotsPerCity(t *testing.T) {
	hub := NewHub(newResolver(), okClient(), 0)
	defer hub.Close()

	var wg sync.WaitGroup
	for _, city := range []string{"Paris", "Tokyo", "Colombo"} {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()
			_, _, err := hub.Resolve(context.Background(), city)
			assert.NoError(t, err)
		}(city)
	}
	wg.Wait()

	for _, city := range []string{"Paris", "Tokyo", "Colombo"} {
		agg, ok := hub.Lookup(city)
		require.True(t, ok)
		require.Equal(t, city, agg.Snapshot().Summary.CityName)
		require.Equal(t, PhaseComplete, agg.Status().Phase)
	}
}

func TestHub_KeyIsCaseAndSpaceInsensitive(t *testing.T) {
	hub := NewHub(newResolver(), okClient(), 0)
	defer hub.Close()

	a, err := hub.For("Tokyo")
	require.NoError(t, err)
	b, err := hub.For("  tokyo ")
	require.NoError(t, err)
	require.Same(t, a, b)

	_, ok := hub.Lookup("Paris")
	require.False(t, ok)
}

func TestHub_BlankCity(t *testing.T) {
	hub := NewHub(newResolver(), okClient(), 0)
	defer hub.Close()

	_, st, err := hub.Resolve(context.Background(), "  ")
	require.ErrorIs(t, err, weather.ErrInvalidQuery)
	require.Equal(t, PhaseFailed, st.Phase)
}

func TestHub_CurrentAndClose(t *testing.T) {
	hub := NewHub(newResolver(), okClient(), 0)

	_, err := hub.Current().Resolve(context.Background(), "Colombo")
	require.NoError(t, err)
	require.Equal(t, "Colombo", hub.Current().Snapshot().Summary.CityName)

	hub.Close()

	_, err = hub.For("Paris")
	require.ErrorIs(t, err, weather.ErrCancelled)
	_, err = hub.Current().Resolve(context.Background(), "Tokyo")
	require.ErrorIs(t, err, weather.ErrCancelled)
}

func TestHub_DropsCityWithNothingCached(t *testing.T) {
	hub := NewHub(newResolver(), okClient(), 0)
	defer hub.Close()

	_, st, err := hub.Resolve(context.Background(), "Atlantis")
	require.ErrorIs(t, err, weather.ErrNotFound)
	require.Equal(t, PhaseFailed, st.Phase)

	_, ok := hub.Lookup("Atlantis")
	require.False(t, ok)
	require.Zero(t, hub.Len())
}

func TestHub_EvictsLeastRecentlyUsedIdleCity(t *testing.T) {
	hub := NewHub(newResolver(), okClient(), 2)
	defer hub.Close()

	var tick int64
	hub.now = func() time.Time {
		tick++
		return time.Unix(tick, 0)
	}

	for _, city := range []string{"Paris", "Tokyo", "Paris"} {
		_, _, err := hub.Resolve(context.Background(), city)
		require.NoError(t, err)
	}
	tokyo, ok := hub.Lookup("Tokyo")
	require.True(t, ok)

	_, _, err := hub.Resolve(context.Background(), "Colombo")
	require.NoError(t, err)

	require.Equal(t, 2, hub.Len())
	_, ok = hub.Lookup("Tokyo")
	require.False(t, ok)
	_, ok = hub.Lookup("Paris")
	require.True(t, ok)
	_, ok = hub.Lookup("Colombo")
	require.True(t, ok)

	_, err = tokyo.Resolve(context.Background(), "Tokyo")
	require.ErrorIs(t, err, weather.ErrCancelled, "evicted aggregators are closed")
}

func TestHub_NeverEvictsBusyCity(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	client := okClient()
	client.summary = func(_ context.Context, name string) (weather.Summary, error) {
		if name == "Paris" {
			once.Do(func() { close(started) })
			<-release
		}
		return summaryFor(name), nil
	}
	hub := NewHub(newResolver(), client, 1)
	defer hub.Close()

	var (
		wg       sync.WaitGroup
		parisErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, parisErr = hub.Resolve(context.Background(), "Paris")
	}()
	<-started

	_, _, err := hub.Resolve(context.Background(), "Tokyo")
	require.NoError(t, err)
	require.Equal(t, 2, hub.Len())

	close(release)
	wg.Wait()
	require.NoError(t, parisErr)

	paris, ok := hub.Lookup("Paris")
	require.True(t, ok)
	require.Equal(t, "Paris", paris.Snapshot().Summary.CityName)
}
