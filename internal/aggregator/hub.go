package aggregator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/city-weather/internal/common"
	"github.com/i474232898/city-weather/internal/geo"
	"github.com/i474232898/city-weather/internal/weather"
)

// DefaultMaxCities bounds how many per-city aggregators a Hub retains.
const DefaultMaxCities = 256

// slot is one city's aggregator plus the bookkeeping used for eviction.
type slot struct {
	agg      *Aggregator
	busy     int
	lastUsed time.Time
}

// Hub keeps one Aggregator per place so that lookups for different cities
// never supersede each other. It also owns a "current" aggregator that
// tracks whichever place the user is looking at.
//
// Retention is bounded: a city whose resolution left nothing cached is
// dropped once idle, and when maxCities is reached the least recently used
// idle city is evicted.
type Hub struct {
	resolver  GeoResolver
	client    WeatherClient
	opts      []Option
	maxCities int
	now       func() time.Time

	mu      sync.Mutex
	byKey   map[string]*slot
	current *Aggregator
	closed  bool
}

// NewHub builds a Hub whose aggregators share resolver, client and opts. If
// maxCities is <= 0, DefaultMaxCities is used.
func NewHub(resolver GeoResolver, client WeatherClient, maxCities int, opts ...Option) *Hub {
	if maxCities <= 0 {
		maxCities = DefaultMaxCities
	}
	return &Hub{
		resolver:  resolver,
		client:    client,
		opts:      opts,
		maxCities: maxCities,
		now:       time.Now,
		byKey:     make(map[string]*slot),
		current:   New(resolver, client, opts...),
	}
}

// For returns the aggregator for city, creating it on first use.
func (h *Hub) For(city string) (*Aggregator, error) {
	_, s, err := h.acquire(city, false)
	if err != nil {
		return nil, err
	}
	return s.agg, nil
}

// Lookup returns the aggregator for city without creating one.
func (h *Hub) Lookup(city string) (*Aggregator, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.byKey[common.NormalizeKey(city)]
	if !ok {
		return nil, false
	}
	return s.agg, true
}

// Len reports how many cities the Hub currently retains.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byKey)
}

// Resolve resolves city in its own slot and returns the resulting snapshot
// and the status of this call.
func (h *Hub) Resolve(ctx context.Context, city string) (weather.Snapshot, Status, error) {
	key, s, err := h.acquire(city, true)
	if err != nil {
		return weather.Snapshot{}, Status{Phase: PhaseFailed}.withErr(err), err
	}
	defer h.release(key, s)

	return s.agg.ResolveWithStatus(ctx, city)
}

func (h *Hub) acquire(city string, hold bool) (string, *slot, error) {
	if _, err := geo.NormalizeQuery(city); err != nil {
		return "", nil, err
	}
	// The key is stored in the map and must not alias caller memory.
	key := strings.Clone(common.NormalizeKey(city))

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", nil, weather.ErrCancelled
	}

	var evicted *Aggregator
	s, ok := h.byKey[key]
	if !ok {
		if len(h.byKey) >= h.maxCities {
			evicted = h.evictLocked()
		}
		s = &slot{agg: New(h.resolver, h.client, h.opts...)}
		h.byKey[key] = s
	}
	if hold {
		s.busy++
	}
	s.lastUsed = h.now()
	h.mu.Unlock()

	if evicted != nil {
		evicted.Close()
	}
	return key, s, nil
}

// release drops a city that has nothing cached once no call holds it.
func (h *Hub) release(key string, s *slot) {
	h.mu.Lock()
	s.busy--
	s.lastUsed = h.now()
	drop := s.busy == 0 && h.byKey[key] == s && s.agg.Snapshot().Empty()
	if drop {
		delete(h.byKey, key)
	}
	h.mu.Unlock()

	if drop {
		s.agg.Close()
	}
}

// evictLocked removes the least recently used idle city. It returns nil when
// every city has a call in flight.
func (h *Hub) evictLocked() *Aggregator {
	var (
		oldestKey string
		oldest    *slot
	)
	for k, s := range h.byKey {
		if s.busy > 0 {
			continue
		}
		if oldest == nil || s.lastUsed.Before(oldest.lastUsed) {
			oldestKey, oldest = k, s
		}
	}
	if oldest == nil {
		return nil
	}
	delete(h.byKey, oldestKey)
	return oldest.agg
}

// Current returns the aggregator for the place currently in view.
func (h *Hub) Current() *Aggregator {
	return h.current
}

// Close closes every aggregator.
func (h *Hub) Close() {
	h.mu.Lock()
	aggs := make([]*Aggregator, 0, len(h.byKey)+1)
	for _, s := range h.byKey {
		aggs = append(aggs, s.agg)
	}
	aggs = append(aggs, h.current)
	h.closed = true
	h.mu.Unlock()

	for _, a := range aggs {
		a.Close()
	}
}
