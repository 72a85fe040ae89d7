package favorites

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/city-weather/internal/common"
	"github.com/i474232898/city-weather/internal/weather"
)

var validate = validator.New()

// MemoryStore is a concurrency-safe in-memory Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: normalized name
	data map[string]FavoriteLocation

	maxEntries int // 0 = unlimited
	now        func() time.Time
}

// NewMemoryStore creates a MemoryStore. If maxEntries is <= 0, it is
// treated as unlimited.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]FavoriteLocation),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Add bookmarks name at coords.
func (s *MemoryStore) Add(name string, coords weather.Coordinates) (FavoriteLocation, error) {
	fav := FavoriteLocation{
		Name:        strings.Clone(strings.TrimSpace(name)),
		Coordinates: coords,
	}
	if err := validate.Struct(fav); err != nil {
		return FavoriteLocation{}, fmt.Errorf("invalid favorite: %w", err)
	}
	key := common.NormalizeKey(fav.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; ok {
		return FavoriteLocation{}, fmt.Errorf("%q: %w", fav.Name, ErrAlreadyExists)
	}
	if s.maxEntries > 0 && len(s.data) >= s.maxEntries {
		return FavoriteLocation{}, ErrLimitReached
	}

	fav.AddedAt = s.now().UTC()
	s.data[key] = fav
	return fav, nil
}

// Remove deletes the favorite called name.
func (s *MemoryStore) Remove(name string) error {
	key := common.NormalizeKey(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return fmt.Errorf("%q: %w", strings.TrimSpace(name), ErrNotFound)
	}
	delete(s.data, key)
	return nil
}

// List returns all favorites, most recently added first.
func (s *MemoryStore) List() []FavoriteLocation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]FavoriteLocation, 0, len(s.data))
	for _, fav := range s.data {
		result = append(result, fav)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AddedAt.Equal(result[j].AddedAt) {
			return result[i].Name < result[j].Name
		}
		return result[i].AddedAt.After(result[j].AddedAt)
	})
	return result
}

// Contains reports whether name is bookmarked.
func (s *MemoryStore) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[common.NormalizeKey(name)]
	return ok
}
