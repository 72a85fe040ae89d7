// Package favorites holds bookmarked places.
package favorites

import (
	"errors"
	"time"

	"github.com/i474232898/city-weather/internal/weather"
)

var (
	// ErrNotFound is returned when removing a name that is not bookmarked.
	ErrNotFound = errors.New("favorite not found")

	// ErrAlreadyExists is returned when adding a name that is already bookmarked.
	ErrAlreadyExists = errors.New("favorite already exists")

	// ErrLimitReached is returned when the store is full.
	ErrLimitReached = errors.New("favorites limit reached")
)

// FavoriteLocation is a bookmarked place. Name is the natural key and is
// compared case-insensitively.
type FavoriteLocation struct {
	Name        string              `json:"name" validate:"required,max=200"`
	Coordinates weather.Coordinates `json:"coordinates"`
	AddedAt     time.Time           `json:"addedAt"`
}

// Store is the narrow contract the rest of the application uses.
type Store interface {
	Add(name string, coords weather.Coordinates) (FavoriteLocation, error)
	Remove(name string) error
	// List returns favorites newest first.
	List() []FavoriteLocation
	Contains(name string) bool
}
