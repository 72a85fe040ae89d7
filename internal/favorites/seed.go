package favorites

import (
	"context"
	"errors"
	"log/slog"

	"github.com/i474232898/city-weather/internal/weather"
)

// Resolver resolves a place name to coordinates.
type Resolver interface {
	Resolve(ctx context.Context, query string) (weather.Coordinates, error)
}

// Seed geocodes and adds each name that is not already bookmarked. Failures
// are logged and skipped; the number of favorites added is returned.
func Seed(ctx context.Context, store Store, resolver Resolver, names []string, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}

	var added int
	for _, name := range names {
		if store.Contains(name) {
			continue
		}
		coords, err := resolver.Resolve(ctx, name)
		if err != nil {
			logger.WarnContext(ctx, "could not geocode default favorite", "name", name, "error", err)
			continue
		}
		if _, err := store.Add(name, coords); err != nil && !errors.Is(err, ErrAlreadyExists) {
			logger.WarnContext(ctx, "could not add default favorite", "name", name, "error", err)
			continue
		}
		added++
	}
	return added
}
