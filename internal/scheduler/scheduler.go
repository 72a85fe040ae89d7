package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/city-weather/internal/aggregator"
	"github.com/i474232898/city-weather/internal/favorites"
	"github.com/i474232898/city-weather/internal/weather"
)

const (
	defaultInterval = 15 * time.Minute
	perCityTimeout  = 30 * time.Second
)

// Refresher resolves weather for a city.
type Refresher interface {
	Resolve(ctx context.Context, city string) (weather.Snapshot, aggregator.Status, error)
}

// Lister lists the cities to refresh.
type Lister interface {
	List() []favorites.FavoriteLocation
}

// Scheduler periodically refreshes weather for every favorite city.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	favorites Lister
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(favs Lister, refresher Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		favorites: favs,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes every favorite concurrently and returns how many
// resolutions produced usable data (complete or partial).
func (s *Scheduler) RunOnce(ctx context.Context) int {
	favs := s.favorites.List()
	if len(favs) == 0 {
		s.logger.DebugContext(ctx, "scheduler: no favorites to refresh")
		return 0
	}
	s.logger.InfoContext(ctx, "scheduler: refreshing favorites", "count", len(favs))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, fav := range favs {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			cityCtx, cancel := context.WithTimeout(ctx, perCityTimeout)
			defer cancel()

			_, st, err := s.refresher.Resolve(cityCtx, name)
			if err != nil && !weather.IsPartial(err) {
				s.logger.WarnContext(ctx, "scheduler: refresh failed", "city", name, "phase", st.Phase, "error", err)
				return
			}
			mu.Lock()
			ok++
			mu.Unlock()
		}(fav.Name)
	}
	wg.Wait()

	s.logger.InfoContext(ctx, "scheduler: refresh complete", "succeeded", ok, "total", len(favs))
	return ok
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
