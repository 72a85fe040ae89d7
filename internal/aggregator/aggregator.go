// Package aggregator orchestrates geocoding and the two weather fetches into
// a single snapshot per place, with supersede-and-discard semantics for
// overlapping calls.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/city-weather/internal/geo"
	"github.com/i474232898/city-weather/internal/weather"
)

// GeoResolver resolves a place name to coordinates.
type GeoResolver interface {
	Resolve(ctx context.Context, query string) (weather.Coordinates, error)
}

// WeatherClient performs the summary and detail fetches.
type WeatherClient interface {
	FetchSummary(ctx context.Context, cityName string) (weather.Summary, error)
	FetchDetail(ctx context.Context, coords weather.Coordinates) (weather.Detail, error)
}

const subscriberBuffer = 8

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithSequential fetches the summary, then the detail, instead of both at once.
func WithSequential() Option {
	return func(a *Aggregator) { a.sequential = true }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// Aggregator owns one snapshot slot. Only the most recent Resolve call may
// write to it; calls it supersedes are cancelled and their results dropped.
type Aggregator struct {
	resolver   GeoResolver
	client     WeatherClient
	logger     *slog.Logger
	sequential bool
	now        func() time.Time

	generation *atomic.Uint64

	mu       sync.Mutex
	snapshot weather.Snapshot
	status   Status
	cancel   context.CancelFunc
	closed   bool
	subs     map[int]chan Status
	nextSub  int
}

// New builds an idle Aggregator.
func New(resolver GeoResolver, client WeatherClient, opts ...Option) *Aggregator {
	a := &Aggregator{
		resolver:   resolver,
		client:     client,
		logger:     slog.Default(),
		now:        time.Now,
		generation: atomic.NewUint64(0),
		subs:       make(map[int]chan Status),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.status = Status{Phase: PhaseIdle, UpdatedAt: a.now().UTC()}
	return a
}

// Snapshot returns the current snapshot.
func (a *Aggregator) Snapshot() weather.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// Status returns the latest published status.
func (a *Aggregator) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Subscribe returns a channel of status updates, starting with the current
// one. A slow reader only loses intermediate updates; the latest is always
// delivered. The channel is closed by the returned func or by Close.
func (a *Aggregator) Subscribe() (<-chan Status, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan Status, subscriberBuffer)
	if a.closed {
		ch <- a.status
		close(ch)
		return ch, func() {}
	}

	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	ch <- a.status

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if c, ok := a.subs[id]; ok {
				delete(a.subs, id)
				close(c)
			}
		})
	}
}

// Close cancels any in-flight call and ends all subscriptions. Later calls
// to Resolve fail with weather.ErrCancelled.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true

	gen := a.generation.Inc()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.publishLocked(Status{Phase: PhaseCancelled, Generation: gen, UpdatedAt: a.now().UTC()}.withErr(weather.ErrCancelled))

	for id, ch := range a.subs {
		delete(a.subs, id)
		close(ch)
	}
}

// Resolve geocodes query, fetches summary and detail, and merges them into
// the snapshot slot.
//
// The returned error is nil on full success, a *weather.PartialFailure when
// only one half was fetched (the snapshot is still usable), and otherwise
// the failure cause with the previous snapshot left untouched. A call that
// is superseded by a newer one, or interrupted by Close or ctx, returns
// weather.ErrCancelled and never writes.
func (a *Aggregator) Resolve(ctx context.Context, query string) (weather.Snapshot, error) {
	snap, _, err := a.ResolveWithStatus(ctx, query)
	return snap, err
}

// ResolveWithStatus is Resolve that also returns the terminal status of
// this call. Status() may already describe a newer call by the time the
// caller reads it.
func (a *Aggregator) ResolveWithStatus(ctx context.Context, query string) (weather.Snapshot, Status, error) {
	gen, callCtx, err := a.begin(ctx)
	if err != nil {
		return a.Snapshot(), Status{Phase: PhaseCancelled, UpdatedAt: a.now().UTC()}.withErr(err), err
	}
	defer a.finish(gen)

	base := Status{Generation: gen, RequestID: uuid.NewString()}
	logger := a.logger.With("request_id", base.RequestID, "generation", gen)

	q, err := geo.NormalizeQuery(query)
	if err != nil {
		return a.fail(callCtx, logger, base, err)
	}
	// q may alias caller-owned memory and outlives this call.
	base.Query = strings.Clone(q)
	logger = logger.With("query", base.Query)

	a.transition(base, PhaseResolving)
	coords, err := a.resolver.Resolve(callCtx, base.Query)
	if err != nil {
		if a.superseded(gen) || interrupted(callCtx) {
			return a.cancelled(logger, base)
		}
		return a.fail(callCtx, logger, base, err)
	}

	summary, sumErr, detail, detErr := a.fetch(callCtx, base, base.Query, coords)

	return a.commit(callCtx, logger, base, summary, sumErr, detail, detErr)
}

func (a *Aggregator) begin(ctx context.Context) (uint64, context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, nil, weather.ErrCancelled
	}
	if a.cancel != nil {
		a.cancel()
	}
	gen := a.generation.Inc()
	callCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	return gen, callCtx, nil
}

func (a *Aggregator) finish(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation.Load() == gen && a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *Aggregator) superseded(gen uint64) bool {
	return a.generation.Load() != gen
}

// interrupted reports an explicit cancellation. A passed deadline is a
// regular upstream failure.
func interrupted(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func (a *Aggregator) fetch(ctx context.Context, base Status, q string, coords weather.Coordinates) (
	summary weather.Summary, sumErr error, detail weather.Detail, detErr error,
) {
	if a.sequential {
		a.transition(base, PhaseFetchingSummary)
		summary, sumErr = a.client.FetchSummary(ctx, q)
		a.transition(base, PhaseFetchingDetail)
		detail, detErr = a.client.FetchDetail(ctx, coords)
		return summary, sumErr, detail, detErr
	}

	// Both halves are independent; neither failure cancels the other.
	a.transition(base, PhaseFetchingSummary)
	a.transition(base, PhaseFetchingDetail)

	var g errgroup.Group
	g.Go(func() error {
		summary, sumErr = a.client.FetchSummary(ctx, q)
		return nil
	})
	g.Go(func() error {
		detail, detErr = a.client.FetchDetail(ctx, coords)
		return nil
	})
	_ = g.Wait()
	return summary, sumErr, detail, detErr
}

func (a *Aggregator) commit(
	ctx context.Context,
	logger *slog.Logger,
	base Status,
	summary weather.Summary, sumErr error,
	detail weather.Detail, detErr error,
) (weather.Snapshot, Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.generation.Load() != base.Generation || interrupted(ctx) {
		st := a.stamp(base, PhaseCancelled).withErr(weather.ErrCancelled)
		if a.generation.Load() == base.Generation {
			a.publishLocked(st)
		}
		logger.DebugContext(ctx, "discarding superseded resolution")
		return a.snapshot, st, weather.ErrCancelled
	}

	prev := a.snapshot
	next := weather.Snapshot{
		Query:      base.Query,
		Summary:    prev.Summary,
		Detail:     prev.Detail,
		ResolvedAt: a.now().UTC(),
	}

	switch {
	case sumErr == nil && detErr == nil:
		next.Summary = &summary
		next.Detail = &detail
		a.snapshot = next
		st := a.stamp(base, PhaseComplete)
		a.publishLocked(st)
		logger.InfoContext(ctx, "weather resolved", "city", summary.CityName)
		return next, st, nil

	case sumErr == nil:
		next.Summary = &summary
		next.Stale = weather.PartDetail
		a.snapshot = next
		pf := &weather.PartialFailure{Which: weather.PartDetail, Reason: detErr}
		st := a.stamp(base, PhasePartialFailure).withErr(pf)
		st.Failed = weather.PartDetail
		a.publishLocked(st)
		logger.WarnContext(ctx, "detail fetch failed; keeping previous detail", "error", detErr)
		return next, st, pf

	case detErr == nil:
		next.Detail = &detail
		next.Stale = weather.PartSummary
		a.snapshot = next
		pf := &weather.PartialFailure{Which: weather.PartSummary, Reason: sumErr}
		st := a.stamp(base, PhasePartialFailure).withErr(pf)
		st.Failed = weather.PartSummary
		a.publishLocked(st)
		logger.WarnContext(ctx, "summary fetch failed; keeping previous summary", "error", sumErr)
		return next, st, pf

	default:
		err := errors.Join(sumErr, detErr)
		st := a.stamp(base, PhaseFailed).withErr(err)
		a.publishLocked(st)
		logger.ErrorContext(ctx, "weather fetch failed; keeping last good snapshot", "error", err)
		return prev, st, err
	}
}

func (a *Aggregator) fail(ctx context.Context, logger *slog.Logger, base Status, err error) (weather.Snapshot, Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.generation.Load() != base.Generation {
		return a.snapshot, a.stamp(base, PhaseCancelled).withErr(weather.ErrCancelled), weather.ErrCancelled
	}
	st := a.stamp(base, PhaseFailed).withErr(err)
	a.publishLocked(st)
	logger.ErrorContext(ctx, "weather resolution failed", "error", err)
	return a.snapshot, st, err
}

func (a *Aggregator) cancelled(logger *slog.Logger, base Status) (weather.Snapshot, Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.stamp(base, PhaseCancelled).withErr(weather.ErrCancelled)
	if a.generation.Load() == base.Generation {
		a.publishLocked(st)
	}
	logger.Debug("resolution cancelled")
	return a.snapshot, st, weather.ErrCancelled
}

func (a *Aggregator) transition(base Status, phase Phase) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation.Load() != base.Generation {
		return
	}
	a.publishLocked(a.stamp(base, phase))
	a.logger.Debug("aggregator transition", "phase", phase, "generation", base.Generation)
}

func (a *Aggregator) stamp(base Status, phase Phase) Status {
	base.Phase = phase
	base.UpdatedAt = a.now().UTC()
	return base
}

// publishLocked must be called with a.mu held.
func (a *Aggregator) publishLocked(st Status) {
	a.status = st
	for _, ch := range a.subs {
		select {
		case ch <- st:
		default:
			// Full: drop the oldest queued update so the newest always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}
