// Package querycache caches user listings per parameter tuple and
// coordinates optimistic status mutations against them.
//
// Each key moves Absent -> Loading -> Fresh -> Stale -> Loading -> Fresh.
// A mutation patches cached entries in place (Fresh, optimistic), rolls
// them back on failure and always leaves every entry Stale once settled so
// the next read goes back to the source.
package querycache

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/EO-DataHub/eodhp-user-admin/models"
)

// Fetcher is the remote access layer the cache reads and writes through.
type Fetcher interface {
	FetchList(ctx context.Context, params models.ListParams) (models.ListResult, error)
	UpdateStatus(ctx context.Context, userID string, status models.Status) (models.UpdateStatusResult, error)
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.log = logger }
}

// WithRefetchOnInvalidate controls whether invalidation immediately
// refetches the most recently read key in the background. Enabled by
// default.
func WithRefetchOnInvalidate(enabled bool) Option {
	return func(c *Cache) { c.refetchActive = enabled }
}

type entry struct {
	params     models.ListParams
	result     models.ListResult
	hasData    bool
	state      State
	optimistic bool
	err        error

	// gen is bumped for every fetch issued and every cancellation; a
	// response is only stored if its generation is still current.
	gen    uint64
	flight *flight
}

type flight struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	result models.ListResult
	err    error
}

func (f *flight) finish(result models.ListResult, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Cache holds the most recent listing for every parameter tuple. All
// reads and writes of cached listings go through its methods.
type Cache struct {
	fetcher Fetcher
	log     zerolog.Logger

	refetchActive bool

	mu          sync.Mutex
	entries     map[string]*entry
	active      string
	placeholder *models.ListResult

	// mutateMu serializes mutations so a rollback never reverts the
	// optimistic patch of another mutation.
	mutateMu sync.Mutex

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// New creates an empty cache backed by fetcher.
func New(fetcher Fetcher, opts ...Option) *Cache {
	ctx, stop := context.WithCancel(context.Background())
	c := &Cache{
		fetcher:       fetcher,
		log:           log.With().Str("component", "querycache").Logger(),
		refetchActive: true,
		entries:       make(map[string]*entry),
		ctx:           ctx,
		stop:          stop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close cancels in-flight fetches and waits for background work to stop.
func (c *Cache) Close() {
	c.stop()
	c.wg.Wait()
}

// GetOrFetch returns the cached listing for params when it is fresh and
// otherwise loads it, blocking until the load settles or ctx is done.
// Concurrent callers for the same key share one request.
func (c *Cache) GetOrFetch(ctx context.Context, params models.ListParams) (models.ListResult, error) {
	if err := params.Validate(); err != nil {
		return models.ListResult{}, err
	}

	key := params.Key()
	hit := true
	for {
		c.mu.Lock()
		e := c.entryLocked(params)
		c.active = key
		if e.state == StateFresh {
			result := e.result.Clone()
			c.mu.Unlock()
			if hit {
				lookupsTotal.WithLabelValues("hit").Inc()
			}
			return result, nil
		}
		f := e.flight
		if f == nil {
			f = c.startFetchLocked(e)
		}
		c.mu.Unlock()

		if hit {
			lookupsTotal.WithLabelValues("miss").Inc()
			hit = false
		}

		select {
		case <-ctx.Done():
			return models.ListResult{}, ctx.Err()
		case <-f.done:
		}

		switch {
		case f.err == errSuperseded:
			continue
		case f.err != nil:
			return models.ListResult{}, &ListFetchError{Params: params, Err: f.err}
		}
		return f.result.Clone(), nil
	}
}

// Refetch forces a new load of params, superseding any in-flight load.
func (c *Cache) Refetch(ctx context.Context, params models.ListParams) (models.ListResult, error) {
	if err := params.Validate(); err != nil {
		return models.ListResult{}, err
	}

	c.mu.Lock()
	e := c.entryLocked(params)
	c.cancelFlightLocked(e)
	if e.hasData {
		e.state = StateStale
	}
	c.mu.Unlock()

	return c.GetOrFetch(ctx, params)
}

// Read returns what is currently displayable for params without fetching.
// When the key has no data yet the last successful listing of any key is
// returned as a placeholder.
func (c *Cache) Read(params models.ListParams) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[params.Key()]
	if ok && e.hasData {
		return View{
			Result:     e.result.Clone(),
			State:      e.state,
			HasData:    true,
			Optimistic: e.optimistic,
			Err:        e.err,
		}
	}

	v := View{State: StateAbsent}
	if ok {
		v.State = e.state
		v.Err = e.err
	}
	if c.placeholder != nil {
		v.Result = c.placeholder.Clone()
		v.HasData = true
		v.Placeholder = true
	}
	return v
}

// Invalidate marks every cached listing stale and cancels in-flight loads.
// The most recently read key is refetched in the background when enabled.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

// Keys returns the cached keys. Intended for diagnostics.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache) entryLocked(params models.ListParams) *entry {
	key := params.Key()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{params: params, state: StateAbsent}
		c.entries[key] = e
	}
	return e
}

func (c *Cache) startFetchLocked(e *entry) *flight {
	e.gen++
	ctx, cancel := context.WithCancel(c.ctx)
	f := &flight{gen: e.gen, cancel: cancel, done: make(chan struct{})}
	e.flight = f
	e.state = StateLoading

	c.wg.Add(1)
	go c.runFetch(ctx, e, f)
	return f
}

func (c *Cache) runFetch(ctx context.Context, e *entry, f *flight) {
	defer c.wg.Done()
	defer f.cancel()

	result, err := c.fetcher.FetchList(ctx, e.params)

	c.mu.Lock()
	defer c.mu.Unlock()

	if f.gen != e.gen {
		fetchesDiscardedTotal.Inc()
		c.log.Debug().Str("key", e.params.Key()).Uint64("generation", f.gen).Msg("discarding superseded fetch")
		f.finish(models.ListResult{}, errSuperseded)
		return
	}
	e.flight = nil

	if err != nil {
		e.err = err
		if e.hasData {
			e.state = StateStale
		} else {
			e.state = StateAbsent
		}
		c.log.Error().Err(err).Str("key", e.params.Key()).Msg("failed to load users")
		f.finish(models.ListResult{}, err)
		return
	}

	e.result = result.Clone()
	e.hasData = true
	e.state = StateFresh
	e.optimistic = false
	e.err = nil
	placeholder := result.Clone()
	c.placeholder = &placeholder
	f.finish(result, nil)
}

// cancelFlightLocked abandons the in-flight load of e, if any. Waiters are
// released with errSuperseded and retry against the entry's new state.
func (c *Cache) cancelFlightLocked(e *entry) {
	if e.flight == nil {
		return
	}
	e.gen++
	f := e.flight
	e.flight = nil
	f.cancel()
	f.finish(models.ListResult{}, errSuperseded)

	if e.hasData {
		e.state = StateStale
	} else {
		e.state = StateAbsent
	}
}

func (c *Cache) invalidateLocked() {
	for _, e := range c.entries {
		c.cancelFlightLocked(e)
		e.optimistic = false
		if e.hasData {
			e.state = StateStale
		}
	}

	if !c.refetchActive || c.ctx.Err() != nil {
		return
	}
	if e, ok := c.entries[c.active]; ok {
		c.startFetchLocked(e)
	}
}
