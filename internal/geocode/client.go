// Package geocode resolves free-form addresses to coordinates through a
// cache-first, rate-limited lookup.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"go.ngs.io/nearest-api/internal/adapter/store"
	"go.ngs.io/nearest-api/internal/domain"
)

// Options configures lookup pacing and persistence.
type Options struct {
	CountryCodes []string
	MinDelay     time.Duration // minimum gap between outbound lookups, retries included
	MaxRetries   int           // retries after the first failed attempt
	ErrorWait    time.Duration // fixed wait before each retry
	FlushEvery   int           // batch: persist the cache every N unique addresses
}

// DefaultOptions returns the pacing used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		CountryCodes: []string{"id"},
		MinDelay:     1200 * time.Millisecond,
		MaxRetries:   6,
		ErrorWait:    5 * time.Second,
		FlushEvery:   10,
	}
}

// Client resolves addresses against a cache, falling back to a Geocoder.
type Client struct {
	geocoder Geocoder
	cache    store.GeocodeCache
	opts     Options
	limiter  *limiter
	logger   log.FieldLogger

	// One-slot semaphore serializing outbound lookups so the minimum delay
	// holds across callers. Waiting for it honors the caller's context.
	sem     chan struct{}
	lookups atomic.Int64
}

// NewClient creates a Client. The cache should already be loaded.
func NewClient(g Geocoder, cache store.GeocodeCache, opts Options, logger log.FieldLogger) *Client {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 10
	}
	return &Client{
		geocoder: g,
		cache:    cache,
		opts:     opts,
		limiter:  newLimiter(opts.MinDelay),
		logger:   logger,
		sem:      make(chan struct{}, 1),
	}
}

// Lookups returns the number of calls made to the Geocoder.
func (c *Client) Lookups() int64 {
	return c.lookups.Load()
}

// Flush persists the cache.
func (c *Client) Flush() error {
	return c.cache.Flush()
}

// Resolve returns coordinates for address. It never returns an error value:
// failures are reported through the Result status and are never cached.
func (c *Client) Resolve(ctx context.Context, address string) Result {
	key := Normalize(address)
	if key == "" {
		return notFound(key, nil)
	}

	if e, ok := c.cache.Get(key); ok {
		return found(key, e, true)
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return transient(key, ctx.Err())
	}
	defer func() { <-c.sem }()

	// Another caller may have resolved it while we waited.
	if e, ok := c.cache.Get(key); ok {
		return found(key, e, true)
	}

	res := c.lookup(ctx, key)
	if res.OK() {
		c.cache.Put(key, res.Entry)
	}
	return res
}

func (c *Client) lookup(ctx context.Context, key string) Result {
	q := Query{
		Text:         key,
		CountryCodes: c.opts.CountryCodes,
		Limit:        1,
	}

	attempts := c.opts.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.opts.ErrorWait); err != nil {
				return transient(key, err)
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return transient(key, err)
		}

		place, err := c.geocoder.Geocode(ctx, q)
		c.lookups.Add(1)

		switch {
		case err == nil:
			p := domain.Point{Name: place.Display, Lat: place.Lat, Lon: place.Lon}
			if verr := p.Validate(); verr != nil {
				return notFound(key, fmt.Errorf("geocoder returned invalid coordinates: %w", verr))
			}
			return found(key, store.Entry{Lat: place.Lat, Lon: place.Lon, Display: place.Display}, false)
		case errors.Is(err, ErrNoMatch):
			return notFound(key, nil)
		case errors.Is(err, ErrRejected):
			return notFound(key, err)
		case ctx.Err() != nil:
			return transient(key, ctx.Err())
		}

		lastErr = err
		c.logger.WithError(err).Warnf("action: geocode | result: retry | attempt: %d/%d | address: %s", attempt, attempts, key)
	}

	return transient(key, fmt.Errorf("lookup failed after %d attempts: %w", attempts, lastErr))
}
