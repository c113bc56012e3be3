package geocode

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"go.ngs.io/nearest-api/internal/adapter/store"
	"go.ngs.io/nearest-api/internal/adapter/store/memory"
)

var errUnavailable = errors.New("service unavailable")

// fakeGeocoder records calls per query text and answers from respond.
type fakeGeocoder struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(q Query, call int) (Place, error)
}

func newFakeGeocoder(respond func(q Query, call int) (Place, error)) *fakeGeocoder {
	return &fakeGeocoder{calls: make(map[string]int), respond: respond}
}

func (f *fakeGeocoder) Geocode(_ context.Context, q Query) (Place, error) {
	f.mu.Lock()
	f.calls[q.Text]++
	n := f.calls[q.Text]
	f.mu.Unlock()
	return f.respond(q, n)
}

func (f *fakeGeocoder) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func alwaysFound(q Query, _ int) (Place, error) {
	return Place{Lat: -6.75, Lon: 111.04, Display: q.Text + ", Indonesia"}, nil
}

func quietLogger() log.FieldLogger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func fastOptions() Options {
	return Options{
		CountryCodes: []string{"id"},
		MaxRetries:   6,
		FlushEvery:   10,
	}
}

func TestResolve_CacheRoundTrip(t *testing.T) {
	g := newFakeGeocoder(alwaysFound)
	c := NewClient(g, memory.NewStore(nil), fastOptions(), quietLogger())
	ctx := context.Background()

	first := c.Resolve(ctx, "Alun-alun Pati")
	if !first.OK() || first.Cached {
		t.Fatalf("expected a fresh lookup, got %+v", first)
	}
	second := c.Resolve(ctx, "Alun-alun Pati")
	if !second.OK() || !second.Cached {
		t.Fatalf("expected a cache hit, got %+v", second)
	}
	if g.total() != 1 {
		t.Errorf("expected exactly 1 lookup, got %d", g.total())
	}
	if c.Lookups() != 1 {
		t.Errorf("expected Lookups() == 1, got %d", c.Lookups())
	}
}

func TestResolve_NormalizedVariantsShareLookup(t *testing.T) {
	g := newFakeGeocoder(alwaysFound)
	c := NewClient(g, memory.NewStore(nil), fastOptions(), quietLogger())
	ctx := context.Background()

	a := c.Resolve(ctx, "  Jl.  Sudirman \t No. 5 ")
	b := c.Resolve(ctx, "Jl. Sudirman No. 5")
	fw := c.Resolve(ctx, "Jl.　Sudirman No. ５")
	vt := c.Resolve(ctx, "Jl.\vSudirman\x1fNo. 5")

	if a.Key != b.Key || b.Key != fw.Key || fw.Key != vt.Key {
		t.Fatalf("expected one key, got %q, %q, %q, %q", a.Key, b.Key, fw.Key, vt.Key)
	}
	if g.total() != 1 {
		t.Errorf("expected exactly 1 lookup, got %d", g.total())
	}
}

func TestResolve_FailureIsNotCached(t *testing.T) {
	g := newFakeGeocoder(func(q Query, call int) (Place, error) {
		if call == 1 {
			return Place{}, ErrNoMatch
		}
		return alwaysFound(q, call)
	})
	cache := memory.NewStore(nil)
	c := NewClient(g, cache, fastOptions(), quietLogger())
	ctx := context.Background()

	first := c.Resolve(ctx, "Desa Baru")
	if first.Status != StatusNotFound {
		t.Fatalf("expected not found, got %s", first.Status)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected no negative cache entry, cache has %d", cache.Len())
	}

	second := c.Resolve(ctx, "Desa Baru")
	if !second.OK() {
		t.Fatalf("expected retry to succeed, got %s", second.Status)
	}
	if g.total() != 2 {
		t.Errorf("expected 2 lookups, got %d", g.total())
	}
}

func TestResolve_NoMatchIsNotRetried(t *testing.T) {
	g := newFakeGeocoder(func(Query, int) (Place, error) { return Place{}, ErrNoMatch })
	c := NewClient(g, memory.NewStore(nil), fastOptions(), quietLogger())

	res := c.Resolve(context.Background(), "Atlantis")
	if res.Status != StatusNotFound {
		t.Fatalf("expected not found, got %s", res.Status)
	}
	if g.total() != 1 {
		t.Errorf("expected 1 lookup, got %d", g.total())
	}
}

func TestResolve_RejectedIsNotFound(t *testing.T) {
	g := newFakeGeocoder(func(Query, int) (Place, error) { return Place{}, ErrRejected })
	c := NewClient(g, memory.NewStore(nil), fastOptions(), quietLogger())

	res := c.Resolve(context.Background(), "???")
	if res.Status != StatusNotFound || !errors.Is(res.Err, ErrRejected) {
		t.Fatalf("expected not found wrapping ErrRejected, got %s (%v)", res.Status, res.Err)
	}
	if g.total() != 1 {
		t.Errorf("expected 1 lookup, got %d", g.total())
	}
}

func TestResolve_RetriesTransientErrors(t *testing.T) {
	g := newFakeGeocoder(func(q Query, call int) (Place, error) {
		if call <= 2 {
			return Place{}, errUnavailable
		}
		return alwaysFound(q, call)
	})
	c := NewClient(g, memory.NewStore(nil), fastOptions(), quietLogger())

	res := c.Resolve(context.Background(), "Tayu")
	if !res.OK() {
		t.Fatalf("expected success after retries, got %s (%v)", res.Status, res.Err)
	}
	if g.total() != 3 {
		t.Errorf("expected 3 lookups, got %d", g.total())
	}
}

func TestResolve_ExhaustedRetriesIsTransient(t *testing.T) {
	g := newFakeGeocoder(func(Query, int) (Place, error) { return Place{}, errUnavailable })
	opts := fastOptions()
	opts.MaxRetries = 2
	cache := memory.NewStore(nil)
	c := NewClient(g, cache, opts, quietLogger())

	res := c.Resolve(context.Background(), "Margorejo")
	if res.Status != StatusTransientError {
		t.Fatalf("expected transient error, got %s", res.Status)
	}
	if !errors.Is(res.Err, errUnavailable) {
		t.Errorf("expected cause to wrap the service error, got %v", res.Err)
	}
	if g.total() != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d", g.total())
	}
	if cache.Len() != 0 {
		t.Errorf("expected nothing cached, got %d entries", cache.Len())
	}
}

func TestResolve_MinDelayAppliesAcrossRetries(t *testing.T) {
	g := newFakeGeocoder(func(q Query, call int) (Place, error) {
		if call <= 2 {
			return Place{}, errUnavailable
		}
		return alwaysFound(q, call)
	})
	opts := fastOptions()
	opts.MinDelay = 40 * time.Millisecond
	c := NewClient(g, memory.NewStore(nil), opts, quietLogger())

	start := time.Now()
	res := c.Resolve(context.Background(), "Wedarijaksa")
	elapsed := time.Since(start)

	if !res.OK() {
		t.Fatalf("expected success, got %s", res.Status)
	}
	// Three calls need at least two full gaps.
	if elapsed < 75*time.Millisecond {
		t.Errorf("expected at least ~80ms between three calls, took %s", elapsed)
	}
}

func TestResolve_InvalidCoordinatesAreNotCached(t *testing.T) {
	g := newFakeGeocoder(func(Query, int) (Place, error) {
		return Place{Lat: 123, Lon: 0, Display: "broken"}, nil
	})
	cache := memory.NewStore(nil)
	c := NewClient(g, cache, fastOptions(), quietLogger())

	res := c.Resolve(context.Background(), "Broken")
	if res.Status != StatusNotFound || res.Err == nil {
		t.Fatalf("expected not found with cause, got %s (%v)", res.Status, res.Err)
	}
	if cache.Len() != 0 {
		t.Errorf("expected nothing cached")
	}
}

func TestResolve_EmptyAddress(t *testing.T) {
	g := newFakeGeocoder(alwaysFound)
	c := NewClient(g, memory.NewStore(nil), fastOptions(), quietLogger())

	res := c.Resolve(context.Background(), " \t ")
	if res.Status != StatusNotFound {
		t.Fatalf("expected not found, got %s", res.Status)
	}
	if g.total() != 0 {
		t.Errorf("expected no lookup, got %d", g.total())
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	g := newFakeGeocoder(func(Query, int) (Place, error) { return Place{}, errUnavailable })
	opts := fastOptions()
	opts.ErrorWait = time.Hour
	c := NewClient(g, memory.NewStore(nil), opts, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := c.Resolve(ctx, "Gabus")
	if res.Status != StatusTransientError {
		t.Fatalf("expected transient error, got %s", res.Status)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", res.Err)
	}
}

func TestResolve_QueuedCallerHonorsContext(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	g := GeocoderFunc(func(_ context.Context, q Query) (Place, error) {
		if q.Text == "Tayu" {
			close(started)
			<-release
		}
		return alwaysFound(q, 1)
	})
	c := NewClient(g, memory.NewStore(nil), fastOptions(), quietLogger())

	done := make(chan Result)
	go func() { done <- c.Resolve(context.Background(), "Tayu") }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	begin := time.Now()
	res := c.Resolve(ctx, "Juwana")
	if res.Status != StatusTransientError || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while queued, got %s (%v)", res.Status, res.Err)
	}
	if waited := time.Since(begin); waited > time.Second {
		t.Errorf("queued caller waited %s past its deadline", waited)
	}

	close(release)
	if first := <-done; !first.OK() {
		t.Errorf("expected in-flight lookup to finish, got %s", first.Status)
	}
	if c.Lookups() != 1 {
		t.Errorf("expected only the in-flight lookup, got %d", c.Lookups())
	}
}

func TestResolve_UsesCountryRestriction(t *testing.T) {
	var got Query
	g := GeocoderFunc(func(_ context.Context, q Query) (Place, error) {
		got = q
		return alwaysFound(q, 1)
	})
	c := NewClient(g, memory.NewStore(nil), fastOptions(), quietLogger())
	c.Resolve(context.Background(), "Pati")

	if got.Limit != 1 || len(got.CountryCodes) != 1 || got.CountryCodes[0] != "id" {
		t.Errorf("unexpected query: %+v", got)
	}
}

func TestResolve_PrefersExistingCache(t *testing.T) {
	seed := map[string]store.Entry{"Pati": {Lat: 1, Lon: 2, Display: "seeded"}}
	g := newFakeGeocoder(alwaysFound)
	c := NewClient(g, memory.NewStore(seed), fastOptions(), quietLogger())

	res := c.Resolve(context.Background(), " Pati ")
	if !res.Cached || res.Entry.Display != "seeded" {
		t.Fatalf("expected seeded entry, got %+v", res)
	}
	if g.total() != 0 {
		t.Errorf("expected no lookup, got %d", g.total())
	}
}
