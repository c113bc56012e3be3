package geocode

import (
	"context"
	"fmt"
	"testing"

	"go.ngs.io/nearest-api/internal/adapter/store/memory"
)

func TestResolveBatch_DeduplicatesAndMapsBack(t *testing.T) {
	g := newFakeGeocoder(func(q Query, call int) (Place, error) {
		if q.Text == "Nowhere" {
			return Place{}, ErrNoMatch
		}
		return alwaysFound(q, call)
	})
	c := NewClient(g, memory.NewStore(nil), fastOptions(), quietLogger())

	addresses := []string{
		"Juwana",
		"  Juwana ",
		"Nowhere",
		"",
		"Tayu",
		"Ｊｕｗａｎａ",
	}
	results, report, err := c.ResolveBatch(context.Background(), addresses)
	if err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}

	if len(results) != len(addresses) {
		t.Fatalf("expected %d results, got %d", len(addresses), len(results))
	}
	if g.total() != 3 {
		t.Errorf("expected 3 lookups for 3 unique addresses, got %d", g.total())
	}
	if report.Unique != 3 || report.Found != 2 || report.NotFound != 1 || report.Transient != 0 {
		t.Errorf("unexpected report: %+v", report)
	}

	for _, i := range []int{0, 1, 5} {
		if !results[i].OK() || results[i].Key != "Juwana" {
			t.Errorf("row %d: expected shared Juwana result, got %+v", i, results[i])
		}
	}
	if results[2].Status != StatusNotFound {
		t.Errorf("row 2: expected not found, got %s", results[2].Status)
	}
	if results[3].Status != StatusNotFound || results[3].Key != "" {
		t.Errorf("row 3: expected empty address to be not found, got %+v", results[3])
	}
	if !results[4].OK() {
		t.Errorf("row 4: expected Tayu found, got %s", results[4].Status)
	}
}

func TestResolveBatch_FlushesPeriodically(t *testing.T) {
	g := newFakeGeocoder(alwaysFound)
	cache := memory.NewStore(nil)
	opts := fastOptions()
	opts.FlushEvery = 5
	c := NewClient(g, cache, opts, quietLogger())

	addresses := make([]string, 12)
	for i := range addresses {
		addresses[i] = fmt.Sprintf("Desa %d", i)
	}
	if _, _, err := c.ResolveBatch(context.Background(), addresses); err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}

	// After 5 and 10 unique addresses, plus the final flush.
	if cache.Flushes() != 3 {
		t.Errorf("expected 3 flushes, got %d", cache.Flushes())
	}
	if cache.Len() != 12 {
		t.Errorf("expected 12 cached entries, got %d", cache.Len())
	}
}

func TestResolveBatch_SecondRunServedFromCache(t *testing.T) {
	g := newFakeGeocoder(alwaysFound)
	c := NewClient(g, memory.NewStore(nil), fastOptions(), quietLogger())
	addresses := []string{"Pati", "Kudus", "Rembang"}

	if _, _, err := c.ResolveBatch(context.Background(), addresses); err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, report, err := c.ResolveBatch(context.Background(), addresses)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.CacheHits != 3 {
		t.Errorf("expected 3 cache hits, got %d", report.CacheHits)
	}
	if g.total() != 3 {
		t.Errorf("expected 3 lookups in total, got %d", g.total())
	}
}

func TestResolveBatch_CancelStillFlushes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := newFakeGeocoder(func(q Query, call int) (Place, error) {
		if q.Text == "B" {
			cancel()
		}
		return alwaysFound(q, call)
	})
	cache := memory.NewStore(nil)
	c := NewClient(g, cache, fastOptions(), quietLogger())

	results, report, err := c.ResolveBatch(ctx, []string{"A", "B", "C", "D"})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if cache.Flushes() != 1 {
		t.Errorf("expected final flush after cancel, got %d", cache.Flushes())
	}
	if !results[0].OK() || !results[1].OK() {
		t.Errorf("expected rows resolved before cancel to keep their results")
	}
	if results[2].Status != StatusTransientError || results[3].Status != StatusTransientError {
		t.Errorf("expected unreached rows to be transient, got %s and %s", results[2].Status, results[3].Status)
	}
	if report.Transient != 2 {
		t.Errorf("expected 2 transient in report, got %d", report.Transient)
	}
}
