package geocode

import (
	"context"
	"fmt"
)

// BatchReport summarizes a ResolveBatch run over unique normalized addresses.
type BatchReport struct {
	Rows      int
	Unique    int
	CacheHits int
	Found     int
	NotFound  int
	Transient int
}

// ResolveBatch deduplicates addresses by normalized key, resolves each unique
// key once and maps every input row back to its result. The cache is flushed
// every FlushEvery unique addresses and once more at the end, including when
// ctx is cancelled. Rows that were not reached before cancellation are
// reported as transient errors.
func (c *Client) ResolveBatch(ctx context.Context, addresses []string) ([]Result, BatchReport, error) {
	report := BatchReport{Rows: len(addresses)}

	keys := make([]string, len(addresses))
	unique := make([]string, 0, len(addresses))
	seen := make(map[string]bool, len(addresses))
	for i, a := range addresses {
		k := Normalize(a)
		keys[i] = k
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, k)
	}
	report.Unique = len(unique)
	c.logger.Infof("action: resolve_batch | rows: %d | unique: %d", len(addresses), len(unique))

	byKey := make(map[string]Result, len(unique))
	var runErr error
	for i, k := range unique {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		c.logger.Infof("[%d/%d] %s", i+1, len(unique), k)
		res := c.Resolve(ctx, k)
		byKey[k] = res

		switch {
		case res.OK() && res.Cached:
			report.CacheHits++
			report.Found++
		case res.OK():
			report.Found++
		case res.Status == StatusNotFound:
			report.NotFound++
		default:
			report.Transient++
		}

		if (i+1)%c.opts.FlushEvery == 0 {
			if err := c.cache.Flush(); err != nil {
				c.logger.WithError(err).Error("action: flush_cache | result: fail")
			}
		}
	}

	report.Transient += len(unique) - len(byKey)

	if err := c.cache.Flush(); err != nil {
		flushErr := fmt.Errorf("failed to persist geocode cache: %w", err)
		if runErr == nil {
			runErr = flushErr
		} else {
			runErr = fmt.Errorf("%w (%v)", runErr, flushErr)
		}
	}

	results := make([]Result, len(addresses))
	for i, k := range keys {
		if k == "" {
			results[i] = notFound(k, nil)
			continue
		}
		res, ok := byKey[k]
		if !ok {
			res = transient(k, runErr)
		}
		results[i] = res
	}

	c.logger.Infof("action: resolve_batch | result: done | found: %d | not_found: %d | transient: %d | cache_hits: %d",
		report.Found, report.NotFound, report.Transient, report.CacheHits)
	return results, report, runErr
}
