package domain

import (
	"math"
	"sort"
)

// Rank measures every candidate against reference, sorts ascending by
// distance (stable, so ties keep input order), drops candidates farther than
// maxDistanceKm and keeps at most topN of the remainder.
//
// topN <= 0 yields an empty result, as does a negative or NaN maxDistanceKm.
// Use math.Inf(1) to disable the distance filter.
func Rank(reference Point, candidates []Point, maxDistanceKm float64, topN int) []RankedResult {
	if topN <= 0 || len(candidates) == 0 || math.IsNaN(maxDistanceKm) || maxDistanceKm < 0 {
		return []RankedResult{}
	}

	ranked := make([]RankedResult, len(candidates))
	for i, c := range candidates {
		ranked[i] = RankedResult{
			Point:      c,
			DistanceKm: HaversineKm(reference, c),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})

	// Sorted, so the filter is a prefix cut.
	cut := sort.Search(len(ranked), func(i int) bool {
		return ranked[i].DistanceKm > maxDistanceKm
	})
	ranked = ranked[:cut]

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
