package usecase

import (
	"io"
	"math"
	"math/rand"
	"testing"

	log "github.com/sirupsen/logrus"

	"go.ngs.io/nearest-api/internal/domain"
)

func quietLogger() log.FieldLogger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestRankUseCase_Execute(t *testing.T) {
	uc := NewRankUseCase(DefaultIndexThreshold, quietLogger())

	resp, err := uc.Execute(RankRequest{
		Reference: &domain.Point{Name: "Sekolah", Lat: 0, Lon: 0},
		Candidates: []domain.Point{
			{Name: "A", Lat: 0, Lon: 0},
			{Name: "B", Lat: 0, Lon: 0.1},
			{Name: "C", Lat: 1, Lon: 1},
		},
		MaxDistanceKm: floatPtr(20),
		TopN:          intPtr(2),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if resp.Count != 2 || len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", resp.Count)
	}
	if resp.Results[0].Name != "A" || resp.Results[0].DistanceKm != 0 {
		t.Errorf("unexpected first result %+v", resp.Results[0])
	}
	if resp.Results[1].Name != "B" || resp.Results[1].DistanceKm != 11.12 {
		t.Errorf("expected B rounded to 11.12 km, got %+v", resp.Results[1])
	}
	if resp.Reference.Label != "Sekolah" || resp.Candidates != 3 {
		t.Errorf("unexpected response metadata %+v", resp)
	}
	if len(resp.Ranked) != 2 {
		t.Errorf("expected full-precision results to be kept")
	}
}

func TestRankUseCase_Defaults(t *testing.T) {
	uc := NewRankUseCase(0, quietLogger())

	candidates := make([]domain.Point, 40)
	for i := range candidates {
		candidates[i] = domain.Point{Lat: 0, Lon: float64(i) * 0.001}
	}
	candidates = append(candidates, domain.Point{Name: "far", Lat: 0, Lon: 1})

	resp, err := uc.Execute(RankRequest{Reference: &domain.Point{}, Candidates: candidates})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.TopN != DefaultTopN || resp.MaxDistanceKm != DefaultMaxDistanceKm {
		t.Errorf("expected defaults, got top_n=%d max=%v", resp.TopN, resp.MaxDistanceKm)
	}
	if resp.Count != DefaultTopN {
		t.Errorf("expected %d results, got %d", DefaultTopN, resp.Count)
	}
}

func TestRankUseCase_ValidationErrors(t *testing.T) {
	uc := NewRankUseCase(0, quietLogger())

	tests := []struct {
		name string
		req  RankRequest
	}{
		{"missing reference", RankRequest{}},
		{"reference out of range", RankRequest{Reference: &domain.Point{Lat: 91}}},
		{"negative distance", RankRequest{Reference: &domain.Point{}, MaxDistanceKm: floatPtr(-1)}},
		{"infinite distance", RankRequest{Reference: &domain.Point{}, MaxDistanceKm: floatPtr(math.Inf(1))}},
		{"bad candidate", RankRequest{Reference: &domain.Point{}, Candidates: []domain.Point{{Lon: 200}}}},
	}

	for _, tt := range tests {
		if _, err := uc.Execute(tt.req); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestRankUseCase_ZeroTopNIsEmpty(t *testing.T) {
	uc := NewRankUseCase(0, quietLogger())

	resp, err := uc.Execute(RankRequest{
		Reference:  &domain.Point{},
		Candidates: []domain.Point{{Name: "A"}},
		TopN:       intPtr(0),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Count != 0 || resp.Results == nil {
		t.Errorf("expected empty non-nil results, got %+v", resp.Results)
	}
}

// TestRankUseCase_IndexMatchesScan checks the R-tree path returns exactly
// what a full scan returns, tie order included.
func TestRankUseCase_IndexMatchesScan(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	candidates := make([]domain.Point, 1000)
	for i := range candidates {
		candidates[i] = domain.Point{
			Name: string(rune('a' + i%26)),
			Lat:  -7 + rng.Float64()*2,
			Lon:  110 + rng.Float64()*2,
		}
	}
	// Duplicated coordinates exercise the stable tie-break.
	candidates[10] = candidates[500]
	candidates[10].Name = "dup-first"
	candidates[500].Name = "dup-second"

	ref := &domain.Point{Lat: -6.2, Lon: 111}

	indexed := NewRankUseCase(100, quietLogger())
	scanned := NewRankUseCase(0, quietLogger())

	for _, maxKm := range []float64{0, 5, 25, 80, 500} {
		req := RankRequest{Reference: ref, Candidates: candidates, MaxDistanceKm: floatPtr(maxKm), TopN: intPtr(1000)}
		a, err := indexed.Execute(req)
		if err != nil {
			t.Fatalf("indexed: %v", err)
		}
		b, err := scanned.Execute(req)
		if err != nil {
			t.Fatalf("scanned: %v", err)
		}

		if a.Meta["strategy"] != "rtree" || b.Meta["strategy"] != "scan" {
			t.Fatalf("unexpected strategies %s / %s", a.Meta["strategy"], b.Meta["strategy"])
		}
		if len(a.Ranked) != len(b.Ranked) {
			t.Fatalf("max %.0f: indexed %d results, scan %d", maxKm, len(a.Ranked), len(b.Ranked))
		}
		for i := range a.Ranked {
			if a.Ranked[i] != b.Ranked[i] {
				t.Fatalf("max %.0f: result %d differs: %+v vs %+v", maxKm, i, a.Ranked[i], b.Ranked[i])
			}
		}
	}
}
