package usecase

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"go.ngs.io/nearest-api/internal/adapter/index"
	"go.ngs.io/nearest-api/internal/domain"
)

const (
	// DefaultMaxDistanceKm and DefaultTopN match the roster tool's initial inputs.
	DefaultMaxDistanceKm = 10.0
	DefaultTopN          = 30

	// DefaultIndexThreshold is the candidate count from which an R-tree
	// prefilter is built before measuring exact distances.
	DefaultIndexThreshold = 256
)

// RankRequest encapsulates a nearest-points request
type RankRequest struct {
	// Reference point (building). Required.
	Reference *domain.Point

	// Candidates to rank, already coerced to numbers by the caller
	Candidates []domain.Point

	// Filters; nil means the default
	MaxDistanceKm *float64
	TopN          *int
}

// ResultRow is one ranked point in a response
type ResultRow struct {
	Name       string  `json:"name"`
	DistanceKm float64 `json:"distance_km"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// ReferenceInfo describes the reference point in a response
type ReferenceInfo struct {
	Label string  `json:"label,omitempty"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// RankResponse contains the ranked, filtered results
type RankResponse struct {
	Reference     ReferenceInfo     `json:"reference"`
	MaxDistanceKm float64           `json:"max_distance_km"`
	TopN          int               `json:"top_n"`
	Candidates    int               `json:"candidates"`
	Count         int               `json:"count"`
	Results       []ResultRow       `json:"results"`
	Meta          map[string]string `json:"meta"`

	// Ranked keeps full-precision results for file exports.
	Ranked []domain.RankedResult `json:"-"`
}

// RankUseCase orchestrates distance ranking
type RankUseCase struct {
	indexThreshold int
	logger         log.FieldLogger
}

// NewRankUseCase creates a new rank use case. indexThreshold <= 0 disables
// the R-tree prefilter.
func NewRankUseCase(indexThreshold int, logger log.FieldLogger) *RankUseCase {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &RankUseCase{
		indexThreshold: indexThreshold,
		logger:         logger,
	}
}

// Validate checks if the request is valid
func (r *RankRequest) Validate() error {
	if r.Reference == nil {
		return fmt.Errorf("reference point is required")
	}
	if err := r.Reference.Validate(); err != nil {
		return fmt.Errorf("invalid reference point: %w", err)
	}

	if r.MaxDistanceKm != nil {
		d := *r.MaxDistanceKm
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return fmt.Errorf("max_distance_km must be a finite non-negative number")
		}
	}

	// Candidates arrive pre-filtered; only range is checked here.
	for i, c := range r.Candidates {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("candidate %d (%s): %w", i, c.Name, err)
		}
	}

	return nil
}

func (r *RankRequest) maxDistance() float64 {
	if r.MaxDistanceKm == nil {
		return DefaultMaxDistanceKm
	}
	return *r.MaxDistanceKm
}

// topN returns the requested count; non-positive values yield an empty result.
func (r *RankRequest) topN() int {
	if r.TopN == nil {
		return DefaultTopN
	}
	return *r.TopN
}

// Execute ranks the candidates against the reference point
func (uc *RankUseCase) Execute(req RankRequest) (*RankResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	ref := *req.Reference
	maxKm := req.maxDistance()
	topN := req.topN()

	candidates := req.Candidates
	strategy := "scan"
	if uc.indexThreshold > 0 && len(candidates) >= uc.indexThreshold {
		ix := index.New(candidates)
		positions := ix.Within(ref, maxKm)
		subset := make([]domain.Point, len(positions))
		for i, pos := range positions {
			subset[i] = candidates[pos]
		}
		candidates = subset
		strategy = "rtree"
	}

	ranked := domain.Rank(ref, candidates, maxKm, topN)

	rows := make([]ResultRow, len(ranked))
	for i, r := range ranked {
		rows[i] = ResultRow{
			Name:       r.Point.Name,
			DistanceKm: roundToDecimal(r.DistanceKm, 3),
			Lat:        r.Point.Lat,
			Lon:        r.Point.Lon,
		}
	}

	uc.logger.WithFields(log.Fields{
		"candidates": len(req.Candidates),
		"measured":   len(candidates),
		"results":    len(rows),
		"strategy":   strategy,
	}).Debug("action: rank | result: success")

	return &RankResponse{
		Reference: ReferenceInfo{
			Label: ref.Name,
			Lat:   ref.Lat,
			Lon:   ref.Lon,
		},
		MaxDistanceKm: maxKm,
		TopN:          topN,
		Candidates:    len(req.Candidates),
		Count:         len(rows),
		Results:       rows,
		Meta: map[string]string{
			"model":        "haversine",
			"earth_radius": "6371.0088 km",
			"strategy":     strategy,
		},
		Ranked: ranked,
	}, nil
}

// Helper function to round to decimal places
func roundToDecimal(val float64, precision int) float64 {
	multiplier := math.Pow(10, float64(precision))
	return math.Round(val*multiplier) / multiplier
}
