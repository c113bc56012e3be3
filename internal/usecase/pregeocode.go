package usecase

import (
	"context"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"go.ngs.io/nearest-api/internal/adapter/table"
	"go.ngs.io/nearest-api/internal/geocode"
)

// DefaultAddressSuffix scopes bare street addresses to the committee's regency.
const DefaultAddressSuffix = "Kabupaten Pati, Jawa Tengah, Indonesia"

// Columns appended to a pre-geocoded table.
const (
	ColumnAddressQuery = "address_query"
	ColumnLat          = "lat"
	ColumnLon          = "lon"
	ColumnDisplay      = "display"
	ColumnGeocodeOK    = "geocode_ok"
)

// BatchResolver resolves many addresses at once. *geocode.Client implements it.
type BatchResolver interface {
	ResolveBatch(ctx context.Context, addresses []string) ([]geocode.Result, geocode.BatchReport, error)
}

// PregeocodeRequest describes a table to annotate with coordinates
type PregeocodeRequest struct {
	Table         *table.Table
	NameColumn    string
	AddressColumn string
	// Suffix is appended to addresses that do not already mention it.
	Suffix string
}

// PregeocodeReport summarizes an annotation run
type PregeocodeReport struct {
	geocode.BatchReport
	Succeeded int
	Failed    int
}

// PregeocodeUseCase geocodes an address roster once so it can be ranked later
type PregeocodeUseCase struct {
	resolver BatchResolver
	logger   log.FieldLogger
}

// NewPregeocodeUseCase creates a new pre-geocoding use case
func NewPregeocodeUseCase(resolver BatchResolver, logger log.FieldLogger) *PregeocodeUseCase {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &PregeocodeUseCase{resolver: resolver, logger: logger}
}

// Execute resolves every row's address and appends the address_query, lat,
// lon, display and geocode_ok columns to req.Table. On cancellation the
// table is still annotated, with unreached rows marked as failed, and the
// error is returned alongside the report.
func (uc *PregeocodeUseCase) Execute(ctx context.Context, req PregeocodeRequest) (PregeocodeReport, error) {
	t := req.Table
	if t == nil {
		return PregeocodeReport{}, fmt.Errorf("table is required")
	}
	if t.Index(req.NameColumn) < 0 || t.Index(req.AddressColumn) < 0 {
		return PregeocodeReport{}, fmt.Errorf("%w: table must have columns %q and %q", table.ErrColumnNotFound, req.NameColumn, req.AddressColumn)
	}
	for _, name := range []string{ColumnAddressQuery, ColumnLat, ColumnLon, ColumnDisplay, ColumnGeocodeOK} {
		if t.Index(name) >= 0 {
			return PregeocodeReport{}, fmt.Errorf("table already has a %q column", name)
		}
	}

	queries := t.Column(t.Index(req.AddressColumn))
	for i, addr := range queries {
		queries[i] = geocode.WithSuffix(addr, req.Suffix)
	}

	results, batch, runErr := uc.resolver.ResolveBatch(ctx, queries)

	report := PregeocodeReport{BatchReport: batch}
	lats := make([]string, len(results))
	lons := make([]string, len(results))
	displays := make([]string, len(results))
	oks := make([]string, len(results))
	for i, res := range results {
		if res.OK() {
			lats[i] = strconv.FormatFloat(res.Entry.Lat, 'f', -1, 64)
			lons[i] = strconv.FormatFloat(res.Entry.Lon, 'f', -1, 64)
			displays[i] = res.Entry.Display
			report.Succeeded++
		} else {
			report.Failed++
		}
		oks[i] = strconv.FormatBool(res.OK())
	}

	columns := []struct {
		name   string
		values []string
	}{
		{ColumnAddressQuery, queries},
		{ColumnLat, lats},
		{ColumnLon, lons},
		{ColumnDisplay, displays},
		{ColumnGeocodeOK, oks},
	}
	for _, col := range columns {
		if err := t.AppendColumn(col.name, col.values); err != nil {
			return report, err
		}
	}

	uc.logger.WithFields(log.Fields{
		"rows":      len(t.Rows),
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}).Info("action: pregeocode | result: done")

	return report, runErr
}
