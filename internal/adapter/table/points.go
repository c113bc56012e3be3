package table

import (
	"fmt"
	"strconv"
	"strings"

	"go.ngs.io/nearest-api/internal/domain"
)

// Columns names the name/latitude/longitude columns of a point table.
// Empty fields fall back to the defaults.
type Columns struct {
	Name string
	Lat  string
	Lon  string
}

// DefaultColumns are the column names of the committee roster export.
func DefaultColumns() Columns {
	return Columns{Name: "Nama", Lat: "Lat", Lon: "Lon"}
}

// ResolveColumn finds requested in the header. An empty request looks for
// fallback instead and, when that is missing too, uses the first column.
func (t *Table) ResolveColumn(requested, fallback string) (int, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		if i := t.Index(requested); i >= 0 {
			return i, nil
		}
		return -1, fmt.Errorf("%w: %q (available: %s)", ErrColumnNotFound, requested, strings.Join(t.Header, ", "))
	}
	if i := t.Index(fallback); i >= 0 {
		return i, nil
	}
	if len(t.Header) == 0 {
		return -1, fmt.Errorf("%w: table has no columns", ErrColumnNotFound)
	}
	return 0, nil
}

// ExtractStats counts rows seen and dropped while extracting points.
type ExtractStats struct {
	Total   int
	Dropped int
}

// ExtractPoints converts rows into points. Rows whose coordinates are empty,
// non-numeric or out of range are dropped and counted.
func ExtractPoints(t *Table, cols Columns) ([]domain.Point, ExtractStats, error) {
	def := DefaultColumns()
	nameCol, err := t.ResolveColumn(cols.Name, def.Name)
	if err != nil {
		return nil, ExtractStats{}, err
	}
	latCol, err := t.ResolveColumn(cols.Lat, def.Lat)
	if err != nil {
		return nil, ExtractStats{}, err
	}
	lonCol, err := t.ResolveColumn(cols.Lon, def.Lon)
	if err != nil {
		return nil, ExtractStats{}, err
	}

	stats := ExtractStats{Total: len(t.Rows)}
	points := make([]domain.Point, 0, len(t.Rows))
	for _, row := range t.Rows {
		lat, err1 := ParseCoord(Cell(row, latCol))
		lon, err2 := ParseCoord(Cell(row, lonCol))
		if err1 != nil || err2 != nil {
			stats.Dropped++
			continue
		}
		p := domain.Point{Name: Cell(row, nameCol), Lat: lat, Lon: lon}
		if p.Validate() != nil {
			stats.Dropped++
			continue
		}
		points = append(points, p)
	}
	return points, stats, nil
}

// ParseCoord parses a decimal coordinate, accepting a decimal comma.
func ParseCoord(val string) (float64, error) {
	val = strings.TrimSpace(strings.ReplaceAll(val, ",", "."))
	if val == "" {
		return 0, fmt.Errorf("empty coordinate")
	}
	return strconv.ParseFloat(val, 64)
}
