package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"go.ngs.io/nearest-api/internal/domain"
)

// ResultHeader is the column layout of every ranked-result export.
var ResultHeader = []string{"name", "distance_km", "lat", "lon"}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteResultsCSV writes ranked results as UTF-8 CSV with a header row.
func WriteResultsCSV(w io.Writer, results []domain.RankedResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ResultHeader); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			r.Point.Name,
			formatFloat(r.DistanceKm),
			formatFloat(r.Point.Lat),
			formatFloat(r.Point.Lon),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteResultsXLSX writes ranked results to a single-sheet workbook.
func WriteResultsXLSX(w io.Writer, results []domain.RankedResult, sheetName string) error {
	if sheetName == "" {
		sheetName = "Results"
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(ResultHeader))
	for i, h := range ResultHeader {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.Point.Name, r.DistanceKm, r.Point.Lat, r.Point.Lon}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}

	if sheetName != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return err
		}
	}
	if index, err := f.GetSheetIndex(sheetName); err == nil && index >= 0 {
		f.SetActiveSheet(index)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteGeoJSON writes a FeatureCollection holding the reference point and
// every ranked result. With lines set, each result also gets a LineString
// back to the reference.
func WriteGeoJSON(w io.Writer, reference domain.Point, results []domain.RankedResult, lines bool) error {
	features := make([]map[string]interface{}, 0, len(results)*2+1)

	features = append(features, pointFeature(reference, map[string]interface{}{
		"role": "reference",
		"name": reference.Name,
	}))

	for i, r := range results {
		features = append(features, pointFeature(r.Point, map[string]interface{}{
			"role":        "candidate",
			"rank":        i + 1,
			"name":        r.Point.Name,
			"distance_km": r.DistanceKm,
		}))
		if lines {
			features = append(features, map[string]interface{}{
				"type": "Feature",
				"geometry": map[string]interface{}{
					"type": "LineString",
					"coordinates": [][]float64{
						{reference.Lon, reference.Lat},
						{r.Point.Lon, r.Point.Lat},
					},
				},
				"properties": map[string]interface{}{
					"role":        "link",
					"name":        r.Point.Name,
					"distance_km": r.DistanceKm,
				},
			})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(map[string]interface{}{
		"type":     "FeatureCollection",
		"features": features,
	})
}

func pointFeature(p domain.Point, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type": "Feature",
		"geometry": map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{p.Lon, p.Lat},
		},
		"properties": props,
	}
}
