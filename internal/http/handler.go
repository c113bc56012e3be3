package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"go.ngs.io/nearest-api/internal/adapter/table"
	"go.ngs.io/nearest-api/internal/domain"
	"go.ngs.io/nearest-api/internal/usecase"
)

// ResultFileBase is the download name of exported results.
const ResultFileBase = "hasil_terdekat"

// Handler handles HTTP requests for distance ranking and geocoding.
type Handler struct {
	rankUC      *usecase.RankUseCase
	referenceUC *usecase.ReferenceUseCase
	logger      log.FieldLogger
}

// NewHandler creates a new HTTP handler.
func NewHandler(rankUC *usecase.RankUseCase, referenceUC *usecase.ReferenceUseCase, logger log.FieldLogger) *Handler {
	return &Handler{
		rankUC:      rankUC,
		referenceUC: referenceUC,
		logger:      logger,
	}
}

type referencePayload struct {
	Label string   `json:"label"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

type candidatePayload struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

// RankPayload is the JSON body of POST /v1/rank.
type RankPayload struct {
	Reference     *referencePayload  `json:"reference"`
	Candidates    []candidatePayload `json:"candidates"`
	MaxDistanceKm *float64           `json:"max_distance_km"`
	TopN          *int               `json:"top_n"`
}

// Rank handles POST /v1/rank.
func (h *Handler) Rank(c *gin.Context) {
	var payload RankPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid JSON body: %v", err)})
		return
	}

	if payload.Reference == nil || payload.Reference.Lat == nil || payload.Reference.Lon == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference lat and lon are required"})
		return
	}
	ref := domain.Point{Name: payload.Reference.Label, Lat: *payload.Reference.Lat, Lon: *payload.Reference.Lon}

	// Rows without usable coordinates are dropped, not rejected.
	candidates := make([]domain.Point, 0, len(payload.Candidates))
	dropped := 0
	for _, cp := range payload.Candidates {
		if cp.Lat == nil || cp.Lon == nil {
			dropped++
			continue
		}
		p, err := domain.NewPoint(cp.Name, *cp.Lat, *cp.Lon)
		if err != nil {
			dropped++
			continue
		}
		candidates = append(candidates, p)
	}

	response, err := h.rankUC.Execute(usecase.RankRequest{
		Reference:     &ref,
		Candidates:    candidates,
		MaxDistanceKm: payload.MaxDistanceKm,
		TopN:          payload.TopN,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	response.Meta["dropped"] = strconv.Itoa(dropped)

	h.render(c, c.DefaultQuery("format", "json"), response, parseBool(c.Query("lines")))
}

// RankUpload handles POST /v1/rank/upload with a CSV or XLSX roster.
func (h *Handler) RankUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required (CSV or XLSX with name, lat, lon columns)"})
		return
	}

	format, err := table.DetectFormat(file.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to open upload: %v", err)})
		return
	}
	defer func() { _ = f.Close() }()

	tbl, err := table.Read(f, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidates, stats, err := table.ExtractPoints(tbl, table.Columns{
		Name: c.PostForm("name_col"),
		Lat:  c.PostForm("lat_col"),
		Lon:  c.PostForm("lon_col"),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(candidates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid coordinates in the uploaded table"})
		return
	}

	// Reference: explicit coordinates win over an address to geocode.
	label := c.PostForm("label")
	var ref *domain.Point
	latStr, lonStr := c.PostForm("lat"), c.PostForm("lon")
	address := c.PostForm("address")
	switch {
	case latStr != "" && lonStr != "":
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid latitude: %v", err)})
			return
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid longitude: %v", err)})
			return
		}
		ref = &domain.Point{Name: label, Lat: lat, Lon: lon}
	case address != "":
		result, err := h.referenceUC.Geocode(c.Request.Context(), address, label)
		if err != nil {
			c.JSON(geocodeStatus(err), gin.H{"error": err.Error()})
			return
		}
		ref = &result.Point
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference point is required: provide lat and lon, or an address"})
		return
	}

	req := usecase.RankRequest{Reference: ref, Candidates: candidates}
	if v := c.PostForm("max_distance_km"); v != "" {
		maxKm, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid max_distance_km: %v", err)})
			return
		}
		req.MaxDistanceKm = &maxKm
	}
	if v := c.PostForm("top_n"); v != "" {
		topN, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid top_n: %v", err)})
			return
		}
		req.TopN = &topN
	}

	response, err := h.rankUC.Execute(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	response.Meta["dropped"] = strconv.Itoa(stats.Dropped)
	if lat, lon, ok := domain.Centroid(candidates); ok {
		response.Meta["center_lat"] = strconv.FormatFloat(lat, 'f', 6, 64)
		response.Meta["center_lon"] = strconv.FormatFloat(lon, 'f', 6, 64)
	}

	h.render(c, c.DefaultPostForm("format", "json"), response, parseBool(c.PostForm("lines")))
}

// Geocode handles GET /v1/geocode.
func (h *Handler) Geocode(c *gin.Context) {
	address := c.Query("address")
	if strings.TrimSpace(address) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address parameter is required"})
		return
	}

	result, err := h.referenceUC.Geocode(c.Request.Context(), address, c.Query("label"))
	if err != nil {
		c.JSON(geocodeStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) render(c *gin.Context, format string, response *usecase.RankResponse, lines bool) {
	ref := domain.Point{Name: response.Reference.Label, Lat: response.Reference.Lat, Lon: response.Reference.Lon}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "", "json":
		c.JSON(http.StatusOK, response)
		return
	case "csv":
		if err := table.WriteResultsCSV(&buf, response.Ranked); err != nil {
			h.fail(c, err)
			return
		}
		attachment(c, ResultFileBase+".csv")
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	case "xlsx":
		if err := table.WriteResultsXLSX(&buf, response.Ranked, "Hasil"); err != nil {
			h.fail(c, err)
			return
		}
		attachment(c, ResultFileBase+".xlsx")
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	case "geojson":
		if err := table.WriteGeoJSON(&buf, ref, response.Ranked, lines); err != nil {
			h.fail(c, err)
			return
		}
		c.Data(http.StatusOK, "application/geo+json", buf.Bytes())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown format %q (expected json, csv, xlsx or geojson)", format)})
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	h.logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("action: render | result: fail")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render result"})
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

func geocodeStatus(err error) int {
	switch {
	case errors.Is(err, usecase.ErrAddressNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrLookupUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
