package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"StockLens/internal/calculator"
	"StockLens/internal/catalog"
	"StockLens/internal/cleaner"
	"StockLens/internal/logging"
	"StockLens/internal/model"
	"StockLens/internal/pipeline"
	"StockLens/internal/recorder"
	"StockLens/internal/report"
)

// Runner runs the pipeline for one ticker.
type Runner interface {
	Run(ctx context.Context, ticker string) (*pipeline.Result, error)
}

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	runner  Runner
	store   recorder.SnapshotStore
	catalog func() *catalog.Catalog
	metrics http.Handler
	logger  *logging.Logger
}

// NewHandlers creates the handlers. A nil metrics handler makes /metrics return 404.
func NewHandlers(runner Runner, store recorder.SnapshotStore, cat func() *catalog.Catalog, metrics http.Handler, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewSilentLogger()
	}
	if store == nil {
		store = recorder.NewNoopStore()
	}
	if cat == nil {
		cat = catalog.Default
	}
	return &Handlers{runner: runner, store: store, catalog: cat, metrics: metrics, logger: logger}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Metrics serves the Prometheus registry.
func (h *Handlers) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "metrics disabled"})
		return
	}
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// ListStocks returns the catalog with industries in display order.
func (h *Handlers) ListStocks(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog())
}

// DataRequest asks for one pipeline run.
type DataRequest struct {
	Ticker string `json:"ticker"`
}

// GetData runs the pipeline for the requested ticker.
func (h *Handlers) GetData(c *gin.Context) {
	var req DataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Ticker) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": pipeline.ErrEmptyTicker.Error()})
		return
	}

	res, err := h.runner.Run(c.Request.Context(), req.Ticker)
	if err != nil {
		h.writeRunError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handlers) writeRunError(c *gin.Context, err error) {
	var fetchErr *pipeline.FetchError
	switch {
	case errors.Is(err, cleaner.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": cleaner.ErrNoData.Error()})
	case errors.As(err, &fetchErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "market data unavailable: " + fetchErr.Err.Error()})
	case errors.Is(err, pipeline.ErrPersist):
		h.logger.Error().Err(err).Msg("snapshot persist failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store snapshot"})
	default:
		h.logger.Error().Err(err).Msg("pipeline run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// VolumeGroupsRequest posts a volume ranking back for clustering.
type VolumeGroupsRequest struct {
	Ticker        string                  `json:"ticker"`
	VolumeRanking []pipeline.RankedVolume `json:"volume_ranking"`
}

// VolumeGroups clusters the ranking's dates into spike windows.
func (h *Handlers) VolumeGroups(c *gin.Context) {
	var req VolumeGroupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	groups, err := pipeline.GroupRanking(req.VolumeRanking)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, calculator.ErrNoGroups) && !errors.Is(err, pipeline.ErrInvalidDate) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = g.Strings()
	}
	c.JSON(http.StatusOK, gin.H{
		"ticker":  req.Ticker,
		"groups":  out,
		"listing": report.FormatSpikeGroups(groups),
	})
}

type snapshotRow struct {
	Date    string   `json:"date"`
	Open    float64  `json:"open"`
	High    float64  `json:"high"`
	Low     float64  `json:"low"`
	Close   float64  `json:"close"`
	Volume  float64  `json:"volume"`
	SMA5    *float64 `json:"sma5"`
	SMA25   *float64 `json:"sma25"`
	SMA75   *float64 `json:"sma75"`
	Kairi25 *float64 `json:"kairi25"`
}

// GetSnapshot returns the persisted rows for a ticker.
func (h *Handlers) GetSnapshot(c *gin.Context) {
	ticker := c.Param("ticker")
	rows, err := h.store.Read(ticker)
	switch {
	case errors.Is(err, recorder.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for " + ticker})
		return
	case errors.Is(err, recorder.ErrInvalidTicker):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error().Str("ticker", ticker).Err(err).Msg("read snapshot failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read snapshot"})
		return
	}

	table, _ := h.store.TableName(ticker)
	out := make([]snapshotRow, len(rows))
	for i, r := range rows {
		out[i] = snapshotRow{
			Date:    r.Date.Format(model.DateLayout),
			Open:    r.Open,
			High:    r.High,
			Low:     r.Low,
			Close:   r.Close,
			Volume:  r.Volume,
			SMA5:    nullable(r.SMA5.Float64, r.SMA5.Valid),
			SMA25:   nullable(r.SMA25.Float64, r.SMA25.Valid),
			SMA75:   nullable(r.SMA75.Float64, r.SMA75.Valid),
			Kairi25: nullable(r.Kairi25.Float64, r.Kairi25.Valid),
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"ticker": ticker,
		"table":  table,
		"rows":   out,
	})
}

func nullable(v float64, valid bool) *float64 {
	if !valid {
		return nil
	}
	return &v
}
