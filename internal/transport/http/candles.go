package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"paperfx/internal/ingestion"

	"github.com/gin-gonic/gin"
)

func (h *handlers) registerCandles(g *gin.RouterGroup) {
	g.GET("/latest", h.candlesLatest)
	g.GET("", h.candlesRange)
	g.GET("/integrity", h.candlesIntegrity)
	g.POST("/admin/ingest", h.candlesIngest)
	g.POST("/admin/backfill", h.candlesBackfill)
	g.POST("/admin/prune", h.candlesPrune)
}

func (h *handlers) candlesLatest(c *gin.Context) {
	symbol := h.symbolOr(c.Query("symbol"))
	tf := h.timeframeOr(c.Query("tf"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.statusTimeout)
	defer cancel()

	candle, err := h.store.LatestCandle(ctx, symbol, tf)
	if err != nil {
		fail(c, err)
		return
	}
	if candle == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no candle stored for symbol/timeframe"})
		return
	}
	c.JSON(http.StatusOK, candle)
}

func (h *handlers) candlesRange(c *gin.Context) {
	symbol := h.symbolOr(c.Query("symbol"))
	tf := h.timeframeOr(c.Query("tf"))

	start, ok := parseOptionalTime(c, "start")
	if !ok {
		return
	}
	end, ok := parseOptionalTime(c, "end")
	if !ok {
		return
	}
	limit := 500
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.listTimeout)
	defer cancel()

	candles, err := h.store.RangeCandles(ctx, symbol, tf, start, end, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candles": candles, "count": len(candles)})
}

func (h *handlers) candlesIntegrity(c *gin.Context) {
	symbol := h.symbolOr(c.Query("symbol"))
	tf := h.timeframeOr(c.Query("tf"))
	days := 14
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "days must be a positive integer")
			return
		}
		days = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.listTimeout)
	defer cancel()

	report, err := ingestion.CheckIntegrity(ctx, h.store, symbol, tf, days)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type ingestRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

func (h *handlers) candlesIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		badRequest(c, err.Error())
		return
	}
	symbol := h.symbolOr(req.Symbol)
	tf := h.timeframeOr(req.Timeframe)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := h.ingestion.Ingest(ctx, symbol, tf)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type backfillRequest struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Start     time.Time `json:"start" binding:"required"`
	End       time.Time `json:"end" binding:"required"`
}

func (h *handlers) candlesBackfill(c *gin.Context) {
	var req backfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !req.End.After(req.Start) {
		badRequest(c, "end must be after start")
		return
	}
	symbol := h.symbolOr(req.Symbol)
	tf := h.timeframeOr(req.Timeframe)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	processed, err := h.ingestion.Backfill(ctx, symbol, tf, req.Start, req.End)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

func (h *handlers) candlesPrune(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := h.retention.Prune(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseOptionalTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		badRequest(c, key+" must be RFC3339")
		return nil, false
	}
	return &t, true
}
