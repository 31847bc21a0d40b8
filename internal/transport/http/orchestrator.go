package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"paperfx/internal/domain"
	"paperfx/internal/store"

	"github.com/gin-gonic/gin"
)

func (h *handlers) registerOrchestrator(g *gin.RouterGroup) {
	g.POST("/run", h.orchestratorRun)
	g.GET("/runs", h.orchestratorRuns)
	g.GET("/runs/:id", h.orchestratorRun1)
}

type runRequest struct {
	Symbol    string     `json:"symbol"`
	Timeframe string     `json:"timeframe"`
	CandleTS  *time.Time `json:"candle_ts,omitempty"`
}

func (h *handlers) orchestratorRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		badRequest(c, err.Error())
		return
	}
	symbol := h.symbolOr(req.Symbol)
	tf := h.timeframeOr(req.Timeframe)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	candleTS := req.CandleTS
	if candleTS == nil {
		candle, err := h.store.LatestCandle(ctx, symbol, tf)
		if err != nil {
			fail(c, err)
			return
		}
		if candle == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no candle stored for symbol/timeframe"})
			return
		}
		candleTS = &candle.OpenTime
	}

	report, err := h.cycles.Submit(ctx, symbol, tf, *candleTS)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handlers) orchestratorRuns(c *gin.Context) {
	opts := store.ListRunReportsOpts{
		Symbol:    c.Query("symbol"),
		Timeframe: c.Query("tf"),
		Status:    domain.RunStatus(c.Query("status")),
		Limit:     200,
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		opts.Limit = n
	}
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "since must be RFC3339")
			return
		}
		opts.Since = &t
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.listTimeout)
	defer cancel()

	reports, err := h.store.ListRunReports(ctx, opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": reports, "count": len(reports)})
}

func (h *handlers) orchestratorRun1(c *gin.Context) {
	runID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.statusTimeout)
	defer cancel()

	report, err := h.store.GetRunReportByRunID(ctx, runID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
