package httpapi

import (
	"context"
	"net/http"
	"time"

	"paperfx/internal/strategy"

	"github.com/gin-gonic/gin"
)

func (h *handlers) registerStrategy(g *gin.RouterGroup) {
	g.GET("/strategies", h.strategyCatalog)
	g.POST("/run", h.strategyRun)
}

func (h *handlers) strategyCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": strategy.Catalog()})
}

type strategyRunRequest struct {
	Name       string             `json:"name" binding:"required"`
	Params     map[string]float64 `json:"params,omitempty"`
	Symbol     string             `json:"symbol,omitempty"`
	Timeframe  string             `json:"timeframe,omitempty"`
	WindowSize int                `json:"window_size,omitempty"`
}

// strategyRun dry-runs the named strategy against the stored window
// ending at the latest candle, without placing an order or persisting
// a run report.
func (h *handlers) strategyRun(c *gin.Context) {
	var req strategyRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	strat, err := strategy.New(req.Name, req.Params)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	symbol := h.symbolOr(req.Symbol)
	tf := h.timeframeOr(req.Timeframe)
	windowSize := req.WindowSize
	if windowSize <= 0 {
		windowSize = strat.MinimumCandles()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
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

	window, err := h.store.WindowEndingAt(ctx, symbol, tf, candle.OpenTime, windowSize)
	if err != nil {
		fail(c, err)
		return
	}

	intent := strat.ComputeIntent(window)
	c.JSON(http.StatusOK, intent)
}
