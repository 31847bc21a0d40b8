package httpapi

import (
	"context"
	"net/http"
	"time"

	"paperfx/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *handlers) registerRisk(g *gin.RouterGroup) {
	g.GET("/status", h.riskStatus)
	g.POST("/check", h.riskCheck)
}

func (h *handlers) riskStatus(c *gin.Context) {
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

	snap, err := h.risk.ComputeSnapshot(ctx, 1, symbol, tf, candle.OpenTime, decimal.NewFromFloat(h.spreadPips))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type riskCheckRequest struct {
	Symbol       string  `json:"symbol"`
	Timeframe    string  `json:"timeframe"`
	Side         string  `json:"side" binding:"required,oneof=BUY SELL"`
	Qty          string  `json:"qty" binding:"required"`
	StopLossPips *string `json:"stop_distance_pips,omitempty"`
}

func (h *handlers) riskCheck(c *gin.Context) {
	var req riskCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	qty, err := decimal.NewFromString(req.Qty)
	if err != nil {
		badRequest(c, "qty must be a decimal string")
		return
	}
	var stopPips *decimal.Decimal
	if req.StopLossPips != nil {
		d, err := decimal.NewFromString(*req.StopLossPips)
		if err != nil {
			badRequest(c, "stop_distance_pips must be a decimal string")
			return
		}
		stopPips = &d
	}
	symbol := h.symbolOr(req.Symbol)
	tf := h.timeframeOr(req.Timeframe)

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

	decision, err := h.risk.CheckOrder(ctx, 1, symbol, tf, domain.Side(req.Side), qty, stopPips, candle.OpenTime, decimal.NewFromFloat(h.spreadPips))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}
