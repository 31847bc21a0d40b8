package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *handlers) registerAccount(g *gin.RouterGroup) {
	g.GET("/status", h.accountStatus)
	g.POST("/recompute", h.accountRecompute)
}

func (h *handlers) accountStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.statusTimeout)
	defer cancel()

	account, err := h.store.GetAccount(ctx, nil)
	if err != nil {
		fail(c, err)
		return
	}
	snap, err := h.store.LatestAccountSnapshot(ctx, account.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "latest_snapshot": snap})
}

func (h *handlers) accountRecompute(c *gin.Context) {
	symbol := h.symbolOr(c.Query("symbol"))
	tf := h.timeframeOr(c.Query("tf"))

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
	if err := h.accounting.ProcessAccountingForCandle(ctx, *candle); err != nil {
		fail(c, err)
		return
	}

	account, err := h.store.GetAccount(ctx, nil)
	if err != nil {
		fail(c, err)
		return
	}
	snap, err := h.store.LatestAccountSnapshot(ctx, account.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "latest_snapshot": snap})
}
