package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"paperfx/internal/domain"
	"paperfx/internal/oms"
	"paperfx/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *handlers) registerOrders(g *gin.RouterGroup) {
	g.POST("/order", h.placeOrder)
	g.GET("/orders", h.listOrders)
	g.GET("/orders/:id", h.getOrder)
	g.POST("/orders/:id/cancel", h.cancelOrder)
}

type placeOrderRequest struct {
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side" binding:"required,oneof=BUY SELL"`
	Qty            string  `json:"qty" binding:"required"`
	StopLoss       *string `json:"stop_loss,omitempty"`
	TakeProfit     *string `json:"take_profit,omitempty"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

func (h *handlers) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	qty, err := decimal.NewFromString(req.Qty)
	if err != nil {
		badRequest(c, "qty must be a decimal string")
		return
	}

	placeReq := oms.PlaceRequest{
		Symbol:         h.symbolOr(req.Symbol),
		Side:           domain.Side(req.Side),
		Qty:            qty,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.StopLoss != nil {
		sl, err := decimal.NewFromString(*req.StopLoss)
		if err != nil {
			badRequest(c, "stop_loss must be a decimal string")
			return
		}
		placeReq.StopLoss = &sl
	}
	if req.TakeProfit != nil {
		tp, err := decimal.NewFromString(*req.TakeProfit)
		if err != nil {
			badRequest(c, "take_profit must be a decimal string")
			return
		}
		placeReq.TakeProfit = &tp
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	result, err := h.oms.Place(ctx, placeReq)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) listOrders(c *gin.Context) {
	opts := store.ListOrdersOpts{
		Symbol: c.Query("symbol"),
		Status: domain.OrderStatus(c.Query("status")),
		Limit:  500,
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

	orders, err := h.oms.List(ctx, opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (h *handlers) getOrder(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.statusTimeout)
	defer cancel()

	result, err := h.oms.Get(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) cancelOrder(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	result, err := h.oms.Cancel(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "id must be an integer")
		return 0, false
	}
	return id, true
}
