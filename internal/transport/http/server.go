// Package httpapi is the engine's control surface: candle queries and
// admin ingestion, order placement, risk and account views, and the
// orchestrator/strategy drive endpoints, all over gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"paperfx/internal/accounting"
	"paperfx/internal/domain"
	"paperfx/internal/ingestion"
	"paperfx/internal/oms"
	"paperfx/internal/retention"
	"paperfx/internal/risk"
	"paperfx/internal/store"

	"github.com/gin-gonic/gin"
)

// Server wraps the gin engine with graceful start/stop.
type Server struct {
	addr   string
	router *gin.Engine
	log    *zap.Logger
}

// CycleRunner drives one orchestrator cycle. It is satisfied by the
// process's scheduler, which serializes cycles per (symbol, timeframe)
// and collapses duplicate requests — the control surface never talks
// to the orchestrator directly so a manual /orchestrator/run can never
// race a scheduled cycle over the same candle.
type CycleRunner interface {
	Submit(ctx context.Context, symbol, timeframe string, candleTS time.Time) (domain.RunReport, error)
}

// Config wires every service the control surface fronts. The engine
// runs a single instrument, so every dependency here is a singleton
// rather than a per-symbol registry.
type Config struct {
	Addr           string
	Symbol         string
	Timeframe      string
	RequestTimeout time.Duration

	Store      *store.Store
	Ingestion  *ingestion.Service
	Retention  *retention.Service
	OMS        *oms.Service
	Risk       *risk.Engine
	Accounting *accounting.Engine
	Cycles     CycleRunner
	SpreadPips float64

	Log *zap.Logger
}

// NewServer builds the engine with every route group registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{
		store:         cfg.Store,
		ingestion:     cfg.Ingestion,
		retention:     cfg.Retention,
		oms:           cfg.OMS,
		risk:          cfg.Risk,
		accounting:    cfg.Accounting,
		cycles:        cfg.Cycles,
		symbol:        cfg.Symbol,
		timeframe:     cfg.Timeframe,
		spreadPips:    cfg.SpreadPips,
		listTimeout:   2 * time.Second,
		statusTimeout: 800 * time.Millisecond,
		log:           log,
	}
	h.registerCandles(router.Group("/v1/candles"))
	h.registerOrders(router.Group("/paper"))
	h.registerRisk(router.Group("/v6/risk"))
	h.registerAccount(router.Group("/v7/account"))
	h.registerOrchestrator(router.Group("/orchestrator"))
	h.registerStrategy(router.Group("/strategy"))

	return &Server{addr: cfg.Addr, router: router, log: log}, nil
}

// Start runs the server until ctx is canceled or ListenAndServe fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		log.Debug("http request",
			zap.String("method", method),
			zap.String("path", fullPath),
			zap.Int("status", status),
			zap.String("client_ip", client),
			zap.Duration("dur", dur),
		)
	}
}
