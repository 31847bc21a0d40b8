package httpapi

import (
	"time"

	"go.uber.org/zap"

	"paperfx/internal/accounting"
	"paperfx/internal/ingestion"
	"paperfx/internal/oms"
	"paperfx/internal/retention"
	"paperfx/internal/risk"
	"paperfx/internal/store"
)

// handlers holds every dependency the route groups need. The engine
// runs one instrument, so symbol/timeframe default query params when
// the caller omits them.
type handlers struct {
	store      *store.Store
	ingestion  *ingestion.Service
	retention  *retention.Service
	oms        *oms.Service
	risk       *risk.Engine
	accounting *accounting.Engine
	cycles     CycleRunner

	symbol     string
	timeframe  string
	spreadPips float64

	listTimeout   time.Duration
	statusTimeout time.Duration

	log *zap.Logger
}

func (h *handlers) symbolOr(q string) string {
	if q != "" {
		return q
	}
	return h.symbol
}

func (h *handlers) timeframeOr(q string) string {
	if q != "" {
		return q
	}
	return h.timeframe
}
