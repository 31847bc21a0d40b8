package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"paperfx/internal/domain"
	"paperfx/internal/orchestrator"
)

// cycleRequest asks the scheduler to run one orchestrator cycle for a
// specific candle. Requests for the engine's single instrument are
// serialized through one goroutine so two cycles never race over the
// same position and account rows.
type cycleRequest struct {
	symbol    string
	timeframe string
	candleTS  time.Time
	done      chan cycleResult
}

type cycleResult struct {
	report domain.RunReport
	err    error
}

// Scheduler serializes orchestrator cycles for one (symbol, timeframe)
// pair behind a buffered channel, and collapses concurrent duplicate
// requests for the identical candle via singleflight.
type Scheduler struct {
	orchestrator *orchestrator.Orchestrator
	log          *zap.Logger

	requests chan cycleRequest
	group    singleflight.Group
}

// NewScheduler builds a scheduler with a queue depth of backlog pending
// cycle requests.
func NewScheduler(o *orchestrator.Orchestrator, backlog int, log *zap.Logger) *Scheduler {
	if backlog <= 0 {
		backlog = 64
	}
	return &Scheduler{
		orchestrator: o,
		log:          log,
		requests:     make(chan cycleRequest, backlog),
	}
}

// Run drains the request queue until ctx is canceled. It is meant to be
// the body of one errgroup.Go goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.requests:
			report, err := s.orchestrator.RunCycle(ctx, req.symbol, req.timeframe, req.candleTS)
			if err != nil && s.log != nil {
				s.log.Error("scheduled cycle failed", zap.String("symbol", req.symbol), zap.Error(err))
			}
			req.done <- cycleResult{report: report, err: err}
		}
	}
}

// Submit enqueues a cycle and blocks until it runs (or ctx is canceled).
// Concurrent submissions for the identical (symbol, timeframe, candleTS)
// collapse into a single underlying cycle via singleflight, so a
// control-surface retry storm never runs the same candle twice.
func (s *Scheduler) Submit(ctx context.Context, symbol, timeframe string, candleTS time.Time) (domain.RunReport, error) {
	key := symbol + "|" + timeframe + "|" + candleTS.UTC().Format(time.RFC3339)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		req := cycleRequest{
			symbol:    symbol,
			timeframe: timeframe,
			candleTS:  candleTS,
			done:      make(chan cycleResult, 1),
		}
		select {
		case s.requests <- req:
		case <-ctx.Done():
			return cycleResult{}, ctx.Err()
		}
		select {
		case res := <-req.done:
			return res, res.err
		case <-ctx.Done():
			return cycleResult{}, ctx.Err()
		}
	})
	if err != nil {
		return domain.RunReport{}, err
	}
	return v.(cycleResult).report, nil
}
