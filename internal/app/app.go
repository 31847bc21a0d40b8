// Package app wires every component into a running process: the
// store, the domain services, the per-instrument cycle scheduler, and
// the HTTP control surface, supervised together under one errgroup.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"paperfx/internal/accounting"
	"paperfx/internal/config"
	"paperfx/internal/domain"
	"paperfx/internal/execution"
	"paperfx/internal/ingestion"
	"paperfx/internal/oms"
	"paperfx/internal/orchestrator"
	"paperfx/internal/retention"
	"paperfx/internal/risk"
	"paperfx/internal/store"
	"paperfx/internal/strategy"
	httpapi "paperfx/internal/transport/http"

	"github.com/shopspring/decimal"
)

// App holds every wired component for one running instance.
type App struct {
	cfg *config.Config
	log *zap.Logger

	store      *store.Store
	watcher    *config.Watcher
	ingestion  *ingestion.Service
	retention  *retention.Service
	scheduler  *Scheduler
	httpServer *httpapi.Server
}

// New builds every component described by cfg but starts nothing.
func New(cfg *config.Config, configPath string, log *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	if log == nil {
		log = zap.NewNop()
	}

	driver := store.DriverCGO
	st, err := store.Open(cfg.App.DBPath, driver)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	spreadPips := decimal.NewFromFloat(cfg.Pricing.SpreadPips)
	slippagePips := decimal.NewFromFloat(cfg.Pricing.SlippagePips)
	pipSize := decimal.NewFromFloat(cfg.Pricing.PipSize)
	contractSize := decimal.NewFromFloat(cfg.Pricing.ContractSize)
	leverage := decimal.NewFromFloat(cfg.Risk.Leverage)

	acctEngine := accounting.New(st, spreadPips, leverage, pipSize, contractSize)
	if _, err := acctEngine.EnsureAccount(context.Background(), decimal.NewFromFloat(cfg.Account.StartingBalance), cfg.Account.Currency); err != nil {
		return nil, fmt.Errorf("app: seed account: %w", err)
	}
	if err := seedRiskLimits(st, cfg); err != nil {
		return nil, fmt.Errorf("app: seed risk limits: %w", err)
	}

	riskEngine := risk.New(st, pipSize, contractSize)
	execEngine := execution.New(st, execution.Config{SpreadPips: spreadPips, SlippagePips: slippagePips, PipSize: pipSize})
	omsSvc := oms.New(st, riskEngine, oms.Config{
		MinQty:         decimal.NewFromFloat(cfg.Risk.LotStep),
		AllowedSymbols: map[string]struct{}{cfg.Instrument.Symbol: {}},
		Timeframe:      cfg.Instrument.Timeframe,
		SpreadPips:     spreadPips,
		PipSize:        pipSize,
	})

	strat, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return nil, fmt.Errorf("app: build strategy: %w", err)
	}

	orch := orchestrator.New(st, omsSvc, execEngine, acctEngine, riskEngine, strat, orchestrator.Config{
		CooldownCandles: cfg.Strategy.CooldownCandles,
		WindowSize:      cfg.Strategy.WindowSize,
		StrategyName:    cfg.Strategy.Name,
		Timeframe:       cfg.Instrument.Timeframe,
		SpreadPips:      spreadPips,
	}, log.Named("orchestrator"))

	scheduler := NewScheduler(orch, 64, log.Named("scheduler"))

	provider := ingestion.NewMockProvider(log.Named("ingestion.provider"))
	ingestSvc := ingestion.New(st, provider, ingestion.Config{
		OverlapCandles:      cfg.Ingestion.OverlapCandles,
		InitialBackfillDays: cfg.Ingestion.InitialBackfillDays,
		IntegrityWindowDays: cfg.Ingestion.IntegrityWindowDays,
	}, log.Named("ingestion"))

	retentionSvc := retention.New(st, cfg.Retention.Days, log.Named("retention"))

	var watcher *config.Watcher
	if configPath != "" {
		w, err := config.NewWatcher(configPath, log.Named("config.watcher"))
		if err != nil {
			return nil, fmt.Errorf("app: start config watcher: %w", err)
		}
		w.Subscribe(func(snap config.HotSnapshot) {
			retentionSvc.SetRetentionDays(snap.Retention.Days)
			limits := limitsFromConfig(&config.Config{Risk: snap.Risk})
			if err := st.SetRiskLimits(context.Background(), limits); err != nil {
				log.Error("apply hot-reloaded risk limits failed", zap.Error(err))
			}
		})
		watcher = w
	}

	httpSrv, err := httpapi.NewServer(httpapi.Config{
		Addr:           cfg.App.HTTPAddr,
		Symbol:         cfg.Instrument.Symbol,
		Timeframe:      cfg.Instrument.Timeframe,
		RequestTimeout: time.Duration(cfg.Control.RequestTimeoutSeconds) * time.Second,
		Store:          st,
		Ingestion:      ingestSvc,
		Retention:      retentionSvc,
		OMS:            omsSvc,
		Risk:           riskEngine,
		Accounting:     acctEngine,
		Cycles:         scheduler,
		SpreadPips:     cfg.Pricing.SpreadPips,
		Log:            log.Named("http"),
	})
	if err != nil {
		return nil, fmt.Errorf("app: build http server: %w", err)
	}

	return &App{
		cfg:        cfg,
		log:        log,
		store:      st,
		watcher:    watcher,
		ingestion:  ingestSvc,
		retention:  retentionSvc,
		scheduler:  scheduler,
		httpServer: httpSrv,
	}, nil
}

func seedRiskLimits(st *store.Store, cfg *config.Config) error {
	_, err := st.EnsureRiskLimits(context.Background(), limitsFromConfig(cfg))
	return err
}

func limitsFromConfig(cfg *config.Config) domain.RiskLimits {
	return domain.RiskLimits{
		AccountID:                 1,
		MaxOpenPositions:          cfg.Risk.MaxOpenPositions,
		MaxOpenPositionsPerSymbol: cfg.Risk.MaxOpenPositionsPerSymbol,
		MaxTotalNotional:          decimal.NewFromFloat(cfg.Risk.MaxTotalNotional),
		MaxSymbolNotional:         decimal.NewFromFloat(cfg.Risk.MaxSymbolNotional),
		RiskPerTradePct:           decimal.NewFromFloat(cfg.Risk.RiskPerTradePct),
		DailyLossLimitPct:         decimal.NewFromFloat(cfg.Risk.DailyLossLimitPct),
		DailyLossLimitAmount:      decimal.NewFromFloat(cfg.Risk.DailyLossLimitAmount),
		Leverage:                  decimal.NewFromFloat(cfg.Risk.Leverage),
		LotStep:                   decimal.NewFromFloat(cfg.Risk.LotStep),
	}
}

// Run supervises the scheduler, the ingestion/retention tickers, and
// the HTTP server under one errgroup: any one's failure cancels ctx for
// all the others.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app: not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.scheduler.Run(ctx)
	})

	group.Go(func() error {
		return a.httpServer.Start(ctx)
	})

	group.Go(func() error {
		return a.runIngestionLoop(ctx)
	})

	group.Go(func() error {
		return a.runRetentionLoop(ctx)
	})

	err := group.Wait()
	a.close()
	return err
}

func (a *App) runIngestionLoop(ctx context.Context) error {
	interval := time.Duration(a.cfg.Ingestion.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	symbol, tf := a.cfg.Instrument.Symbol, a.cfg.Instrument.Timeframe
	a.ingestAndRunCycle(ctx, symbol, tf)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.ingestAndRunCycle(ctx, symbol, tf)
		}
	}
}

// ingestAndRunCycle pulls the latest candles and, on success, submits a
// cycle for the newest one — ingestion is what actually drives the
// orchestrator forward in a running process.
func (a *App) ingestAndRunCycle(ctx context.Context, symbol, tf string) {
	result, err := a.ingestion.Ingest(ctx, symbol, tf)
	if err != nil {
		a.log.Error("scheduled ingest failed", zap.Error(err))
		return
	}
	if result.LatestOpenTime == nil {
		return
	}
	if _, err := a.scheduler.Submit(ctx, symbol, tf, *result.LatestOpenTime); err != nil {
		a.log.Error("cycle submit after ingest failed", zap.Error(err))
	}
}

func (a *App) runRetentionLoop(ctx context.Context) error {
	interval := time.Duration(a.cfg.Retention.PruneIntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := a.retention.Prune(ctx); err != nil {
				a.log.Error("scheduled prune failed", zap.Error(err))
			}
		}
	}
}

func (a *App) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}
