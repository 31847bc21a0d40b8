// Package store is the durable persistence layer for every entity in
// SPEC_FULL.md §3: candles, the account singleton, orders, fills, netting
// positions, trades, snapshots, risk limits, daily equity baselines, and
// run reports. It is a single gorm-backed SQLite store, the same physical
// shape as the teacher's gormstore package (WAL journal, busy_timeout DSN
// pragma, clause.OnConflict upserts, one transaction per mutating call).
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gormmodel "paperfx/internal/store/model"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	modernsqlite "modernc.org/sqlite"
)

func init() {
	// Registering modernc.org/sqlite's driver lets tests (and CGO_ENABLED=0
	// builds) open the same DSN shape without the cgo-based mattn driver.
	_ = modernsqlite.Driver{}
}

// Store is the engine's single persistence handle.
type Store struct {
	db *gorm.DB
}

// Driver selects which sqlite driver backs the store.
type Driver string

const (
	// DriverCGO uses gorm.io/driver/sqlite (mattn/go-sqlite3), the
	// production default.
	DriverCGO Driver = "cgo"
	// DriverPure uses modernc.org/sqlite, a pure-Go driver suitable for
	// CGO_ENABLED=0 test runs and CI.
	DriverPure Driver = "pure"
)

// Open opens (creating if absent) the SQLite file at path and runs
// AutoMigrate for every model. Pass ":memory:" for an ephemeral store.
func Open(path string, driver Driver) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: path must not be empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared&_pragma=busy_timeout(5000)"
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPure:
		dialector = gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	default:
		dialector = gormsqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	models := []interface{}{
		&gormmodel.CandleModel{},
		&gormmodel.AccountModel{},
		&gormmodel.OrderModel{},
		&gormmodel.FillModel{},
		&gormmodel.PositionModel{},
		&gormmodel.TradeModel{},
		&gormmodel.AccountSnapshotModel{},
		&gormmodel.RiskLimitsModel{},
		&gormmodel.DailyEquityModel{},
		&gormmodel.RunReportModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("store: automigrate: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

// GormDB exposes the underlying handle for packages that need raw
// transactions (e.g. orchestrator cycle composition across sub-stores).
func (s *Store) GormDB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
