package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/stellarcarbon/sorocarbon/core/events"
)

// ErrDSNRequired is returned when no database is configured.
var ErrDSNRequired = errors.New("indexer: dsn required")

// Store persists retirements and answers queries over them. It implements
// events.Emitter so it can subscribe to the host directly.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to dsn. postgres:// and postgresql:// URLs select PostgreSQL;
// anything else is treated as a SQLite DSN.
func Open(dsn string, log *slog.Logger) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrDSNRequired
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open database: %w", err)
	}
	return New(db, log)
}

// New wraps an open database and migrates the schema.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("indexer: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Store{db: db, logger: log.With(slog.String("component", "indexer"))}, nil
}

// Close releases the connection pool.
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

// Emit implements events.Emitter. Only retirements are indexed.
func (s *Store) Emit(evt events.Event) {
	retired, ok := evt.(events.SinkRetired)
	if !ok {
		return
	}
	if err := s.Record(context.Background(), retired); err != nil {
		s.logger.Error("index retirement", slog.String("receipt", retired.ReceiptID), slog.Any("error", err))
	}
}

// Record stores evt. Re-recording the same receipt is a no-op.
func (s *Store) Record(ctx context.Context, evt events.SinkRetired) error {
	if strings.TrimSpace(evt.ReceiptID) == "" {
		return errors.New("indexer: receipt id required")
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "receipt_id"}}, DoNothing: true}).
		Create(fromEvent(evt)).Error
}

// Filter narrows queries. Zero values match everything.
type Filter struct {
	Contract   string
	Funder     string
	Recipient  string
	ProjectID  string
	FromLedger uint32
	ToLedger   uint32
	Limit      int
	Offset     int
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.Contract != "" {
		q = q.Where("contract = ?", f.Contract)
	}
	if f.Funder != "" {
		q = q.Where("funder = ?", f.Funder)
	}
	if f.Recipient != "" {
		q = q.Where("recipient = ?", f.Recipient)
	}
	if f.ProjectID != "" {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	if f.FromLedger > 0 {
		q = q.Where("ledger >= ?", f.FromLedger)
	}
	if f.ToLedger > 0 {
		q = q.Where("ledger <= ?", f.ToLedger)
	}
	return q
}

// List returns retirements matching f in ledger order.
func (s *Store) List(ctx context.Context, f Filter) ([]Retirement, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&Retirement{})).Order("ledger ASC").Order("created_at ASC").Order("receipt_id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var out []Retirement
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("indexer: list: %w", err)
	}
	return out, nil
}

// Totals aggregates retirements matching f.
type Totals struct {
	Count  int64           `json:"count"`
	Amount int64           `json:"amount"`
	Tonnes decimal.Decimal `json:"tonnes"`
}

// Totals sums retirements matching f. Limit and Offset are ignored.
func (s *Store) Totals(ctx context.Context, f Filter) (Totals, error) {
	var row struct {
		Count  int64
		Amount int64
	}
	q := f.apply(s.db.WithContext(ctx).Model(&Retirement{}))
	if err := q.Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").Scan(&row).Error; err != nil {
		return Totals{}, fmt.Errorf("indexer: totals: %w", err)
	}
	return Totals{Count: row.Count, Amount: row.Amount, Tonnes: events.Tonnes(row.Amount)}, nil
}
