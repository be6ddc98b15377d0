package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tessera/internal/position"
)

// ErrNoSnapshot is returned by LoadSnapshot when the store holds no state yet.
var ErrNoSnapshot = errors.New("store: no snapshot")

// SQLiteStore persists engine snapshots and closed trades using Gorm + SQLite.
type SQLiteStore struct {
	db *gorm.DB
}

// Open initializes the sqlite database at path and runs migrations.
func Open(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SnapshotModel{}, &TradeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSnapshot replaces the single stored engine snapshot.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, version int, payload []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	model := SnapshotModel{
		ID:        1,
		Version:   version,
		Payload:   string(payload),
		UpdatedAt: time.Now().Unix(),
	}
	return s.db.WithContext(ctx).Save(&model).Error
}

// LoadSnapshot returns the stored engine snapshot, or ErrNoSnapshot when the
// database has never been written.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (version int, payload []byte, err error) {
	if s == nil || s.db == nil {
		return 0, nil, fmt.Errorf("store: not initialized")
	}
	var model SnapshotModel
	if err := s.db.WithContext(ctx).First(&model, 1).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, ErrNoSnapshot
		}
		return 0, nil, err
	}
	return model.Version, []byte(model.Payload), nil
}

// AppendTrade records a closed trade in the durable history.
func (s *SQLiteStore) AppendTrade(ctx context.Context, trade position.ClosedTrade) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	model := newTradeModel(trade)
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListTrades returns up to limit most recent closed trades, newest first.
func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]position.ClosedTrade, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	var models []TradeModel
	if err := s.db.WithContext(ctx).Order("exit_time DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	trades := make([]position.ClosedTrade, 0, len(models))
	for _, m := range models {
		trades = append(trades, m.toClosedTrade())
	}
	return trades, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
