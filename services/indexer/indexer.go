package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"seedchain/core/events"
	"seedchain/core/types"
	"seedchain/observability/logging"
)

// ErrDSNRequired is returned when no database is configured.
var ErrDSNRequired = errors.New("indexer: dsn required")

// Indexer journals committed events into sqlite. It implements
// events.Emitter so the node can fan committed events into it.
type Indexer struct {
	db       *gorm.DB
	logger   *slog.Logger
	heightFn func() uint64

	mu  sync.Mutex
	seq uint64
}

// Open connects to dsn and migrates the schema.
func Open(dsn string, log *slog.Logger) (*Indexer, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrDSNRequired
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open indexer: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate indexer: %w", err)
	}
	idx := &Indexer{
		db:       db,
		logger:   logging.Component(log, "indexer"),
		heightFn: func() uint64 { return 0 },
	}
	var last EventRecord
	res := db.Order("seq desc").Limit(1).Find(&last)
	if res.Error != nil {
		return nil, fmt.Errorf("load sequence: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		idx.seq = last.Seq
	}
	return idx, nil
}

// SetHeightFunc configures the height stamped on journaled events.
func (i *Indexer) SetHeightFunc(fn func() uint64) {
	if fn == nil {
		fn = func() uint64 { return 0 }
	}
	i.mu.Lock()
	i.heightFn = fn
	i.mu.Unlock()
}

// Emit implements events.Emitter. Write failures are logged and dropped;
// the chain state is authoritative.
func (i *Indexer) Emit(evt events.Event) {
	if i == nil || evt == nil {
		return
	}
	if err := i.Record(context.Background(), evt); err != nil {
		i.logger.Error("journal event", slog.String("type", evt.EventType()), slog.Any("error", err))
	}
}

// Record stores evt synchronously.
func (i *Indexer) Record(ctx context.Context, evt events.Event) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	row := EventRecord{
		Height: i.heightFn(),
		Seq:    i.seq + 1,
		Type:   evt.EventType(),
	}
	if typed, ok := evt.(*types.Event); ok && typed != nil {
		row.Attributes = typed.Attributes
		row.Target = typed.Attributes["target"]
	}
	if err := i.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	i.seq = row.Seq
	return nil
}

// Query filters the journal. Zero fields match everything.
type Query struct {
	Type   string
	Target string
	After  uint64
	Limit  int
}

const maxQueryLimit = 500

// Events returns journaled events in emission order.
func (i *Indexer) Events(ctx context.Context, q Query) ([]EventRecord, error) {
	tx := i.db.WithContext(ctx).Model(&EventRecord{}).Where("seq > ?", q.After)
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Target != "" {
		tx = tx.Where("target = ?", strings.ToLower(strings.TrimPrefix(q.Target, "0x")))
	}
	limit := q.Limit
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	var rows []EventRecord
	if err := tx.Order("seq asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Close releases the database handle.
func (i *Indexer) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
