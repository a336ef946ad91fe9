package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lendingpool/core/events"
	"lendingpool/native/pool"
	"lendingpool/services/poold/config"
)

// Entry is one committed pool event as persisted in the journal.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence   uint64    `gorm:"index" json:"sequence"`
	Pool       string    `gorm:"size:128;index" json:"pool"`
	Type       string    `gorm:"size:64;index" json:"type"`
	Attributes string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName pins the journal table name.
func (Entry) TableName() string { return "pool_events" }

// Decoded returns the entry attributes.
func (e Entry) Decoded() (map[string]string, error) {
	attrs := map[string]string{}
	if e.Attributes == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("journal: decode attributes: %w", err)
	}
	return attrs, nil
}

// Open connects to the journal database selected by cfg and migrates the
// schema.
func Open(cfg config.JournalConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.JournalSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case config.JournalPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", cfg.Driver, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the journal schema.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

// Journal appends committed pool events to a SQL table. It implements
// events.Emitter so it can sit in the engine's emitter fanout.
type Journal struct {
	db     *gorm.DB
	pool   string
	logger *slog.Logger
	nowFn  func() time.Time
	seq    uint64
}

// New returns a journal writing events of the named pool. The sequence
// continues from the highest value already stored for the pool.
func New(db *gorm.DB, poolName string, log *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("journal: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	j := &Journal{db: db, pool: poolName, logger: log, nowFn: time.Now}
	row := db.Model(&Entry{}).Select("COALESCE(MAX(sequence), 0)").Where("pool = ?", poolName).Row()
	if err := row.Scan(&j.seq); err != nil {
		return nil, fmt.Errorf("journal: load sequence: %w", err)
	}
	return j, nil
}

// Emit implements events.Emitter. Events arrive after the engine committed, so
// a failed write is logged instead of being surfaced to the operation.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil {
		return
	}
	payload, ok := pool.Payload(evt)
	if !ok {
		return
	}
	encoded, err := json.Marshal(payload.Attributes)
	if err != nil {
		j.logger.Error("journal encode failed", slog.String("type", payload.Type), slog.Any("error", err))
		return
	}
	j.seq++
	entry := Entry{
		ID:         uuid.New(),
		Sequence:   j.seq,
		Pool:       j.pool,
		Type:       payload.Type,
		Attributes: string(encoded),
		CreatedAt:  j.nowFn().UTC(),
	}
	if err := j.db.Create(&entry).Error; err != nil {
		j.logger.Error("journal append failed",
			slog.String("type", payload.Type),
			slog.Uint64("sequence", entry.Sequence),
			slog.Any("error", err))
	}
}

// Filter narrows a journal listing.
type Filter struct {
	Type  string
	After uint64
	Limit int
}

const maxListLimit = 500

// List returns the pool's entries in sequence order.
func (j *Journal) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if j == nil {
		return nil, fmt.Errorf("journal: not configured")
	}
	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	query := j.db.WithContext(ctx).Where("pool = ? AND sequence > ?", j.pool, filter.After)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	var entries []Entry
	if err := query.Order("sequence ASC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	return entries, nil
}
