package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/progressor-api/internal/store"
)

// Repository implements store.Repository on PostgreSQL.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
	stores
}

var _ store.Repository = (*Repository)(nil)

// stores bundles the entity stores bound to one DBTX.
type stores struct {
	cards    *CardStore
	entries  *TimeEntryStore
	skills   *SkillStore
	projects *ProjectStore
	awards   *AwardStore
}

func newStores(db store.DBTX, logger *slog.Logger) stores {
	return stores{
		cards:    NewCardStore(db, logger),
		entries:  NewTimeEntryStore(db, logger),
		skills:   NewSkillStore(db, logger),
		projects: NewProjectStore(db, logger),
		awards:   NewAwardStore(db, logger),
	}
}

func (s stores) Cards() store.CardStore { return s.cards }
func (s stores) TimeEntries() store.TimeEntryStore { return s.entries }
func (s stores) Skills() store.SkillStore { return s.skills }
func (s stores) Projects() store.ProjectStore { return s.projects }
func (s stores) Awards() store.AwardStore { return s.awards }

// NewRepository creates a repository over an initialized connection pool.
// If logger is nil, a default logger will be used.
func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
		stores: newStores(db, logger),
	}
}

// InTx runs fn in a read-committed transaction. Rows read through
// Cards().GetForUpdate stay locked until the transaction ends.
func (r *Repository) InTx(ctx context.Context, fn store.UnitFn) error {
	return store.RunInTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, newStores(tx, r.logger))
	})
}

// ReadTx runs fn in a read-only repeatable-read transaction so every query
// observes the same snapshot.
func (r *Repository) ReadTx(ctx context.Context, fn store.UnitFn) error {
	return store.RunInTransactionWithOptions(ctx, r.db, store.ReadOnlySnapshot,
		func(ctx context.Context, tx *sql.Tx) error {
			return fn(ctx, newStores(tx, r.logger))
		})
}
