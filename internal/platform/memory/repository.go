package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/phrazzld/progressor-api/internal/store"
)

// ErrReadOnly is returned by writes attempted inside ReadTx.
var ErrReadOnly = errors.New("write attempted in read-only transaction")

// executor runs store operations against some state.
type executor interface {
	read(ctx context.Context, fn func(st *state) error) error
	write(ctx context.Context, fn func(st *state) error) error
}

// Repository is an in-memory implementation of store.Repository.
// It is safe for concurrent use.
type Repository struct {
	// writeMu serializes every mutation, inside or outside a transaction.
	writeMu sync.Mutex
	// mu guards st.
	mu     sync.RWMutex
	st     *state
	logger *slog.Logger
}

var _ store.Repository = (*Repository)(nil)

// NewRepository creates an empty repository.
// If logger is nil, slog.Default() is used.
func NewRepository(logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		st:     newState(),
		logger: logger.With(slog.String("component", "memory_repository")),
	}
}

func (r *Repository) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(r.st)
}

// write applies fn to a copy of the state so a failed operation leaves no trace.
func (r *Repository) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	work := r.st.clone()
	r.mu.RUnlock()

	if err := fn(work); err != nil {
		return err
	}

	r.mu.Lock()
	r.st = work
	r.mu.Unlock()
	return nil
}

// Cards returns the card store operating outside any transaction.
func (r *Repository) Cards() store.CardStore { return &cardStore{ex: r} }

// TimeEntries returns the time entry store operating outside any transaction.
func (r *Repository) TimeEntries() store.TimeEntryStore { return &entryStore{ex: r} }

// Skills returns the skill store operating outside any transaction.
func (r *Repository) Skills() store.SkillStore { return &skillStore{ex: r} }

// Projects returns the project store operating outside any transaction.
func (r *Repository) Projects() store.ProjectStore { return &projectStore{ex: r} }

// Awards returns the award store operating outside any transaction.
func (r *Repository) Awards() store.AwardStore { return &awardStore{ex: r} }

// InTx runs fn against a private copy of the state. The copy replaces the
// shared state only if fn succeeds. Writers are serialized for the duration.
func (r *Repository) InTx(ctx context.Context, fn store.UnitFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	tx := &txExecutor{st: r.st.clone()}
	r.mu.RUnlock()

	if err := fn(ctx, tx.store()); err != nil {
		r.logger.DebugContext(ctx, "discarded transaction", slog.String("error", err.Error()))
		return err
	}

	r.mu.Lock()
	r.st = tx.st
	r.mu.Unlock()
	return nil
}

// ReadTx runs fn against a snapshot of the state. Writes fail with ErrReadOnly.
func (r *Repository) ReadTx(ctx context.Context, fn store.UnitFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	snapshot := r.st.clone()
	r.mu.RUnlock()

	tx := &txExecutor{st: snapshot, readOnly: true}
	return fn(ctx, tx.store())
}

// txExecutor runs operations directly on a state owned by one unit of work.
type txExecutor struct {
	st       *state
	readOnly bool
}

func (t *txExecutor) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(t.st)
}

// write keeps the transaction state untouched when fn fails, matching a
// statement-level rollback.
func (t *txExecutor) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.readOnly {
		return ErrReadOnly
	}
	work := t.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	t.st = work
	return nil
}

func (t *txExecutor) store() store.Store { return &txStore{ex: t} }

type txStore struct {
	ex executor
}

func (s *txStore) Cards() store.CardStore { return &cardStore{ex: s.ex} }
func (s *txStore) TimeEntries() store.TimeEntryStore { return &entryStore{ex: s.ex} }
func (s *txStore) Skills() store.SkillStore { return &skillStore{ex: s.ex} }
func (s *txStore) Projects() store.ProjectStore { return &projectStore{ex: s.ex} }
func (s *txStore) Awards() store.AwardStore { return &awardStore{ex: s.ex} }
