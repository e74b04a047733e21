package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
	"github.com/phrazzld/progressor-api/internal/store"
)

const entryColumns = `id, card_id, user_id, start_time, end_time`

// TimeEntryStore implements the store.TimeEntryStore interface
// using a PostgreSQL database as the storage backend.
type TimeEntryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTimeEntryStore creates a new PostgreSQL implementation of the TimeEntryStore interface.
// If logger is nil, a default logger will be used.
func NewTimeEntryStore(db store.DBTX, logger *slog.Logger) *TimeEntryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TimeEntryStore{
		db:     db,
		logger: logger.With(slog.String("component", "time_entry_store")),
	}
}

var _ store.TimeEntryStore = (*TimeEntryStore)(nil)

func scanEntry(row rowScanner) (*domain.TimeEntry, error) {
	var (
		entry domain.TimeEntry
		end   sql.NullTime
	)
	if err := row.Scan(&entry.ID, &entry.CardID, &entry.UserID, &entry.StartTime, &end); err != nil {
		return nil, err
	}
	entry.StartTime = entry.StartTime.UTC()
	if end.Valid {
		t := end.Time.UTC()
		entry.EndTime = &t
	}
	return &entry, nil
}

// Insert implements store.TimeEntryStore.Insert.
// Returns store.ErrOpenEntryExists when the card already has an open entry.
func (s *TimeEntryStore) Insert(ctx context.Context, entry *domain.TimeEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `INSERT INTO time_entries (` + entryColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, query, entry.ID, entry.CardID, entry.UserID, entry.StartTime, entry.EndTime)
	if err != nil {
		log.Error("failed to insert time entry",
			slog.String("error", err.Error()),
			slog.String("entry_id", entry.ID.String()),
			slog.String("card_id", entry.CardID.String()))
		return MapError(err)
	}

	log.Debug("time entry inserted",
		slog.String("entry_id", entry.ID.String()),
		slog.String("card_id", entry.CardID.String()),
		slog.Bool("open", entry.IsOpen()))
	return nil
}

// Close implements store.TimeEntryStore.Close.
// Only open entries are updated; closed entries are immutable.
func (s *TimeEntryStore) Close(ctx context.Context, id uuid.UUID, end time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`UPDATE time_entries SET end_time = $2 WHERE id = $1 AND end_time IS NULL`, id, end)
	if err != nil {
		log.Error("failed to close time entry",
			slog.String("error", err.Error()),
			slog.String("entry_id", id.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTimeEntryNotFound)
}

// GetOpenByCard implements store.TimeEntryStore.GetOpenByCard.
func (s *TimeEntryStore) GetOpenByCard(ctx context.Context, cardID uuid.UUID) (*domain.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE card_id = $1 AND end_time IS NULL`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, cardID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get open time entry",
			slog.String("error", err.Error()),
			slog.String("card_id", cardID.String()))
		return nil, MapError(err)
	}
	return entry, nil
}

// Query implements store.TimeEntryStore.Query with the same overlap rule as
// store.EntryQuery.Matches.
func (s *TimeEntryStore) Query(ctx context.Context, q store.EntryQuery) ([]*domain.TimeEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		conditions []string
		args       []any
	)
	if q.UserID != uuid.Nil {
		args = append(args, q.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if q.CardID != uuid.Nil {
		args = append(args, q.CardID)
		conditions = append(conditions, fmt.Sprintf("card_id = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("%w: time entry query needs a user or card", store.ErrInvalidEntity)
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		conditions = append(conditions, fmt.Sprintf("start_time < $%d", len(args)))
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		conditions = append(conditions,
			fmt.Sprintf("(end_time IS NULL OR GREATEST(start_time, end_time) > $%d)", len(args)))
	}

	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY start_time, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query time entries", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	entries := []*domain.TimeEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating time entry rows", slog.String("error", err.Error()))
		return nil, fmt.Errorf("error iterating time entry rows: %w", err)
	}
	return entries, nil
}

// CountByCard implements store.TimeEntryStore.CountByCard.
func (s *TimeEntryStore) CountByCard(ctx context.Context, cardID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM time_entries WHERE card_id = $1`, cardID).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// DeleteByCard implements store.TimeEntryStore.DeleteByCard.
func (s *TimeEntryStore) DeleteByCard(ctx context.Context, cardID uuid.UUID) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM time_entries WHERE card_id = $1`, cardID)
	if err != nil {
		return 0, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
