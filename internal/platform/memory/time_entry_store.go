package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/store"
)

type entryStore struct {
	ex executor
}

var _ store.TimeEntryStore = (*entryStore)(nil)

func (s *entryStore) Insert(ctx context.Context, entry *domain.TimeEntry) error {
	return s.ex.write(ctx, func(st *state) error {
		if _, exists := st.entries[entry.ID]; exists {
			return store.ErrDuplicate
		}
		if _, ok := st.cards[entry.CardID]; !ok {
			return store.ErrInvalidEntity
		}
		if entry.IsOpen() {
			for _, other := range st.entries {
				if other.CardID == entry.CardID && other.IsOpen() {
					return store.ErrOpenEntryExists
				}
			}
		}
		st.entries[entry.ID] = entry.Clone()
		return nil
	})
}

func (s *entryStore) Close(ctx context.Context, id uuid.UUID, end time.Time) error {
	return s.ex.write(ctx, func(st *state) error {
		stored, ok := st.entries[id]
		if !ok || !stored.IsOpen() {
			return store.ErrTimeEntryNotFound
		}
		closed := stored.Clone()
		closed.EndTime = &end
		st.entries[id] = closed
		return nil
	})
}

func (s *entryStore) GetOpenByCard(ctx context.Context, cardID uuid.UUID) (*domain.TimeEntry, error) {
	var entry *domain.TimeEntry
	err := s.ex.read(ctx, func(st *state) error {
		for _, stored := range st.entries {
			if stored.CardID == cardID && stored.IsOpen() {
				entry = stored.Clone()
				return nil
			}
		}
		return nil
	})
	return entry, err
}

func (s *entryStore) Query(ctx context.Context, q store.EntryQuery) ([]*domain.TimeEntry, error) {
	entries := []*domain.TimeEntry{}
	err := s.ex.read(ctx, func(st *state) error {
		for _, stored := range st.entries {
			if q.Matches(stored) {
				entries = append(entries, stored.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b *domain.TimeEntry) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return entries, nil
}

func (s *entryStore) CountByCard(ctx context.Context, cardID uuid.UUID) (int, error) {
	count := 0
	err := s.ex.read(ctx, func(st *state) error {
		for _, stored := range st.entries {
			if stored.CardID == cardID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (s *entryStore) DeleteByCard(ctx context.Context, cardID uuid.UUID) (int, error) {
	removed := 0
	err := s.ex.write(ctx, func(st *state) error {
		for id, stored := range st.entries {
			if stored.CardID == cardID {
				delete(st.entries, id)
				removed++
			}
		}
		return nil
	})
	return removed, err
}
