package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/store"
)

type cardStore struct {
	ex executor
}

var _ store.CardStore = (*cardStore)(nil)

// checkCard enforces the references and the one-active-card-per-user rule.
func checkCard(st *state, card *domain.Card) error {
	if card.ProjectID != nil {
		if _, ok := st.projects[*card.ProjectID]; !ok {
			return fmt.Errorf("%w: project %s does not exist", store.ErrInvalidEntity, *card.ProjectID)
		}
	}
	if !card.IsActive {
		return nil
	}
	for id, other := range st.cards {
		if id != card.ID && other.UserID == card.UserID && other.IsActive {
			return store.ErrActiveCardExists
		}
	}
	return nil
}

func (s *cardStore) Create(ctx context.Context, card *domain.Card) error {
	if err := card.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return s.ex.write(ctx, func(st *state) error {
		if _, exists := st.cards[card.ID]; exists {
			return store.ErrDuplicate
		}
		if err := checkCard(st, card); err != nil {
			return err
		}
		st.cards[card.ID] = card.Clone()
		return nil
	})
}

func (s *cardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	var card *domain.Card
	err := s.ex.read(ctx, func(st *state) error {
		stored, ok := st.cards[id]
		if !ok {
			return store.ErrCardNotFound
		}
		card = stored.Clone()
		return nil
	})
	return card, err
}

func (s *cardStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	return s.GetByID(ctx, id)
}

func (s *cardStore) GetActive(ctx context.Context, userID uuid.UUID) (*domain.Card, error) {
	var card *domain.Card
	err := s.ex.read(ctx, func(st *state) error {
		for _, stored := range st.cards {
			if stored.UserID == userID && stored.IsActive {
				card = stored.Clone()
				return nil
			}
		}
		return nil
	})
	return card, err
}

func (s *cardStore) ListActive(ctx context.Context) ([]*domain.Card, error) {
	cards := []*domain.Card{}
	err := s.ex.read(ctx, func(st *state) error {
		for _, stored := range st.cards {
			if stored.IsActive {
				cards = append(cards, stored.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortCards(cards)
	return cards, nil
}

func (s *cardStore) List(ctx context.Context, filter store.CardFilter) ([]*domain.Card, error) {
	cards := []*domain.Card{}
	err := s.ex.read(ctx, func(st *state) error {
		for _, stored := range st.cards {
			if filter.Matches(stored) {
				cards = append(cards, stored.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortCards(cards)
	return cards, nil
}

func (s *cardStore) Update(ctx context.Context, card *domain.Card) error {
	if err := card.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return s.ex.write(ctx, func(st *state) error {
		if _, ok := st.cards[card.ID]; !ok {
			return store.ErrCardNotFound
		}
		if err := checkCard(st, card); err != nil {
			return err
		}
		st.cards[card.ID] = card.Clone()
		return nil
	})
}

func (s *cardStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.ex.write(ctx, func(st *state) error {
		if _, ok := st.cards[id]; !ok {
			return store.ErrCardNotFound
		}
		for _, entry := range st.entries {
			if entry.CardID == id {
				return store.ErrReferenced
			}
		}
		for awardID, award := range st.awards {
			if award.CardID == id {
				delete(st.awards, awardID)
			}
		}
		delete(st.cards, id)
		return nil
	})
}

func sortCards(cards []*domain.Card) {
	slices.SortFunc(cards, func(a, b *domain.Card) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
}

func compareIDs(a, b uuid.UUID) int {
	return slices.Compare(a[:], b[:])
}
