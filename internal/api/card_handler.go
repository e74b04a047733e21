package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/api/shared"
	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
	"github.com/phrazzld/progressor-api/internal/service"
	"github.com/phrazzld/progressor-api/internal/store"
)

// CardHandler handles card lifecycle HTTP requests.
type CardHandler struct {
	tracker service.TrackerService
	logger  *slog.Logger
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(tracker service.TrackerService, logger *slog.Logger) *CardHandler {
	if tracker == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("tracker service cannot be nil for CardHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CardHandler{
		tracker: tracker,
		logger:  logger.With(slog.String("component", "card_handler")),
	}
}

// CreateCard handles POST /api/cards.
func (h *CardHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateCardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	card, err := h.tracker.CreateCard(r.Context(), userID, service.CreateCardParams{
		Title:            req.Title,
		Description:      req.Description,
		EstimatedMinutes: req.EstimatedMinutes,
		ProjectID:        req.ProjectID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, cardToResponse(card))
}

// ListCards handles GET /api/cards. Optional query parameters: project_id,
// status and active.
func (h *CardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	filter, err := parseCardFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	cards, err := h.tracker.ListCards(r.Context(), userID, filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list cards")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cardsToResponse(cards))
}

func parseCardFilter(r *http.Request) (store.CardFilter, error) {
	var filter store.CardFilter
	q := r.URL.Query()

	if raw := q.Get("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, domain.NewValidationError("project_id", "has invalid format", domain.ErrValidation)
		}
		filter.ProjectID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status := domain.CardStatus(raw)
		if !status.IsValid() {
			return filter, domain.NewValidationError("status", "must be open, in_progress or done", domain.ErrValidation)
		}
		filter.Status = &status
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, domain.NewValidationError("active", "must be a boolean", domain.ErrValidation)
		}
		filter.Active = &active
	}
	return filter, nil
}

// GetActiveCard handles GET /api/cards/active. Responds 204 when nothing is tracked.
func (h *CardHandler) GetActiveCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	card, err := h.tracker.ActiveCard(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get active card")
		return
	}
	if card == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cardToResponse(card))
}

// GetCard handles GET /api/cards/{id}.
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	card, err := h.tracker.GetCard(r.Context(), userID, cardID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cardToResponse(card))
}

// UpdateCard handles PUT /api/cards/{id}.
func (h *CardHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateCardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	card, err := h.tracker.UpdateCard(r.Context(), userID, cardID, domain.CardUpdate{
		Title:            req.Title,
		Description:      req.Description,
		EstimatedMinutes: req.EstimatedMinutes,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update card")
		return
	}

	log.Debug("card updated", slog.String("card_id", cardID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, cardToResponse(card))
}

// DeleteCard handles DELETE /api/cards/{id}.
func (h *CardHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	if err := h.tracker.DeleteCard(r.Context(), userID, cardID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete card")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartCard handles POST /api/cards/{id}/start. Starting the card that is
// already being tracked responds 200 with already_active set.
func (h *CardHandler) StartCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	res, err := h.tracker.Start(r.Context(), userID, cardID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start card")
		return
	}

	status := http.StatusCreated
	if res.AlreadyActive {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, StartResponse{
		Card:          cardToResponse(res.Card),
		Entry:         entryToResponse(res.Entry),
		AlreadyActive: res.AlreadyActive,
		Stopped:       stopToResponse(res.Previous),
	})
}

// StopCard handles POST /api/cards/{id}/stop.
func (h *CardHandler) StopCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	res, err := h.tracker.Stop(r.Context(), userID, cardID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to stop card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stopToResponse(res))
}

// CompleteCard handles POST /api/cards/{id}/complete.
func (h *CardHandler) CompleteCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	res, err := h.tracker.Complete(r.Context(), userID, cardID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to complete card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CompleteResponse{
		Card:    cardToResponse(res.Card),
		Stopped: stopToResponse(res.Stopped),
		Awards:  res.Awards,
	})
}

// Reconcile handles POST /api/reconcile.
func (h *CardHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	res, err := h.tracker.Reconcile(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to reconcile tracked time")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, res)
}
