package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/progressor-api/internal/api/shared"
	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/domain/rollup"
	"github.com/phrazzld/progressor-api/internal/service"
)

// MonthLayout is the format of the month query parameter.
const MonthLayout = "2006-01"

// StatsHandler serves the time rollups.
type StatsHandler struct {
	stats  service.StatsService
	logger *slog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(stats service.StatsService, logger *slog.Logger) *StatsHandler {
	if stats == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("stats service cannot be nil for StatsHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{
		stats:  stats,
		logger: logger.With(slog.String("component", "stats_handler")),
	}
}

// GetStats handles GET /api/stats. An optional as_of query parameter
// (RFC 3339) moves the end of the windows into the past.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var (
		stats *rollup.Stats
		err   error
	)
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			HandleAPIError(w, r, domain.NewValidationError("as_of", "must be an RFC 3339 timestamp", domain.ErrValidation), "")
			return
		}
		stats, err = h.stats.StatsAsOf(r.Context(), userID, asOf)
	} else {
		stats, err = h.stats.GetStats(r.Context(), userID)
	}
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute stats")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// GetDailyTotals handles GET /api/stats/daily?month=YYYY-MM.
func (h *StatsHandler) GetDailyTotals(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("month")
	month, err := time.Parse(MonthLayout, raw)
	if err != nil {
		HandleAPIError(w, r, domain.NewValidationError("month", "must look like 2025-03", domain.ErrValidation), "")
		return
	}

	days, err := h.stats.DailyTotals(r.Context(), userID, month.Year(), month.Month())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute daily totals")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, DailyTotalsResponse{Month: raw, Days: days})
}
