package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/api/shared"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
)

// UserIDHeader identifies the caller. The tracker has no authentication;
// whoever sits in front of it is trusted to set the header.
const UserIDHeader = "X-User-ID"

// RequireUser rejects requests without a valid X-User-ID header and stores
// the parsed ID in the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if raw == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, UserIDHeader+" header required")
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil || userID == uuid.Nil {
			logger.FromContext(r.Context()).Debug("invalid user header", slog.String("value", raw))
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid "+UserIDHeader+" header")
			return
		}

		ctx := shared.WithUserID(r.Context(), userID)
		ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With(slog.String("user_id", userID.String())))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
