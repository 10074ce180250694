package ledgerapi

import (
	"context"
	"net/http"
	"time"

	"github.com/sin100007-pixel/customer-qr-login/api"
)

const pingTimeout = 3 * time.Second

// HealthHandler reports whether the store answers.
func HealthHandler(s Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			api.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
		api.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
