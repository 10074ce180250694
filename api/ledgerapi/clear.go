package ledgerapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/api"
	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

// ClearHandler handles POST /api/ledger-clear. The admin token is checked by
// the router.
func ClearHandler(s Store, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ledger.WipeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.Scope = strings.ToLower(strings.TrimSpace(req.Scope))
		req.DateFrom = strings.TrimSpace(req.DateFrom)
		req.DateTo = strings.TrimSpace(req.DateTo)
		req.CustomerName = strings.TrimSpace(req.CustomerName)
		if err := req.Validate(); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		n, err := s.Wipe(r.Context(), req)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "clear failed: "+err.Error())
			return
		}
		log.Info().Bool("audit", true).Str("scope", req.Scope).
			Str("date_from", req.DateFrom).Str("date_to", req.DateTo).
			Str("customer_name", req.CustomerName).Int64("deleted", n).
			Msg("ledger cleared")
		api.RespondWithPayload(w, map[string]interface{}{
			"scope":   req.Scope,
			"deleted": n,
		})
	}
}
