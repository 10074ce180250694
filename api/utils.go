package api

import (
	"encoding/json"
	"net/http"

	"github.com/sin100007-pixel/customer-qr-login/internal/logger"
)

// RespondWithError writes {"ok":false,"error":errMsg} plus any extra fields.
func RespondWithError(w http.ResponseWriter, status int, errMsg string, extra ...map[string]interface{}) {
	lg := logger.L()
	lg.Warn().Int("status", status).Msg(errMsg)
	resp := map[string]interface{}{"ok": false, "error": errMsg}
	for _, m := range extra {
		for k, v := range m {
			resp[k] = v
		}
	}
	RespondWithJSON(w, status, resp)
}

// RespondWithPayload writes {"ok":true} merged with payload.
func RespondWithPayload(w http.ResponseWriter, payload map[string]interface{}) {
	resp := map[string]interface{}{"ok": true}
	for k, v := range payload {
		resp[k] = v
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

// RespondWithJSON writes body as JSON with the given status.
func RespondWithJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		lg := logger.L()
		lg.Error().Err(err).Msg("encode response")
	}
}
