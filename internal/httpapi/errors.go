package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/notesync/core/internal/syncerr"
)

// errorResponse is the wire shape of a failed /sync call (spec §4.3.6,
// §6.1). error_code is empty for kinds syncerr.Code does not recognize,
// in which case the client should treat it as an opaque server error.
type errorResponse struct {
	Error         string `json:"error"`
	ErrorCode     string `json:"error_code,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}

// writeError maps a synctx/syncerr failure to the HTTP status and wire
// error code spec §4.3.6 prescribes (409 lock held, 403 ownership, 401
// auth required, 500 everything else) and logs it server-side.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := syncerr.HTTPStatus(err)
	code := syncerr.Code(err)

	log.Ctx(r.Context()).Error().Err(err).Int("status", status).Str("error_code", code).Msg("sync request failed")

	writeJSON(w, status, errorResponse{
		Error:         err.Error(),
		ErrorCode:     code,
		CorrelationID: GetCorrelationID(r.Context()),
	})
}
