package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/notesync/core/internal/authgw"
	"github.com/notesync/core/internal/synctx"
)

// PostSync handles POST /sync: decode the request, run one C3 transaction
// for the authenticated user, and write the response (spec §6.1). Thin by
// design — all sync semantics live in internal/synctx.
func (s *Server) PostSync(w http.ResponseWriter, r *http.Request) {
	userID := authgw.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req synctx.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("invalid sync request body")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	req.DeviceLabel = r.Header.Get("User-Agent")

	resp, err := s.Transactor.Sync(r.Context(), userID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
