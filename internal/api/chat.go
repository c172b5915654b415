package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

// handleChat runs one turn. Failed turns still answer with 200; the
// error_kind field tells clients what went wrong. Non-2xx is reserved for
// malformed requests.
func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "CHAT_UNAVAILABLE", "chat service is not configured", nil)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION", "invalid JSON payload: "+err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION", "question is required", nil)
		return
	}

	result, err := deps.Chat.RunTurn(r.Context(), strings.TrimSpace(req.SessionID), req.Question)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
