package api

import (
	"net/http"
)

func handleListSessions(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SESSIONS_UNAVAILABLE", "session store is not configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": deps.Sessions.List()})
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SESSIONS_UNAVAILABLE", "session store is not configured", nil)
		return
	}
	id := r.PathValue("id")
	turns := deps.Sessions.Full(id)
	if turns == nil {
		writeError(r.Context(), w, http.StatusNotFound, "NOT_FOUND", "session "+id+" does not exist", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SESSIONS_UNAVAILABLE", "session store is not configured", nil)
		return
	}
	id := r.PathValue("id")
	if err := deps.Sessions.Remove(r.Context(), id); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "DELETE_FAILED", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "status": "deleted"})
}
