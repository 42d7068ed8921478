package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/widechat/widechat/internal/store"
)

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("username"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "missing_query", "query parameter username is required")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	users, err := s.store.SearchUsers(r.Context(), query, userID(r), limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.UserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd store.ProfileUpdate
	if err := decodeJSON(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	id := userID(r)
	if err := s.store.UpdateProfile(r.Context(), id, upd); err != nil {
		respondStoreError(w, err)
		return
	}
	user, err := s.store.UserByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// handleSetOwnStatus lets a client flag itself online or offline explicitly,
// independent of its websocket session. The flag is written to the user
// document and mirrored into the presence marker.
func (s *Server) handleSetOwnStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online bool `json:"online"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	id := userID(r)
	now := time.Now().UTC()
	if err := s.store.SetUserOnline(r.Context(), id, req.Online, now); err != nil {
		respondStoreError(w, err)
		return
	}
	if req.Online {
		if err := s.marker.MarkOnline(r.Context(), id, now); err != nil {
			s.log.Warn().Err(err).Str("user_id", id).Msg("online marker write failed")
		}
	} else {
		if err := s.marker.MarkOffline(r.Context(), id, now); err != nil {
			s.log.Warn().Err(err).Str("user_id", id).Msg("offline marker write failed")
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":   id,
		"online":    req.Online,
		"last_seen": now,
	})
}

// handleUserStatus reports live presence: the registry answers for users with
// a session right now, the marker answers for everyone else.
func (s *Server) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.registry.Get(id); ok {
		respondJSON(w, http.StatusOK, map[string]any{"user_id": id, "online": true})
		return
	}
	status, err := s.marker.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":   id,
		"online":    false,
		"last_seen": status.LastSeen,
	})
}
