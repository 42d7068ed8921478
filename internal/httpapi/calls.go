package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/widechat/widechat/internal/calls"
)

func (s *Server) handleInitiateCall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiverID string `json:"receiver_id"`
		CallType   string `json:"call_type"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ReceiverID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "receiver_id is required")
		return
	}
	record, delivered, err := s.calls.Initiate(r.Context(), userID(r), req.ReceiverID, req.CallType)
	if err != nil {
		if errors.Is(err, calls.ErrUnknownCallType) {
			respondError(w, http.StatusBadRequest, "invalid_call_type", err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"call":      record,
		"delivered": delivered,
	})
}

func (s *Server) handleCallResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	record, err := s.calls.Respond(r.Context(), userID(r), chi.URLParam(r, "id"), req.Action)
	if err != nil {
		switch {
		case errors.Is(err, calls.ErrNotParticipant):
			respondError(w, http.StatusForbidden, "not_participant", err.Error())
		case errors.Is(err, calls.ErrUnknownAction):
			respondError(w, http.StatusBadRequest, "invalid_action", err.Error())
		default:
			respondStoreError(w, err)
		}
		return
	}
	respondJSON(w, http.StatusOK, record)
}
