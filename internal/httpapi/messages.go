package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/widechat/widechat/internal/chat"
)

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var in chat.SendInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	msg, err := s.chat.Send(r.Context(), userID(r), in)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			respondError(w, http.StatusBadRequest, "empty_message", err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	msg, err := s.chat.Edit(r.Context(), userID(r), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNotSender):
			respondError(w, http.StatusForbidden, "not_sender", err.Error())
		case errors.Is(err, chat.ErrEmptyMessage):
			respondError(w, http.StatusBadRequest, "empty_message", err.Error())
		default:
			respondStoreError(w, err)
		}
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	forEveryone := r.URL.Query().Get("for_everyone") == "true"
	err := s.chat.Delete(r.Context(), userID(r), chi.URLParam(r, "id"), forEveryone)
	if err != nil {
		if errors.Is(err, chat.ErrNotSender) {
			respondError(w, http.StatusForbidden, "not_sender", err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true, "for_everyone": forEveryone})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.MarkRead(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForwardMessage(w http.ResponseWriter, r *http.Request) {
	var in chat.ForwardInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	msg, err := s.chat.Forward(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		if errors.Is(err, chat.ErrMessageDeleted) {
			respondError(w, http.StatusGone, "message_deleted", err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var in chat.BroadcastInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sent, err := s.chat.Broadcast(r.Context(), userID(r), in)
	if err != nil {
		if errors.Is(err, chat.ErrNoRecipients) || errors.Is(err, chat.ErrEmptyMessage) {
			respondError(w, http.StatusBadRequest, "invalid_broadcast", err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"messages": sent})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var in chat.GroupInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	group, err := s.chat.CreateGroup(r.Context(), userID(r), in)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_group", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, group)
}

func (s *Server) handleAddGroupMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	err := s.chat.AddMember(r.Context(), userID(r), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		if errors.Is(err, chat.ErrNotAdmin) {
			respondError(w, http.StatusForbidden, "not_admin", err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateChatRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiverID string `json:"receiver_id"`
		Message    string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ReceiverID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "receiver_id is required")
		return
	}
	created, err := s.chat.RequestChat(r.Context(), userID(r), req.ReceiverID, req.Message)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleChatRequestResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	err := s.chat.RespondChatRequest(r.Context(), userID(r), chi.URLParam(r, "id"), req.Action)
	if err != nil {
		if errors.Is(err, chat.ErrBadAction) {
			respondError(w, http.StatusBadRequest, "invalid_action", err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostStatus(w http.ResponseWriter, r *http.Request) {
	var in chat.StatusInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	post, err := s.chat.PostStatus(r.Context(), userID(r), in)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, post)
}

func (s *Server) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	posts, err := s.chat.StatusesOf(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"statuses": posts})
}
