package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/widechat/widechat/internal/identity"
	"github.com/widechat/widechat/internal/store"
)

type contextKey string

const userIDKey contextKey = "user_id"

// userID returns the authenticated subject stored by requireAuth.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// requireAuth resolves the bearer token to a user id and stores it on the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing_token", "authorization required")
			return
		}
		subject, err := s.issuer.Verify(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid_token", "token rejected")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, subject)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      store.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "username and email are required")
		return
	}

	hash, err := identity.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusBadRequest, "weak_password", err.Error())
		return
	}

	user := store.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(w, http.StatusConflict, "email_taken", "email already registered")
			return
		}
		respondStoreError(w, err)
		return
	}

	token, expiresAt, err := s.issuer.Issue(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	respondJSON(w, http.StatusCreated, authResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, err := s.store.UserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || !identity.CheckPassword(user.PasswordHash, req.Password) {
		// Same answer for unknown email and wrong password.
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
		return
	}

	token, expiresAt, err := s.issuer.Issue(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, ExpiresAt: expiresAt, User: user})
}
