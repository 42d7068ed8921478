// Package httpapi exposes the REST surface and the realtime websocket
// gateway.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/widechat/widechat/internal/calls"
	"github.com/widechat/widechat/internal/chat"
	"github.com/widechat/widechat/internal/config"
	"github.com/widechat/widechat/internal/identity"
	"github.com/widechat/widechat/internal/media"
	"github.com/widechat/widechat/internal/observability"
	"github.com/widechat/widechat/internal/presence"
	"github.com/widechat/widechat/internal/signaling"
	"github.com/widechat/widechat/internal/store"
)

// Deps bundles the collaborators the server routes requests to.
type Deps struct {
	Registry *presence.Registry
	Marker   presence.Marker
	Relay    *signaling.Relay
	Calls    *calls.Service
	Chat     *chat.Service
	Store    store.Store
	Issuer   *identity.Issuer
	Media    media.Storage
	MediaDir string
	Metrics  *observability.Metrics
	Log      zerolog.Logger
}

type Server struct {
	cfg      config.Config
	registry *presence.Registry
	marker   presence.Marker
	relay    *signaling.Relay
	calls    *calls.Service
	chat     *chat.Service
	store    store.Store
	issuer   *identity.Issuer
	media    media.Storage
	mediaDir string
	metrics  *observability.Metrics
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, d Deps) *Server {
	return &Server{
		cfg:      cfg,
		registry: d.Registry,
		marker:   d.Marker,
		relay:    d.Relay,
		calls:    d.Calls,
		chat:     d.Chat,
		store:    d.Store,
		issuer:   d.Issuer,
		media:    d.Media,
		mediaDir: d.MediaDir,
		metrics:  d.Metrics,
		log:      d.Log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/auth/register", s.handleRegister)
	r.Post("/v1/auth/login", s.handleLogin)

	if s.mediaDir != "" {
		fs := http.FileServer(http.Dir(s.mediaDir))
		r.Handle("/media/*", http.StripPrefix("/media/", fs))
	}

	// Token is carried as a query parameter on the websocket route; browsers
	// cannot set headers on the upgrade request.
	r.Get("/v1/ws", s.handleWS)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/v1/users/search", s.handleSearchUsers)
		r.Get("/v1/users/{id}", s.handleGetUser)
		r.Put("/v1/users/profile", s.handleUpdateProfile)
		r.Put("/v1/users/status", s.handleSetOwnStatus)
		r.Get("/v1/users/{id}/status", s.handleUserStatus)

		r.Post("/v1/messages", s.handleSendMessage)
		r.Put("/v1/messages/{id}", s.handleEditMessage)
		r.Delete("/v1/messages/{id}", s.handleDeleteMessage)
		r.Post("/v1/messages/{id}/read", s.handleMarkRead)
		r.Post("/v1/messages/{id}/forward", s.handleForwardMessage)
		r.Post("/v1/broadcasts", s.handleBroadcast)

		r.Post("/v1/groups", s.handleCreateGroup)
		r.Post("/v1/groups/{id}/members", s.handleAddGroupMember)

		r.Post("/v1/calls", s.handleInitiateCall)
		r.Post("/v1/calls/{id}/response", s.handleCallResponse)

		r.Post("/v1/chat-requests", s.handleCreateChatRequest)
		r.Post("/v1/chat-requests/{id}/response", s.handleChatRequestResponse)

		r.Post("/v1/status", s.handlePostStatus)
		r.Get("/v1/status/{userID}", s.handleListStatuses)

		r.Post("/v1/upload", s.handleUpload)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"online_users": s.registry.OnlineCount(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondStoreError maps store sentinel errors onto HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrDuplicate):
		respondError(w, http.StatusConflict, "duplicate", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
