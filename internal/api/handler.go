// Package api provides HTTP handlers for the chat server API.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/honorchat/server/internal/chat"
	"github.com/honorchat/server/internal/identity"
	"github.com/honorchat/server/internal/store"
)

// Handler holds the dependencies shared by the HTTP endpoints.
type Handler struct {
	repo        store.Repository
	ids         *identity.Service
	history     *chat.HistoryService
	searchLimit int
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, ids *identity.Service, history *chat.HistoryService, searchLimit int) *Handler {
	return &Handler{
		repo:        repo,
		ids:         ids,
		history:     history,
		searchLimit: searchLimit,
	}
}

// RegisterPublic mounts the endpoints that do not require a credential.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/api/signup", h.Signup)
	r.Post("/api/login", h.Login)
	r.Get("/api/search", h.Search)
}

// RegisterProtected mounts the endpoints that run behind the identity
// middleware.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/api/messages", h.Messages)
	r.Get("/api/profile", h.GetProfile)
	r.Put("/api/profile", h.UpdateProfile)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// writeChatError maps the chat error taxonomy onto HTTP statuses.
func writeChatError(w http.ResponseWriter, err error) {
	var validationErr *chat.ValidationError
	var storageErr *chat.StorageError
	switch {
	case errors.As(err, &validationErr):
		Error(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, chat.ErrUnauthorized):
		Error(w, http.StatusForbidden, "requester is not a participant")
	case errors.As(err, &storageErr):
		Error(w, http.StatusInternalServerError, "storage unavailable")
	default:
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
