package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/honorchat/server/internal/identity"
	"github.com/honorchat/server/internal/store"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a new account.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req identity.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.ids.Signup(r.Context(), req)
	if err != nil {
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &validationErrs):
			Error(w, http.StatusBadRequest, "all fields are required and must be well-formed")
		case errors.Is(err, store.ErrEmailTaken):
			Error(w, http.StatusBadRequest, "user with this email already exists")
		case errors.Is(err, store.ErrUserIDTaken):
			Error(w, http.StatusBadRequest, "user ID already exists")
		default:
			slog.Error("Signup failed", "error", err)
			Error(w, http.StatusInternalServerError, "server error")
		}
		return
	}

	slog.Info("User registered", "user_id", user.UserID)
	JSON(w, http.StatusCreated, map[string]string{"message": "user created successfully"})
}

// Login verifies credentials and issues a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.ids.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.Error("Login failed", "error", err)
		Error(w, http.StatusInternalServerError, "server error")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]string{
			"userId": user.UserID,
			"name":   user.Name,
			"email":  user.Email,
		},
	})
}
