package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/honorchat/server/internal/identity"
)

type updateProfileRequest struct {
	Name       string `json:"name,omitempty"`
	Password   string `json:"password,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// GetProfile returns the authenticated user's own profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("Profile lookup failed", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "server error")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"name":       user.Name,
		"profilePic": nilIfEmpty(user.AvatarURL),
	})
}

// UpdateProfile updates name, password, and avatar for the authenticated
// user. Absent fields are left unchanged.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("Profile lookup failed", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "server error")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Password != "" {
		hash, err := identity.HashPassword(req.Password)
		if err != nil {
			slog.Error("Password hash failed", "error", err, "user_id", userID)
			Error(w, http.StatusInternalServerError, "server error")
			return
		}
		user.PasswordHash = hash
	}
	if req.ProfilePic != "" {
		user.AvatarURL = req.ProfilePic
	}

	if err := h.repo.UpdateUser(r.Context(), user); err != nil {
		slog.Error("Profile update failed", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "server error")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"message": "profile updated successfully"})
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
