package api

import (
	"log/slog"
	"net/http"

	"github.com/honorchat/server/internal/domain"
	"github.com/samber/lo"
)

// userSummary is the directory's public view of an account. Credentials and
// email stay server-side.
type userSummary struct {
	UserID     string `json:"userid"`
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Search performs a case-insensitive substring lookup over user names and
// user IDs.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		Error(w, http.StatusBadRequest, "search query is required")
		return
	}

	users, err := h.repo.SearchUsers(r.Context(), query, h.searchLimit)
	if err != nil {
		slog.Error("User search failed", "error", err, "query", query)
		Error(w, http.StatusInternalServerError, "server error")
		return
	}

	results := lo.Map(users, func(u *domain.User, _ int) userSummary {
		return userSummary{
			UserID:     u.UserID,
			Name:       u.Name,
			ProfilePic: u.AvatarURL,
		}
	})

	JSON(w, http.StatusOK, results)
}
