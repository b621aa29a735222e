package api

import (
	"net/http"

	"github.com/honorchat/server/internal/identity"
)

// Messages returns the ordered conversation between two users. The
// authenticated caller must be one of the two participants.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	requesterID := identity.UserIDFromContext(r.Context())
	userID := r.URL.Query().Get("userId")
	recipientID := r.URL.Query().Get("recipientId")

	messages, err := h.history.Conversation(r.Context(), requesterID, userID, recipientID)
	if err != nil {
		writeChatError(w, err)
		return
	}

	JSON(w, http.StatusOK, messages)
}
