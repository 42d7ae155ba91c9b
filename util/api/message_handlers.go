package api

import (
	"net/http"

	"partyhub/chat"
	"partyhub/identity"
)

// MessageHandler exposes direct-message history over REST.
type MessageHandler struct {
	Router *chat.Router
	Users  *identity.Resolver
}

// GET /messages/{username1}/{username2}
func (h *MessageHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userA, err := h.Users.Resolve(r.PathValue("username1"))
	if err != nil {
		writeError(w, err)
		return
	}
	userB, err := h.Users.Resolve(r.PathValue("username2"))
	if err != nil {
		writeError(w, err)
		return
	}

	messages, err := h.Router.FetchHistory(userA, userB)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
