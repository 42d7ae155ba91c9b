// Package chat persists chat messages and routes them to the connected
// sockets of their recipients. Delivery is fire-and-forget over presence:
// only storage is durable, a push to an offline user is silently skipped.
package chat

import (
	"fmt"

	apperrors "partyhub/errors"
	"partyhub/groups"
	"partyhub/identity"
	"partyhub/models"
	"partyhub/presence"
)

type Router struct {
	store    *Store
	groups   *groups.Store
	users    *identity.Resolver
	presence *presence.Registry
}

func NewRouter(store *Store, groupStore *groups.Store, users *identity.Resolver, registry *presence.Registry) *Router {
	return &Router{store: store, groups: groupStore, users: users, presence: registry}
}

// SendDirect persists a direct message and pushes it to the recipient's
// connection and back to the sender's own connection for UI echo.
func (r *Router) SendDirect(senderID int64, recipientHandle, body string) (*models.Message, error) {
	if body == "" {
		return nil, fmt.Errorf("message body cannot be empty: %w", apperrors.ErrValidation)
	}

	recipientID, err := r.users.Resolve(recipientHandle)
	if err != nil {
		return nil, err
	}

	msg, err := r.store.InsertDirect(senderID, recipientID, body)
	if err != nil {
		return nil, err
	}

	envelope := models.WSMessage{Type: models.WSTypeReceiveMessage, Data: msg}
	r.presence.Push(senderID, envelope)
	if recipientID != senderID {
		r.presence.Push(recipientID, envelope)
	}
	return msg, nil
}

// SendToGroup persists a group message and fans it out to every online
// member of the group's mirrored membership. The sender receives the push
// only by being a member, same as everyone else.
func (r *Router) SendToGroup(senderID int64, groupName, body string) (*models.Message, error) {
	if body == "" {
		return nil, fmt.Errorf("message body cannot be empty: %w", apperrors.ErrValidation)
	}

	group, err := r.groups.FindByName(groupName)
	if err != nil {
		return nil, err
	}

	msg, err := r.store.InsertGroup(senderID, group.ID, group.Name, body)
	if err != nil {
		return nil, err
	}

	members, err := r.groups.Members(group.ID)
	if err != nil {
		return nil, err
	}

	envelope := models.WSMessage{Type: models.WSTypeReceiveGroupMessage, Data: msg}
	for _, memberID := range members {
		r.presence.Push(memberID, envelope)
	}
	return msg, nil
}

// FetchHistory returns the direct conversation between two users, oldest
// first. Pure read.
func (r *Router) FetchHistory(userA, userB int64) ([]models.Message, error) {
	return r.store.HistoryBetween(userA, userB)
}
