package models

import "time"

// Message is immutable once created. Exactly one of RecipientID/GroupID is
// set: recipient for direct messages, group for group chat.
type Message struct {
	ID          string    `json:"id"`
	SenderID    int64     `json:"-"`
	RecipientID *int64    `json:"-"`
	GroupID     *string   `json:"group_id,omitempty"`
	Sender      string    `json:"sender_username"`
	Recipient   string    `json:"recipient_username,omitempty"`
	GroupName   string    `json:"group_name,omitempty"`
	Body        string    `json:"message"`
	CreatedAt   time.Time `json:"date"`
}

// WSMessage is the envelope for everything on the push channel, both
// directions.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Push channel event types.
const (
	WSTypeConnected           = "connected"
	WSTypeSendMessage         = "sendMessage"
	WSTypeReceiveMessage      = "receiveMessage"
	WSTypeReceiveGroupMessage = "receiveGroupMessage"
	WSTypeError               = "error"
)

// SendMessagePayload is the client→server send-intent. GroupName set means
// group delivery, otherwise RecipientUsername must name a user.
type SendMessagePayload struct {
	SenderUsername    string `json:"senderUsername"`
	RecipientUsername string `json:"recipientUsername,omitempty"`
	GroupName         string `json:"groupName,omitempty"`
	Message           string `json:"message"`
}

type WSErrorPayload struct {
	Message string `json:"message"`
}
