package domain

// Client protocol frame types. The JSON field names below are the external
// contract and must not change without a protocol version bump.
const (
	FrameTypeMessage     = "message"
	FrameTypeBroadcast   = "broadcast"
	FrameTypeWelcome     = "welcome"
	FrameTypeOnlineUsers = "getOnlineUsers"
)

// ClientFrame is an inbound frame sent by a client over its connection.
// RecipientID is required only for direct messages.
type ClientFrame struct {
	Type        string `json:"type" validate:"required,oneof=message broadcast"`
	Message     string `json:"message" validate:"required"`
	RecipientID string `json:"recipientId" validate:"required_if=Type message"`
}

// ServerFrame is an outbound frame pushed to a client. A single shape covers
// welcome, presence pushes and relayed envelopes; unset fields are omitted.
type ServerFrame struct {
	Type        string   `json:"type"`
	Message     string   `json:"message,omitempty"`
	SenderID    string   `json:"senderId,omitempty"`
	RecipientID string   `json:"recipientId,omitempty"`
	ClientID    string   `json:"clientId,omitempty"`
	Users       []string `json:"users,omitempty"`
}

// NewWelcomeFrame is sent exactly once per connection, immediately after
// accept, carrying the identifier the client is addressable by.
func NewWelcomeFrame(id ConnectionID) ServerFrame {
	return ServerFrame{Type: FrameTypeWelcome, ClientID: string(id)}
}

// NewOnlineUsersFrame carries the full "online now" view after any presence
// change, local or remote.
func NewOnlineUsersFrame(users []string) ServerFrame {
	return ServerFrame{Type: FrameTypeOnlineUsers, Users: users}
}

// NewRelayedFrame forwards an envelope to a client, original shape preserved.
func NewRelayedFrame(e Envelope) ServerFrame {
	return ServerFrame{
		Type:        string(e.Kind),
		Message:     e.Message,
		SenderID:    e.SenderID,
		RecipientID: e.RecipientID,
	}
}
