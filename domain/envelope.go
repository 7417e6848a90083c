package domain

// Bus channel names shared by every instance.
const (
	ChannelMessages   = "messages"
	ChannelUserStatus = "userStatus"
)

// MessageKind discriminates the two routing modes on the messages channel.
type MessageKind string

const (
	KindDirect    MessageKind = "message"
	KindBroadcast MessageKind = "broadcast"
)

// Envelope is the unit published on the messages channel. It is immutable
// once constructed and consumed exactly once by each instance's router.
// Field names are part of the wire contract with clients: a relayed message
// is the envelope forwarded verbatim.
type Envelope struct {
	Kind        MessageKind `json:"type"`
	Message     string      `json:"message"`
	SenderID    string      `json:"senderId"`
	RecipientID string      `json:"recipientId,omitempty"`
	Origin      InstanceID  `json:"originInstance,omitempty"`
}

// NewDirectEnvelope builds an envelope addressed to a single recipient.
func NewDirectEnvelope(sender ConnectionID, recipient, message string, origin InstanceID) Envelope {
	return Envelope{
		Kind:        KindDirect,
		Message:     message,
		SenderID:    string(sender),
		RecipientID: recipient,
		Origin:      origin,
	}
}

// NewBroadcastEnvelope builds an envelope addressed to every participant.
func NewBroadcastEnvelope(sender ConnectionID, message string, origin InstanceID) Envelope {
	return Envelope{
		Kind:     KindBroadcast,
		Message:  message,
		SenderID: string(sender),
		Origin:   origin,
	}
}
