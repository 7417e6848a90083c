package domain

// PresenceAction is the verb carried on the userStatus channel.
type PresenceAction string

const (
	ActionConnect    PresenceAction = "connect"
	ActionDisconnect PresenceAction = "disconnect"
)

// PresenceEvent is the unit published on the userStatus channel whenever a
// participant connects to or disconnects from any instance.
type PresenceEvent struct {
	UserID ParticipantID  `json:"userId"`
	Action PresenceAction `json:"action"`
}

// PresenceStatus is the per-participant state rebuilt from the event stream.
// A participant is Unknown until its first event, then flips between Online
// and Offline with last-write-wins semantics.
type PresenceStatus int

const (
	StatusUnknown PresenceStatus = iota
	StatusOnline
	StatusOffline
)
