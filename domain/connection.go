// Package domain contains core concepts of the relay system.
// This file defines connection identities and states.
// No runtime, network, or UI logic should be added here.
package domain

// ConnectionID is the opaque token assigned to a connection at accept time.
// It is generated by the instance that owns the connection and never reused.
type ConnectionID string

// ParticipantID is the externally supplied identity of a client (e.g. a user
// id from the handshake query). It is distinct from the ConnectionID: a
// participant keeps the same ParticipantID across reconnections while every
// connection gets a fresh ConnectionID.
type ParticipantID string

// InstanceID identifies one relay process. Envelopes are tagged with the
// instance that published them so a direct message already delivered locally
// is not delivered a second time when it round-trips through the bus.
type InstanceID string

// ConnState tracks the lifecycle of a connection handle.
type ConnState int

const (
	StateOpen ConnState = iota
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}
