package runtime

import (
	"context"
	"relay-lab/domain"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type nopSink struct{}

func (nopSink) Consume(context.Context, domain.ServerFrame) error {
	return nil
}

func TestRegistry_Register_Anonymous(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := nopSink{}

	// Given no connection is registered
	req.Empty(registry.Connections)

	// When an anonymous connection registers
	id := registry.Register("", sink)

	// Then exactly one entry exists, addressable by its connection id only
	req.NotEmpty(id)
	req.Len(registry.Connections, 1)
	req.Empty(registry.Aliases)

	found, ok := registry.Lookup(string(id))
	req.True(ok)
	req.Equal(sink, found)
}

func TestRegistry_Register_WithParticipant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID := domain.ParticipantID(uuid.NewString())
	sink := nopSink{}

	// When a participant registers
	id := registry.Register(participantID, sink)

	// Then the connection resolves through both identifiers
	byConn, ok := registry.Lookup(string(id))
	req.True(ok)
	req.Equal(sink, byConn)

	byParticipant, ok := registry.Lookup(string(participantID))
	req.True(ok)
	req.Equal(sink, byParticipant)
}

func TestRegistry_Lookup_Absent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// When looking up an unknown identifier
	_, ok := registry.Lookup(uuid.NewString())

	// Then absence is reported, not an error
	req.False(ok)
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID := domain.ParticipantID(uuid.NewString())

	// Given a registered participant
	id := registry.Register(participantID, nopSink{})

	// When close and error both trigger removal
	first := registry.Unregister(id)
	second := registry.Unregister(id)

	// Then only the first call reports a removal
	req.True(first)
	req.False(second)
	req.Empty(registry.Connections)
	req.Empty(registry.Aliases)

	_, ok := registry.Lookup(string(participantID))
	req.False(ok)
}

func TestRegistry_Unregister_KeepsNewerAlias(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID := domain.ParticipantID(uuid.NewString())
	older := newCaptureSink()
	newer := newCaptureSink()

	// Given a participant that reconnected before its old teardown ran
	oldID := registry.Register(participantID, older)
	newID := registry.Register(participantID, newer)

	// When the old connection is finally unregistered
	req.True(registry.Unregister(oldID))

	// Then the alias still resolves to the newer connection
	found, ok := registry.Lookup(string(participantID))
	req.True(ok)
	req.Same(newer, found)

	found, ok = registry.Lookup(string(newID))
	req.True(ok)
	req.Same(newer, found)
}

func TestRegistry_Sinks_Snapshot(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given three open connections
	registry.Register("", nopSink{})
	registry.Register("", nopSink{})
	id := registry.Register("", nopSink{})

	// When one closes
	registry.Unregister(id)

	// Then the broadcast snapshot only contains the open ones
	req.Len(registry.Sinks(), 2)
	req.Equal(2, registry.Size())
}
