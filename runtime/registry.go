package runtime

import (
	"relay-lab/contract"
	"relay-lab/domain"
	"sync"

	"github.com/google/uuid"
)

// Registry is the per-instance connection directory. It owns the mapping
// from connection and participant identifiers to live local sinks; an entry
// exists if and only if the underlying connection is open. All operations
// are purely in-memory, nothing under the lock touches the network.
type Registry struct {
	mu          sync.RWMutex
	Connections map[domain.ConnectionID]contract.EventSink
	Aliases     map[domain.ParticipantID]domain.ConnectionID
	owners      map[domain.ConnectionID]domain.ParticipantID
}

func NewRegistry() *Registry {
	return &Registry{
		Connections: make(map[domain.ConnectionID]contract.EventSink),
		Aliases:     make(map[domain.ParticipantID]domain.ConnectionID),
		owners:      make(map[domain.ConnectionID]domain.ParticipantID),
	}
}

// Register assigns a fresh ConnectionID to the sink and records it. When the
// participant identifier is known it is aliased to the new connection so a
// sender can address either identifier. At most one live connection per
// participant per instance: a second registration steals the alias.
func (r *Registry) Register(participantID domain.ParticipantID, sink contract.EventSink) domain.ConnectionID {
	id := domain.ConnectionID(uuid.NewString())

	r.mu.Lock()
	defer r.mu.Unlock()

	r.Connections[id] = sink
	if participantID != "" {
		r.Aliases[participantID] = id
		r.owners[id] = participantID
	}
	return id
}

// Lookup resolves an identifier to a local sink. The identifier may be a
// ConnectionID or a ParticipantID alias; absence is not an error, the
// recipient may simply be attached to another instance or offline.
func (r *Registry) Lookup(id string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if sink, ok := r.Connections[domain.ConnectionID(id)]; ok {
		return sink, true
	}
	if connID, ok := r.Aliases[domain.ParticipantID(id)]; ok {
		sink, ok := r.Connections[connID]
		return sink, ok
	}
	return nil, false
}

// Unregister removes the connection and its alias. It is idempotent: close
// and error may both fire for the same connection, only the first call
// reports a removal so teardown side effects run exactly once.
func (r *Registry) Unregister(id domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.Connections[id]; !ok {
		return false
	}
	delete(r.Connections, id)

	if owner, ok := r.owners[id]; ok {
		delete(r.owners, id)
		// The alias may already point at a newer connection of the same
		// participant, only remove it when it still targets this one.
		if r.Aliases[owner] == id {
			delete(r.Aliases, owner)
		}
	}
	return true
}

// Sinks snapshots every open local connection, for broadcast delivery.
func (r *Registry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.Connections))
	for _, sink := range r.Connections {
		sinks = append(sinks, sink)
	}
	return sinks
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Connections)
}
