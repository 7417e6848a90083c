//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"relay-lab/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the write side of one live connection. Consume must never
// block past its delivery budget: a slow client drops frames, it does not
// stall the router.
type EventSink interface {
	Consume(ctx context.Context, frame domain.ServerFrame) error
}

// BusHandler is invoked once per payload published on a subscribed channel,
// including payloads published by this same instance.
type BusHandler func(ctx context.Context, payload []byte)

// IBridge is the cross-instance fan-out bus. Publish is fire-and-forget:
// it never blocks on subscriber processing and never surfaces an error to
// the caller. Delivery is at most once per hop.
type IBridge interface {
	Publish(ctx context.Context, channel string, payload []byte)
	Subscribe(channel string, handler BusHandler)
}

type IRegistry interface {
	Register(participantID domain.ParticipantID, sink EventSink) domain.ConnectionID
	Lookup(id string) (EventSink, bool)
	Unregister(id domain.ConnectionID) bool
	Sinks() []EventSink
	Size() int
}

type IRouter interface {
	RouteInbound(ctx context.Context, sender domain.ConnectionID, frame domain.ClientFrame)
}

type IPresenceTracker interface {
	Connected(ctx context.Context, participantID domain.ParticipantID)
	Disconnected(ctx context.Context, participantID domain.ParticipantID)
	Online() []string
}

// IPresenceStore mirrors the presence directory into shared storage so a
// participant's hosting instance can be resolved without a bus round-trip.
// Best-effort only: losing entries is acceptable, the next presence event
// self-heals the view.
type IPresenceStore interface {
	Upsert(ctx context.Context, participantID domain.ParticipantID, instance domain.InstanceID) error
	Delete(ctx context.Context, participantID domain.ParticipantID) error
	Participants(ctx context.Context) ([]domain.ParticipantID, error)
}

type IRelayService interface {
	Connect(ctx context.Context, participantID domain.ParticipantID, sink EventSink) (domain.ConnectionID, error)
	Disconnect(ctx context.Context, id domain.ConnectionID, participantID domain.ParticipantID)
	HandleFrame(ctx context.Context, sender domain.ConnectionID, raw []byte) error
}
