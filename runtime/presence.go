package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"relay-lab/contract"
	"relay-lab/domain"
	"relay-lab/observability"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// PresenceTracker maintains this instance's view of who is online from the
// stream of presence events, local and remote. The view is eventually
// consistent: another instance may briefly list a participant that just
// disconnected here. Last event wins.
type PresenceTracker struct {
	mu         sync.Mutex
	log        *slog.Logger
	instanceID domain.InstanceID
	registry   contract.IRegistry
	bridge     contract.IBridge
	store      contract.IPresenceStore
	monitor    *observability.Monitor
	statuses   map[domain.ParticipantID]domain.PresenceStatus
}

func NewPresenceTracker(log *slog.Logger, instanceID domain.InstanceID,
	registry contract.IRegistry, bridge contract.IBridge,
	store contract.IPresenceStore, monitor *observability.Monitor) *PresenceTracker {
	return &PresenceTracker{
		log:        log,
		instanceID: instanceID,
		registry:   registry,
		bridge:     bridge,
		store:      store,
		monitor:    monitor,
		statuses:   make(map[domain.ParticipantID]domain.PresenceStatus),
	}
}

// Seed rebuilds the directory from the shared store after a restart so the
// first online-users push is not empty on a fresh instance. Best-effort: a
// failed read just means the view heals on the next presence event.
func (p *PresenceTracker) Seed(ctx context.Context) {
	if p.store == nil {
		return
	}
	participants, err := p.store.Participants(ctx)
	if err != nil {
		p.log.Warn("Presence seed skipped", "error", err)
		return
	}

	p.mu.Lock()
	for _, id := range participants {
		p.statuses[id] = domain.StatusOnline
	}
	p.mu.Unlock()
}

// Connected runs on the local connect path: directory upsert, shared store
// mirror, then the presence event published for every instance (this one
// included, its own subscriber triggers the online-users push).
func (p *PresenceTracker) Connected(ctx context.Context, participantID domain.ParticipantID) {
	if participantID == "" {
		// Anonymous connections relay messages but stay out of presence,
		// mirroring the handshake contract.
		return
	}

	p.mu.Lock()
	p.statuses[participantID] = domain.StatusOnline
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.Upsert(ctx, participantID, p.instanceID); err != nil {
			p.log.Warn("Presence store upsert failed", "participant", participantID, "error", err)
		}
	}
	p.publish(ctx, domain.PresenceEvent{UserID: participantID, Action: domain.ActionConnect})
}

// Disconnected is the exactly-once teardown path; callers guard against
// duplicate close/error events before invoking it.
func (p *PresenceTracker) Disconnected(ctx context.Context, participantID domain.ParticipantID) {
	if participantID == "" {
		return
	}

	p.mu.Lock()
	p.statuses[participantID] = domain.StatusOffline
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.Delete(ctx, participantID); err != nil {
			p.log.Warn("Presence store delete failed", "participant", participantID, "error", err)
		}
	}
	p.publish(ctx, domain.PresenceEvent{UserID: participantID, Action: domain.ActionDisconnect})
}

// HandleBusEvent consumes one event from the userStatus channel, applies it
// with last-write-wins and pushes the recomputed online view to every open
// local connection.
func (p *PresenceTracker) HandleBusEvent(ctx context.Context, payload []byte) {
	var event domain.PresenceEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		p.log.Warn("Dropping malformed presence event", "error", err)
		return
	}
	if event.UserID == "" {
		return
	}
	p.monitor.PresenceEvent()

	p.mu.Lock()
	switch event.Action {
	case domain.ActionConnect:
		p.statuses[event.UserID] = domain.StatusOnline
	case domain.ActionDisconnect:
		p.statuses[event.UserID] = domain.StatusOffline
	default:
		p.mu.Unlock()
		p.log.Warn("Dropping presence event with unknown action", "action", event.Action)
		return
	}
	p.mu.Unlock()

	frame := domain.NewOnlineUsersFrame(p.Online())
	for _, sink := range p.registry.Sinks() {
		if err := sink.Consume(ctx, frame); err != nil {
			p.log.Warn("Online-users push dropped on slow connection", "error", err)
		}
	}
}

// Online returns the sorted identifiers of every participant currently
// believed online, across all instances.
func (p *PresenceTracker) Online() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	online := lo.PickByValues(p.statuses, []domain.PresenceStatus{domain.StatusOnline})
	users := lo.Map(lo.Keys(online), func(id domain.ParticipantID, _ int) string {
		return string(id)
	})
	sort.Strings(users)
	return users
}

func (p *PresenceTracker) publish(ctx context.Context, event domain.PresenceEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("Failed to encode presence event", "error", err)
		return
	}
	p.bridge.Publish(ctx, domain.ChannelUserStatus, payload)
}
