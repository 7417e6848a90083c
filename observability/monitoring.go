// Package observability aggregates runtime delivery counters for the relay.
package observability

import "sync/atomic"

// Stats is a point-in-time snapshot of the delivery counters.
type Stats struct {
	Published       uint64 `json:"published"`
	DeliveredLocal  uint64 `json:"delivered_local"`
	DroppedFrames   uint64 `json:"dropped_frames"`
	MalformedFrames uint64 `json:"malformed_frames"`
	PresenceEvents  uint64 `json:"presence_events"`
}

// Monitor keeps best-effort atomic counters. It is shared by the router,
// the presence tracker and the heartbeat worker; no locking, no precision
// guarantees across fields.
type Monitor struct {
	published       atomic.Uint64
	deliveredLocal  atomic.Uint64
	droppedFrames   atomic.Uint64
	malformedFrames atomic.Uint64
	presenceEvents  atomic.Uint64
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) Published()      { m.published.Add(1) }
func (m *Monitor) DeliveredLocal() { m.deliveredLocal.Add(1) }
func (m *Monitor) DroppedFrame()   { m.droppedFrames.Add(1) }
func (m *Monitor) MalformedFrame() { m.malformedFrames.Add(1) }
func (m *Monitor) PresenceEvent()  { m.presenceEvents.Add(1) }

func (m *Monitor) Snapshot() Stats {
	return Stats{
		Published:       m.published.Load(),
		DeliveredLocal:  m.deliveredLocal.Load(),
		DroppedFrames:   m.droppedFrames.Load(),
		MalformedFrames: m.malformedFrames.Load(),
		PresenceEvents:  m.presenceEvents.Load(),
	}
}
