// Package runtime wires the per-instance delivery pipeline: connection
// registry, message router and presence tracker. It orchestrates fan-out
// without containing transport or storage logic.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"relay-lab/contract"
	"relay-lab/domain"
	"relay-lab/observability"
)

// Router classifies every inbound client message and decides whether to
// deliver locally, publish for cross-instance fan-out, or both.
//
// Delivery is best-effort, at most once per hop. A direct message whose
// recipient is co-located is delivered synchronously before RouteInbound
// returns, so same-instance traffic survives a bus outage.
type Router struct {
	log        *slog.Logger
	instanceID domain.InstanceID
	registry   contract.IRegistry
	bridge     contract.IBridge
	monitor    *observability.Monitor

	// Censor rewrites message content before it leaves the instance.
	// Nil means moderation is disabled.
	Censor func(string) string
}

func NewRouter(log *slog.Logger, instanceID domain.InstanceID,
	registry contract.IRegistry, bridge contract.IBridge,
	monitor *observability.Monitor) *Router {
	return &Router{
		log:        log,
		instanceID: instanceID,
		registry:   registry,
		bridge:     bridge,
		monitor:    monitor,
	}
}

// RouteInbound handles one frame read from a local client connection.
// The frame has already been parsed and validated by the relay service.
func (r *Router) RouteInbound(ctx context.Context, sender domain.ConnectionID, frame domain.ClientFrame) {
	content := frame.Message
	if r.Censor != nil {
		content = r.Censor(content)
	}

	switch frame.Type {
	case domain.FrameTypeMessage:
		envelope := domain.NewDirectEnvelope(sender, frame.RecipientID, content, r.instanceID)

		// Synchronous local delivery first: if the recipient is attached to
		// this instance the message must arrive even with the bus down.
		if sink, ok := r.registry.Lookup(frame.RecipientID); ok {
			r.deliver(ctx, sink, domain.NewRelayedFrame(envelope))
		}

		// Published regardless of local presence so whichever instance holds
		// the recipient can deliver. Our own subscriber recognises the origin
		// tag and skips re-delivery.
		r.publish(ctx, domain.ChannelMessages, envelope)

	case domain.FrameTypeBroadcast:
		envelope := domain.NewBroadcastEnvelope(sender, content, r.instanceID)
		r.publish(ctx, domain.ChannelMessages, envelope)

	default:
		r.monitor.MalformedFrame()
		r.log.Warn("Dropping frame of unknown type", "type", frame.Type, "sender", sender)
	}
}

// HandleBusMessage consumes one envelope from the messages channel. It runs
// on the bridge's subscriber goroutine and must never panic or block: a
// malformed payload is dropped and logged, an unknown recipient is a silent
// no-op.
func (r *Router) HandleBusMessage(ctx context.Context, payload []byte) {
	var envelope domain.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		r.monitor.MalformedFrame()
		r.log.Warn("Dropping malformed bus envelope", "error", err)
		return
	}

	switch envelope.Kind {
	case domain.KindDirect:
		// This instance already delivered synchronously when it published;
		// skipping here is what prevents a same-instance recipient from
		// receiving the message twice.
		if envelope.Origin == r.instanceID {
			return
		}
		if sink, ok := r.registry.Lookup(envelope.RecipientID); ok {
			r.deliver(ctx, sink, domain.NewRelayedFrame(envelope))
		}

	case domain.KindBroadcast:
		// Every open local connection receives the broadcast, the sender's
		// own instance included. Self-echo is part of the contract.
		frame := domain.NewRelayedFrame(envelope)
		for _, sink := range r.registry.Sinks() {
			r.deliver(ctx, sink, frame)
		}

	default:
		r.monitor.MalformedFrame()
		r.log.Warn(fmt.Sprintf("Dropping bus envelope of unknown kind %q", envelope.Kind))
	}
}

func (r *Router) deliver(ctx context.Context, sink contract.EventSink, frame domain.ServerFrame) {
	if err := sink.Consume(ctx, frame); err != nil {
		r.monitor.DroppedFrame()
		r.log.Warn("Frame dropped on slow connection", "type", frame.Type, "error", err)
		return
	}
	r.monitor.DeliveredLocal()
}

func (r *Router) publish(ctx context.Context, channel string, envelope domain.Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		r.log.Error("Failed to encode envelope", "error", err)
		return
	}
	r.bridge.Publish(ctx, channel, payload)
	r.monitor.Published()
}
