// Package services exposes the connection lifecycle operations consumed by
// the transport layer.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"relay-lab/contract"
	"relay-lab/domain"
	"relay-lab/errors"
	"relay-lab/observability"

	"github.com/go-playground/validator/v10"
)

// RelayService is the connection lifecycle manager. It assigns identifiers,
// wires connections into the registry, validates inbound frames and funnels
// every teardown through one idempotent path.
type RelayService struct {
	log      *slog.Logger
	registry contract.IRegistry
	router   contract.IRouter
	presence contract.IPresenceTracker
	monitor  *observability.Monitor
	validate *validator.Validate
}

func NewRelayService(log *slog.Logger, registry contract.IRegistry,
	router contract.IRouter, presence contract.IPresenceTracker,
	monitor *observability.Monitor) *RelayService {
	return &RelayService{
		log:      log,
		registry: registry,
		router:   router,
		presence: presence,
		monitor:  monitor,
		validate: validator.New(),
	}
}

// Connect registers the sink, sends the welcome frame bearing the assigned
// identifier and announces the participant's presence. The welcome is
// delivered before any relayed traffic because the sink is drained in order.
func (s *RelayService) Connect(ctx context.Context, participantID domain.ParticipantID, sink contract.EventSink) (domain.ConnectionID, error) {
	id := s.registry.Register(participantID, sink)

	if err := sink.Consume(ctx, domain.NewWelcomeFrame(id)); err != nil {
		// A connection that cannot even take its welcome is unusable.
		s.registry.Unregister(id)
		return "", fmt.Errorf("welcome delivery: %w", err)
	}

	s.presence.Connected(ctx, participantID)
	s.log.Info("Client connected", "connection", id, "participant", participantID)
	return id, nil
}

// Disconnect tears the connection down. Close and transport error both call
// it; the registry guarantees only the first removal triggers the presence
// disconnect path.
func (s *RelayService) Disconnect(ctx context.Context, id domain.ConnectionID, participantID domain.ParticipantID) {
	if !s.registry.Unregister(id) {
		return
	}
	s.presence.Disconnected(ctx, participantID)
	s.log.Info("Client disconnected", "connection", id, "participant", participantID)
}

// HandleFrame parses, validates and routes one inbound payload. A malformed
// payload is dropped and reported; the connection stays open.
func (s *RelayService) HandleFrame(ctx context.Context, sender domain.ConnectionID, raw []byte) error {
	var frame domain.ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.monitor.MalformedFrame()
		s.log.Warn("Dropping unparseable frame", "sender", sender, "error", err)
		return fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}

	if err := s.validate.Struct(frame); err != nil {
		s.monitor.MalformedFrame()
		s.log.Warn("Dropping invalid frame", "sender", sender, "type", frame.Type, "error", err)
		return fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}

	s.router.RouteInbound(ctx, sender, frame)
	return nil
}
