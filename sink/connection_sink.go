package sink

import (
	"context"
	"log/slog"
	"relay-lab/domain"
	"relay-lab/errors"
	"time"
)

// ConnectionSink bridges the router and one connection's write pump.
// Consume hands the frame to the pump through a buffered channel; a pump
// that cannot keep up within the delivery budget loses the frame instead of
// stalling the router.
type ConnectionSink struct {
	Frames          chan domain.ServerFrame
	log             *slog.Logger
	deliveryTimeout time.Duration
}

func NewConnectionSink(log *slog.Logger, bufferSize int, deliveryTimeout time.Duration) *ConnectionSink {
	return &ConnectionSink{
		Frames:          make(chan domain.ServerFrame, bufferSize),
		log:             log,
		deliveryTimeout: deliveryTimeout,
	}
}

// Consume is called by the router and the presence tracker.
// The write pump owns the other end of the channel.
func (s *ConnectionSink) Consume(ctx context.Context, frame domain.ServerFrame) error {
	select {
	case s.Frames <- frame:
		return nil
	default:
	}

	// Buffer full: give the pump one delivery budget to drain before
	// declaring the frame lost.
	timer := time.NewTimer(s.deliveryTimeout)
	defer timer.Stop()

	select {
	case s.Frames <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.ErrDeliveryTimeout
	}
}
