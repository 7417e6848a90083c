package runtime

import (
	"context"
	"log/slog"
	"relay-lab/domain"
	"relay-lab/infrastructure/bus"
	"relay-lab/mocks"
	"relay-lab/observability"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// captureSink records every frame it consumes, standing in for a client
// connection.
type captureSink struct {
	mu     sync.Mutex
	frames []domain.ServerFrame
}

func newCaptureSink() *captureSink {
	return &captureSink{}
}

func (s *captureSink) Consume(_ context.Context, frame domain.ServerFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *captureSink) Frames() []domain.ServerFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ServerFrame(nil), s.frames...)
}

func (s *captureSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// instance bundles one simulated relay process: its own registry and router
// attached to a shared bus.
type instance struct {
	registry *Registry
	router   *Router
}

func newInstance(id domain.InstanceID, bridge *bus.MemoryBus) *instance {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	router := NewRouter(log, id, registry, bridge, observability.NewMonitor())
	bridge.Subscribe(domain.ChannelMessages, router.HandleBusMessage)
	return &instance{registry: registry, router: router}
}

func TestRouter_Direct_LocalDelivery_WithoutBus(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Given a bridge that accepts publishes but never delivers anything back
	deadBridge := mocks.NewMockIBridge(ctrl)
	deadBridge.EXPECT().Publish(gomock.Any(), domain.ChannelMessages, gomock.Any()).Times(1)

	registry := NewRegistry()
	router := NewRouter(log, "instance-a", registry, deadBridge, observability.NewMonitor())

	recipient := newCaptureSink()
	recipientID := registry.Register("", recipient)
	sender := newCaptureSink()
	senderID := registry.Register("", sender)

	// When a direct message targets a locally-registered recipient
	router.RouteInbound(context.Background(), senderID, domain.ClientFrame{
		Type:        domain.FrameTypeMessage,
		Message:     "hi",
		RecipientID: string(recipientID),
	})

	// Then the recipient received it synchronously, bus or no bus
	frames := recipient.Frames()
	req.Len(frames, 1)
	req.Equal(domain.FrameTypeMessage, frames[0].Type)
	req.Equal("hi", frames[0].Message)
	req.Equal(string(senderID), frames[0].SenderID)

	// And the sender received nothing
	req.Zero(sender.Count())
}

func TestRouter_Direct_CrossInstance(t *testing.T) {
	req := require.New(t)
	sharedBus := bus.NewMemoryBus(logs.GetLoggerFromLevel(slog.LevelDebug), 64)
	defer sharedBus.Close()

	// Given three instances sharing one bus
	a := newInstance("instance-a", sharedBus)
	b := newInstance("instance-b", sharedBus)
	c := newInstance("instance-c", sharedBus)

	sender := newCaptureSink()
	senderID := a.registry.Register("", sender)
	recipient := newCaptureSink()
	recipientID := b.registry.Register("", recipient)
	bystander := newCaptureSink()
	c.registry.Register("", bystander)

	// When instance A routes a direct message for a recipient held by B
	a.router.RouteInbound(context.Background(), senderID, domain.ClientFrame{
		Type:        domain.FrameTypeMessage,
		Message:     "hi",
		RecipientID: string(recipientID),
	})

	// Then only B delivers it
	req.Eventually(func() bool {
		return recipient.Count() == 1
	}, time.Second, 10*time.Millisecond)

	frames := recipient.Frames()
	req.Equal("hi", frames[0].Message)
	req.Equal(string(senderID), frames[0].SenderID)

	// And no other connection anywhere received it
	time.Sleep(50 * time.Millisecond)
	req.Zero(sender.Count())
	req.Zero(bystander.Count())
}

func TestRouter_Direct_SameInstance_NoDoubleDelivery(t *testing.T) {
	req := require.New(t)
	sharedBus := bus.NewMemoryBus(logs.GetLoggerFromLevel(slog.LevelDebug), 64)
	defer sharedBus.Close()

	// Given sender and recipient co-located on one instance, bus attached
	a := newInstance("instance-a", sharedBus)
	sender := newCaptureSink()
	senderID := a.registry.Register("", sender)
	recipient := newCaptureSink()
	recipientID := a.registry.Register("", recipient)

	// When the direct message is routed and its publish round-trips
	a.router.RouteInbound(context.Background(), senderID, domain.ClientFrame{
		Type:        domain.FrameTypeMessage,
		Message:     "hi",
		RecipientID: string(recipientID),
	})

	// Then the recipient got it exactly once: the synchronous delivery,
	// not the echo from the instance's own subscriber
	time.Sleep(100 * time.Millisecond)
	req.Equal(1, recipient.Count())
}

func TestRouter_Broadcast_AllInstances_IncludingSender(t *testing.T) {
	req := require.New(t)
	sharedBus := bus.NewMemoryBus(logs.GetLoggerFromLevel(slog.LevelDebug), 64)
	defer sharedBus.Close()

	// Given two instances with two connections each
	a := newInstance("instance-a", sharedBus)
	b := newInstance("instance-b", sharedBus)

	sender := newCaptureSink()
	senderID := a.registry.Register("", sender)
	localPeer := newCaptureSink()
	a.registry.Register("", localPeer)
	remotePeer1 := newCaptureSink()
	b.registry.Register("", remotePeer1)
	remotePeer2 := newCaptureSink()
	b.registry.Register("", remotePeer2)

	// When a broadcast is routed
	a.router.RouteInbound(context.Background(), senderID, domain.ClientFrame{
		Type:    domain.FrameTypeBroadcast,
		Message: "hello all",
	})

	// Then every open connection received it exactly once, sender included
	sinks := []*captureSink{sender, localPeer, remotePeer1, remotePeer2}
	req.Eventually(func() bool {
		for _, sink := range sinks {
			if sink.Count() != 1 {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)

	for _, sink := range sinks {
		frames := sink.Frames()
		req.Equal(domain.FrameTypeBroadcast, frames[0].Type)
		req.Equal("hello all", frames[0].Message)
		req.Equal(string(senderID), frames[0].SenderID)
	}
}

func TestRouter_HandleBusMessage_MalformedDropped(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	monitor := observability.NewMonitor()
	registry := NewRegistry()
	router := NewRouter(log, "instance-a", registry, mocks.NewMockIBridge(ctrl), monitor)

	recipient := newCaptureSink()
	registry.Register("", recipient)

	// When garbage arrives on the messages channel
	router.HandleBusMessage(context.Background(), []byte("{not json"))
	router.HandleBusMessage(context.Background(), []byte(`{"type":"teleport","message":"x"}`))

	// Then nothing was delivered and the drops were counted
	req.Zero(recipient.Count())
	req.Equal(uint64(2), monitor.Snapshot().MalformedFrames)
}

func TestRouter_Direct_UnknownRecipient_SilentNoOp(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	bridge := mocks.NewMockIBridge(ctrl)
	bridge.EXPECT().Publish(gomock.Any(), domain.ChannelMessages, gomock.Any()).Times(1)

	registry := NewRegistry()
	monitor := observability.NewMonitor()
	router := NewRouter(log, "instance-a", registry, bridge, monitor)

	sender := newCaptureSink()
	senderID := registry.Register("", sender)

	// When the recipient is nowhere to be found locally
	router.RouteInbound(context.Background(), senderID, domain.ClientFrame{
		Type:        domain.FrameTypeMessage,
		Message:     "hi",
		RecipientID: "offline-user",
	})

	// Then the envelope was still published and nothing failed locally
	req.Zero(sender.Count())
	req.Zero(monitor.Snapshot().DeliveredLocal)
}

func TestRouter_Censor_AppliedBeforeDelivery(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	bridge := mocks.NewMockIBridge(ctrl)
	bridge.EXPECT().Publish(gomock.Any(), domain.ChannelMessages, gomock.Any()).Times(1)

	registry := NewRegistry()
	router := NewRouter(log, "instance-a", registry, bridge, observability.NewMonitor())
	router.Censor = func(content string) string {
		return strings.ReplaceAll(content, "heck", "****")
	}

	recipient := newCaptureSink()
	recipientID := registry.Register("", recipient)

	// When a message with censored content is routed
	router.RouteInbound(context.Background(), "sender", domain.ClientFrame{
		Type:        domain.FrameTypeMessage,
		Message:     "what the heck",
		RecipientID: string(recipientID),
	})

	// Then the delivered content is already masked
	frames := recipient.Frames()
	req.Len(frames, 1)
	req.Equal("what the ****", frames[0].Message)
}
