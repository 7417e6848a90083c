package ws

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"relay-lab/domain"
	"relay-lab/infrastructure/bus"
	"relay-lab/observability"
	"relay-lab/runtime"
	"relay-lab/services"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const readBudget = 2 * time.Second

// startRelay assembles one full instance behind an httptest server: bus,
// registry, router, presence, lifecycle service and the websocket transport.
func startRelay(t *testing.T) *httptest.Server {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	memoryBus := bus.NewMemoryBus(log, 64)
	t.Cleanup(memoryBus.Close)

	monitor := observability.NewMonitor()
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, "test-instance", registry, memoryBus, monitor)
	presence := runtime.NewPresenceTracker(log, "test-instance", registry, memoryBus, nil, monitor)

	memoryBus.Subscribe(domain.ChannelMessages, router.HandleBusMessage)
	memoryBus.Subscribe(domain.ChannelUserStatus, presence.HandleBusEvent)

	service := services.NewRelayService(log, registry, router, presence, monitor)
	server := httptest.NewServer(NewServer(log, service, 16, time.Second).Handler())
	t.Cleanup(server.Close)
	return server
}

// testClient wraps one websocket connection and its welcome identity.
type testClient struct {
	t        *testing.T
	conn     *websocket.Conn
	ClientID string
}

// dial connects to the relay, optionally with a participant identity, and
// consumes the welcome frame.
func dial(t *testing.T, server *httptest.Server, userID string) *testClient {
	t.Helper()
	req := require.New(t)

	endpoint := url.URL{
		Scheme: "ws",
		Host:   strings.TrimPrefix(server.URL, "http://"),
		Path:   "/ws",
	}
	if userID != "" {
		endpoint.RawQuery = url.Values{"userId": []string{userID}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.Dial(endpoint.String(), nil)
	req.NoError(err)
	t.Cleanup(func() {
		_ = conn.Close()
	})

	c := &testClient{t: t, conn: conn}
	welcome := c.next()
	req.Equal(domain.FrameTypeWelcome, welcome.Type)
	req.NotEmpty(welcome.ClientID)
	c.ClientID = welcome.ClientID
	return c
}

// next reads one frame within the read budget.
func (c *testClient) next() domain.ServerFrame {
	c.t.Helper()
	req := require.New(c.t)

	var frame domain.ServerFrame
	req.NoError(c.conn.SetReadDeadline(time.Now().Add(readBudget)))
	req.NoError(c.conn.ReadJSON(&frame))
	return frame
}

// await reads frames until one of the wanted type arrives, skipping
// interleaved presence pushes.
func (c *testClient) await(frameType string) domain.ServerFrame {
	c.t.Helper()
	for {
		frame := c.next()
		if frame.Type == frameType {
			return frame
		}
	}
}

// awaitOnlineUsers reads presence pushes until the list matches.
func (c *testClient) awaitOnlineUsers(expected []string) {
	c.t.Helper()
	req := require.New(c.t)

	deadline := time.Now().Add(readBudget)
	for time.Now().Before(deadline) {
		frame := c.await(domain.FrameTypeOnlineUsers)
		if equalLists(frame.Users, expected) {
			return
		}
	}
	req.Fail("never observed expected online users", "expected %v", expected)
}

func equalLists(got, expected []string) bool {
	if len(got) != len(expected) {
		return false
	}
	for i := range got {
		if got[i] != expected[i] {
			return false
		}
	}
	return true
}

func TestServer_Health(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)

	resp, err := http.Get(server.URL + "/health")
	req.NoError(err)
	defer func() {
		_ = resp.Body.Close()
	}()
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestServer_WelcomeAndPresencePush(t *testing.T) {
	server := startRelay(t)

	// When alice then bob connect with an identity
	alice := dial(t, server, "alice")
	alice.awaitOnlineUsers([]string{"alice"})

	bob := dial(t, server, "bob")

	// Then both converge on the same sorted online list
	bob.awaitOnlineUsers([]string{"alice", "bob"})
	alice.awaitOnlineUsers([]string{"alice", "bob"})
}

func TestServer_DirectMessage(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)

	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")
	bob.awaitOnlineUsers([]string{"alice", "bob"})

	// When alice sends a direct message to bob's connection identifier
	req.NoError(alice.conn.WriteJSON(domain.ClientFrame{
		Type:        domain.FrameTypeMessage,
		Message:     "hi bob",
		RecipientID: bob.ClientID,
	}))

	// Then bob receives it, attributed to alice's connection
	frame := bob.await(domain.FrameTypeMessage)
	req.Equal("hi bob", frame.Message)
	req.Equal(alice.ClientID, frame.SenderID)
	req.Equal(bob.ClientID, frame.RecipientID)
}

func TestServer_DirectMessage_ByParticipantID(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)

	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")
	bob.awaitOnlineUsers([]string{"alice", "bob"})

	// When alice addresses bob by participant identity instead
	req.NoError(alice.conn.WriteJSON(domain.ClientFrame{
		Type:        domain.FrameTypeMessage,
		Message:     "hi again",
		RecipientID: "bob",
	}))

	frame := bob.await(domain.FrameTypeMessage)
	req.Equal("hi again", frame.Message)
	req.Equal(alice.ClientID, frame.SenderID)
}

func TestServer_Broadcast_IncludesSender(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)

	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")
	bob.awaitOnlineUsers([]string{"alice", "bob"})

	// When alice broadcasts
	req.NoError(alice.conn.WriteJSON(domain.ClientFrame{
		Type:    domain.FrameTypeBroadcast,
		Message: "hello everyone",
	}))

	// Then everyone receives it, alice included
	for _, c := range []*testClient{alice, bob} {
		frame := c.await(domain.FrameTypeBroadcast)
		req.Equal("hello everyone", frame.Message)
		req.Equal(alice.ClientID, frame.SenderID)
	}
}

func TestServer_MalformedFrame_KeepsConnectionOpen(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)

	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")
	bob.awaitOnlineUsers([]string{"alice", "bob"})

	// When alice sends garbage then a valid broadcast
	req.NoError(alice.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	req.NoError(alice.conn.WriteJSON(domain.ClientFrame{
		Type:    domain.FrameTypeBroadcast,
		Message: "still here",
	}))

	// Then the connection survived the bad frame
	frame := bob.await(domain.FrameTypeBroadcast)
	req.Equal("still here", frame.Message)
}

func TestServer_Disconnect_UpdatesPresence(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)

	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")
	bob.awaitOnlineUsers([]string{"alice", "bob"})

	// When alice goes away
	req.NoError(alice.conn.Close())

	// Then bob sees her leave
	bob.awaitOnlineUsers([]string{"bob"})
}

func TestServer_AnonymousConnection_CanBroadcast(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)

	anon := dial(t, server, "")
	bob := dial(t, server, "bob")
	bob.awaitOnlineUsers([]string{"bob"})

	// When the anonymous connection broadcasts
	req.NoError(anon.conn.WriteJSON(domain.ClientFrame{
		Type:    domain.FrameTypeBroadcast,
		Message: "from nowhere",
	}))

	// Then it relays like any other, attributed to its connection id
	frame := bob.await(domain.FrameTypeBroadcast)
	req.Equal("from nowhere", frame.Message)
	req.Equal(anon.ClientID, frame.SenderID)
}
