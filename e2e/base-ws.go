package e2e

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"relay-lab/domain"
)

const frameBudget = 5 * time.Second

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR not set, skipping relay scenarios")
	}
}

// Participant is one live connection to the relay under test.
type Participant struct {
	suite    *BaseRelaySuite
	Conn     *websocket.Conn
	ClientID string
}

// Connect dials the relay with the given identity, prints a colorized header
// and consumes the welcome frame.
func (s *BaseRelaySuite) Connect(name string, userID string) *Participant {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	endpoint := url.URL{Scheme: "ws", Host: s.Config.RelayAddr, Path: "/ws"}
	if userID != "" {
		endpoint.RawQuery = url.Values{"userId": []string{userID}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.Dial(endpoint.String(), nil)
	s.Require().NoError(err, "Failed to connect to relay at "+s.Config.RelayAddr)

	p := &Participant{suite: s, Conn: conn}
	welcome := p.Next()
	s.Require().Equal(domain.FrameTypeWelcome, welcome.Type)
	s.Require().NotEmpty(welcome.ClientID)
	p.ClientID = welcome.ClientID

	s.T().Logf("%s connected as %s", name, p.ClientID)
	return p
}

// Next reads one frame within the frame budget.
func (p *Participant) Next() domain.ServerFrame {
	var frame domain.ServerFrame
	p.suite.Require().NoError(p.Conn.SetReadDeadline(time.Now().Add(frameBudget)))
	p.suite.Require().NoError(p.Conn.ReadJSON(&frame))
	return frame
}

// Await reads frames until one of the wanted type arrives.
func (p *Participant) Await(frameType string) domain.ServerFrame {
	for {
		frame := p.Next()
		if frame.Type == frameType {
			return frame
		}
	}
}

// AwaitOnline reads presence pushes until every given user is listed.
func (p *Participant) AwaitOnline(users ...string) domain.ServerFrame {
	deadline := time.Now().Add(frameBudget)
	for time.Now().Before(deadline) {
		frame := p.Await(domain.FrameTypeOnlineUsers)
		if containsAll(frame.Users, users) {
			return frame
		}
	}
	p.suite.Require().Fail("never observed online users", "wanted %v", users)
	return domain.ServerFrame{}
}

func (p *Participant) Send(frame domain.ClientFrame) {
	p.suite.Require().NoError(p.Conn.WriteJSON(frame))
}

func (p *Participant) Close() {
	_ = p.Conn.Close()
}

func containsAll(got []string, wanted []string) bool {
	present := make(map[string]struct{}, len(got))
	for _, u := range got {
		present[u] = struct{}{}
	}
	for _, w := range wanted {
		if _, ok := present[w]; !ok {
			return false
		}
	}
	return true
}
