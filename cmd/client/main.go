package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"relay-lab/domain"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	RelayAddr string `env:"RELAY_ADDR,default=localhost:8080"`
	UserID    string `env:"USER_ID"`
	Colours   bool   `env:"CLIENT_COLOURS,default=true"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the WebSocket client lifecycle: dial, reception loop and the
// stdin send loop. Lines starting with "/msg <recipient> " are sent as
// direct messages, everything else is broadcast.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Dial the relay.
	endpoint := url.URL{Scheme: "ws", Host: config.RelayAddr, Path: "/ws"}
	if config.UserID != "" {
		endpoint.RawQuery = url.Values{"userId": []string{config.UserID}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to relay at %s: %w", config.RelayAddr, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	fmt.Printf(">>> Connected to %s (Ctrl+C to quit)\n", config.RelayAddr)

	// 4. Reception loop.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var frame domain.ServerFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			render(config, frame)
		}
	}()

	// 5. Send loop, reading lines from stdin.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			frame, err := parseLine(scanner.Text())
			if err != nil {
				fmt.Println(err)
				continue
			}
			if frame == nil {
				continue
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
	return exitOK, nil
}

// parseLine turns one stdin line into a client frame, nil for blank input.
func parseLine(line string) (*domain.ClientFrame, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	if strings.HasPrefix(line, "/msg ") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 3 {
			return nil, fmt.Errorf("usage: /msg <recipientId> <message>")
		}
		return &domain.ClientFrame{
			Type:        domain.FrameTypeMessage,
			RecipientID: parts[1],
			Message:     parts[2],
		}, nil
	}

	return &domain.ClientFrame{Type: domain.FrameTypeBroadcast, Message: line}, nil
}

func render(config Config, frame domain.ServerFrame) {
	switch frame.Type {
	case domain.FrameTypeWelcome:
		header := fmt.Sprintf("  ====== your id: %s ======", frame.ClientID)
		if config.Colours {
			header = color.New(color.BgBlack, color.FgGreen).Render(header)
		}
		fmt.Println(header)

	case domain.FrameTypeOnlineUsers:
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Online users"})
		table.SetAutoWrapText(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		for _, user := range frame.Users {
			table.Append([]string{user})
		}
		table.Render()

	case domain.FrameTypeMessage, domain.FrameTypeBroadcast:
		line := fmt.Sprintf("[%s] %s", frame.SenderID, frame.Message)
		if config.Colours && frame.Type == domain.FrameTypeMessage {
			line = color.FgCyan.Render(line)
		}
		fmt.Println(line)

	default:
		raw, _ := json.Marshal(frame)
		fmt.Println(string(raw))
	}
}
