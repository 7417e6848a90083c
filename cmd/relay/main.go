package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"relay-lab/contract"
	"relay-lab/domain"
	"relay-lab/infrastructure/bus"
	"relay-lab/infrastructure/ws"
	"relay-lab/internal"
	"relay-lab/moderation"
	"relay-lab/observability"
	"relay-lab/repositories"
	"relay-lab/runtime"
	"relay-lab/runtime/workers"
	"relay-lab/services"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Calling os.Exit directly would skip the deferred cleanups; returning the
// code keeps initialization testable and shutdown orderly.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	instanceID := domain.InstanceID(config.InstanceID)
	if instanceID == "" {
		instanceID = domain.InstanceID(uuid.NewString())
	}
	logger.Info("Starting relay instance", "instance", instanceID)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Bridge: Redis when configured, in-process bus otherwise.
	var bridge contract.IBridge
	var store contract.IPresenceStore
	var redisBus *bus.RedisBus
	var memoryBus *bus.MemoryBus

	if config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		defer func() {
			logger.Info("Closing Redis client...")
			_ = client.Close()
		}()

		redisBus = bus.NewRedisBus(logger, client, config.ReconnectBaseWait, config.ReconnectMaxWait)
		bridge = redisBus
		store = repositories.NewPresenceRepository(logger, client)
	} else {
		logger.Warn("REDIS_ADDR not set, running single-instance on the in-memory bus")
		memoryBus = bus.NewMemoryBus(logger, config.BufferSize)
		bridge = memoryBus
		defer memoryBus.Close()
	}

	// 4. Delivery pipeline
	monitor := observability.NewMonitor()
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(logger, instanceID, registry, bridge, monitor)

	if config.EnableModeration {
		charReplacement, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return exitConfig, err
		}

		data, err := moderation.LoadCensoredWords()
		if err != nil {
			return exitRuntime, fmt.Errorf("censored words loading failed: %w", err)
		}
		logger.Info(fmt.Sprintf("%d censored words loaded [%s]",
			len(data.Words), strings.Join(data.Languages, ",")))

		moderator, err := moderation.NewModerator(data.Words, charReplacement)
		if err != nil {
			return exitRuntime, fmt.Errorf("moderator build failed: %w", err)
		}
		router.Censor = moderator.Censor
	}

	presence := runtime.NewPresenceTracker(logger, instanceID, registry, bridge, store, monitor)
	presence.Seed(ctx)

	bridge.Subscribe(domain.ChannelMessages, router.HandleBusMessage)
	bridge.Subscribe(domain.ChannelUserStatus, presence.HandleBusEvent)

	// 5. Supervision
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewHeartbeatWorker(logger, registry, monitor, config.HeartbeatInterval))
	if redisBus != nil {
		sup.Add(redisBus)
	}
	go sup.Run(ctx)

	// 6. Transport
	relayService := services.NewRelayService(logger, registry, router, presence, monitor)
	wsServer := ws.NewServer(logger, relayService, config.ConnectionBufferSize, config.SinkTimeout)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:        address,
		Handler:     wsServer.Handler(),
		ReadTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Relay listening", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	logger.Info("Relay stopped cleanly")

	return exitOK, nil
}
