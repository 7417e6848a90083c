package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host       string `env:"HOST,default=0.0.0.0"`
	Port       int    `env:"PORT,default=8080"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`
	InstanceID string `env:"INSTANCE_ID"`

	// RedisAddr empty means single-instance mode on the in-memory bus.
	RedisAddr string `env:"REDIS_ADDR"`

	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ReconnectBaseWait    time.Duration `env:"RECONNECT_BASE_WAIT,default=250ms"`
	ReconnectMaxWait     time.Duration `env:"RECONNECT_MAX_WAIT,default=10s"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=15s"`

	EnableModeration bool   `env:"ENABLE_MODERATION,default=false"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT,default=*"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
