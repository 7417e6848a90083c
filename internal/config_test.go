package internal

import (
	"testing"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)

	// When unmarshalling from an empty environment
	var config Config
	req.NoError(env.Unmarshal(env.EnvSet{}, &config))

	// Then the relay comes up with sane single-instance defaults
	req.Equal("0.0.0.0", config.Host)
	req.Equal(8080, config.Port)
	req.Equal("INFO", config.LogLevel)
	req.Empty(config.RedisAddr)
	req.False(config.EnableModeration)
	req.Equal("*", config.CharReplacement)
}

func TestCharacterRune(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  rune
		expectErr bool
	}{
		{name: "ASCII star", input: "*", expected: '*'},
		{name: "Multibyte rune", input: "█", expected: '█'},
		{name: "Empty", input: "", expectErr: true},
		{name: "More than one character", input: "**", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			r, err := CharacterRune(tt.input)

			if tt.expectErr {
				req.Error(err)
				return
			}
			req.NoError(err)
			req.Equal(tt.expected, r)
		})
	}
}
