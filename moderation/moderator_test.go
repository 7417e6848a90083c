package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// TestModerator_Censor
// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	dictionary := []string{"badger", "snake", "mushroom"}
	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
		},
		{
			name:     "Multiple occurrences and preserved spacing",
			input:    "badger badger badger",
			expected: "****** ****** ******",
		},
		{
			name:     "Case insensitive matching",
			input:    "A BADGER and a SnAkE",
			expected: "A ****** and a *****",
		},
		{
			name:     "Accents around the match (UTF-8 offsets)",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "I love badger!",
			expected: "I love ******!",
		},
		{
			name:     "Nothing to censor",
			input:    "Relay-Lab is amazing",
			expected: "Relay-Lab is amazing",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			req.Equal(tt.expected, mod.Censor(tt.input))
		})
	}
}

func TestLoadCensoredWords(t *testing.T) {
	req := require.New(t)

	// When loading the embedded dictionaries
	data, err := LoadCensoredWords()

	// Then every language file contributed at least one word
	req.NoError(err)
	req.NotEmpty(data.Words)
	req.Contains(data.Languages, "en")
	req.Contains(data.Languages, "fr")
}

func TestModerator_Censor_EmbeddedDictionary(t *testing.T) {
	req := require.New(t)

	data, err := LoadCensoredWords()
	req.NoError(err)

	mod, err := NewModerator(data.Words, replacementChar)
	req.NoError(err)

	censored := mod.Censor("what the heck")
	req.Equal("what the ****", censored)
}
