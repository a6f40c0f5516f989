package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProducesValidToken(t *testing.T) {
	tok, err := New()
	require.NoError(t, err)
	assert.Len(t, tok, Length)
	assert.True(t, Valid(tok))
}

func TestNew_IsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := New()
		require.NoError(t, err)
		require.False(t, seen[tok], "token collision: %s", tok)
		seen[tok] = true
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"aaaaaaaaaaaaaaaa": true,
		"0123456789abcdef": true,
		"AAAAAAAAAAAAAAAA": false, // uppercase not allowed
		"short":            false,
		"aaaaaaaaaaaaaaaaa": false, // 17 chars
		"gggggggggggggggg": false, // not hex
		"":                 false,
	}
	for in, want := range cases {
		assert.Equal(t, want, Valid(in), "Valid(%q)", in)
	}
}
