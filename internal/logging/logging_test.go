// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", &buf)

	logger.Info().Str("path", "a.gdoc").Msg("hidden")
	logger.Warn().Str("path", "b.gdoc").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "b.gdoc")
}

func TestNew_BufferIsNotTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	// Must not panic or write anywhere.
	logger.Error().Str("k", "v").Msg("dropped")
}
