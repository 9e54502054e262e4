package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwebster45206/escape-engine/internal/host"
	"github.com/jwebster45206/escape-engine/internal/host/local"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubEngine struct {
	room string
}

func (s stubEngine) RoomOf(playerID string) (string, bool) { return s.room, s.room != "" }

func (s stubEngine) Status(ctx context.Context, player host.Player, roomID string) (string, error) {
	return "Phase: active", nil
}

func TestConsoleUI_Receive(t *testing.T) {
	handler := host.HandlerFunc(func(ctx context.Context, ev host.Event) (string, error) { return "", nil })
	m := NewConsoleUI(stubEngine{room: "r1"}, handler, local.New(1), host.Player{ID: "console-robin", DisplayName: "Robin"}, "")
	m.loading = true

	m.receive(local.Delivery{RoomID: "r1", Message: host.Message{Kind: host.KindEcho, Author: "Robin", Text: "mmph"}})
	assert.True(t, m.loading, "an echo does not end the wait")

	m.receive(local.Delivery{RoomID: "r1", Message: host.Message{Kind: host.KindNarration, Text: "A hall.", Choices: []string{"left"}}})
	assert.False(t, m.loading)
	assert.Equal(t, "A hall.\n\n1. left", m.lastNarration)
	assert.Len(t, m.entries, 2)
}

func TestRenderEntry(t *testing.T) {
	out := renderEntry(entry{kind: host.KindNarration, text: "A hall.", choices: []string{"left", "right"}}, 60)
	assert.Contains(t, out, "Narrator: ")
	assert.Contains(t, out, "1. left")
	assert.Contains(t, out, "2. right")

	out = renderEntry(entry{kind: host.KindError, text: "oops"}, 60)
	assert.Contains(t, out, "Error: oops")

	long := strings.Repeat("word ", 40)
	for _, line := range strings.Split(renderEntry(entry{kind: kindSystem, text: long}, 30), "\n") {
		assert.LessOrEqual(t, len(strings.TrimSpace(stripANSI(line))), 30)
	}
}

func TestConsolePlayer(t *testing.T) {
	assert.Equal(t, host.Player{ID: "console-robin", DisplayName: "Robin"}, consolePlayer("Robin"))

	t.Setenv("USER", "")
	assert.Equal(t, "Player", consolePlayer("").DisplayName)
}

// stripANSI removes color escapes so widths can be measured.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}
