package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/escape-engine/pkg/chat"
)

// scriptedFallback is returned once a script runs out of replies.
const scriptedFallback = `{"scenario_text":"The room is quiet. Nothing seems to change.","choices":["wait","search the room"],"effects":[],"outcome":"continue"}`

// ScriptedService replays canned narrator replies in order. It backs the
// offline console and engine tests.
type ScriptedService struct {
	// ChatFunc overrides the script when set
	ChatFunc func(ctx context.Context, messages []chat.ChatMessage) (string, error)

	Replies []string

	// Track calls for testing
	ChatCalls [][]chat.ChatMessage

	mu sync.Mutex
}

var _ LLMService = (*ScriptedService)(nil)

func NewScriptedService(replies ...string) *ScriptedService {
	return &ScriptedService{Replies: replies}
}

func (s *ScriptedService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func (s *ScriptedService) Chat(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	s.mu.Lock()
	s.ChatCalls = append(s.ChatCalls, append([]chat.ChatMessage(nil), messages...))
	fn := s.ChatFunc
	if fn != nil {
		s.mu.Unlock()
		return fn(ctx, messages)
	}
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.Replies) == 0 {
		return scriptedFallback, nil
	}
	reply := s.Replies[0]
	s.Replies = s.Replies[1:]
	return reply, nil
}

// Push appends replies to the end of the script.
func (s *ScriptedService) Push(replies ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Replies = append(s.Replies, replies...)
}

// Calls returns the number of Chat invocations so far.
func (s *ScriptedService) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ChatCalls)
}

// LastCall returns the messages of the most recent Chat call.
func (s *ScriptedService) LastCall() []chat.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ChatCalls) == 0 {
		return nil
	}
	return s.ChatCalls[len(s.ChatCalls)-1]
}

// DemoScript is a short offline adventure used by the console when no
// provider is configured.
func DemoScript() []string {
	return []string{
		`{"scenario_text":"You wake in a dusty attic. A coil of rope lies across your wrists, loosely knotted. A round window lets in grey light and the trapdoor below is shut.","choices":["work at the knots","shout for help","inspect the window"],"theme":"abandoned attic","effects":[{"op":"apply","kind":"rope","level":2}],"outcome":"continue"}`,
		`{"scenario_text":"You twist against the rope. It bites tighter for a moment before a loop slips.","choices":["keep twisting","look for something sharp"],"effects":[{"op":"tighten","kind":"rope","amount":1}],"outcome":"continue"}`,
		`{"scenario_text":"A rusty nail juts from a beam. You saw at the rope until it parts, then lift the trapdoor and climb down to freedom.","choices":[],"effects":[],"outcome":"escape"}`,
	}
}
