package chat

import (
	"testing"
)

func TestSplitSystem(t *testing.T) {
	tests := []struct {
		name           string
		messages       []ChatMessage
		expectedSystem string
		expectedRest   int
	}{
		{
			name: "single system message",
			messages: []ChatMessage{
				{Role: ChatRoleSystem, Content: "You are the narrator."},
				{Role: ChatRoleUser, Content: "look"},
				{Role: ChatRoleAgent, Content: "A door closes behind you."},
			},
			expectedSystem: "You are the narrator.",
			expectedRest:   2,
		},
		{
			name: "multiple system messages",
			messages: []ChatMessage{
				{Role: ChatRoleSystem, Content: "You are the narrator."},
				{Role: ChatRoleUser, Content: "look"},
				{Role: ChatRoleSystem, Content: "Reply in JSON."},
			},
			expectedSystem: "You are the narrator.\n\nReply in JSON.",
			expectedRest:   1,
		},
		{
			name: "no system messages",
			messages: []ChatMessage{
				{Role: ChatRoleUser, Content: "look"},
			},
			expectedSystem: "",
			expectedRest:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, rest := SplitSystem(tt.messages)
			if system != tt.expectedSystem {
				t.Errorf("Expected system prompt %q, got %q", tt.expectedSystem, system)
			}
			if len(rest) != tt.expectedRest {
				t.Errorf("Expected %d remaining messages, got %d", tt.expectedRest, len(rest))
			}
			for _, msg := range rest {
				if msg.Role == ChatRoleSystem {
					t.Error("Found system message in remaining messages")
				}
			}
		})
	}
}
