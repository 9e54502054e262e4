package chat

const (
	ChatRoleUser   = "user"      // player
	ChatRoleAgent  = "assistant" // narrator
	ChatRoleSystem = "system"    // instructions
)

// ChatMessage represents a single chat message in the conversation sent to
// the LLM. The shape matches the Anthropic and OpenAI-compatible APIs.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// SplitSystem extracts and combines all system messages into a single system
// prompt and returns the remaining messages in order.
func SplitSystem(messages []ChatMessage) (string, []ChatMessage) {
	var system string
	rest := make([]ChatMessage, 0, len(messages))

	for _, msg := range messages {
		if msg.Role != ChatRoleSystem {
			rest = append(rest, msg)
			continue
		}
		if system != "" {
			system += "\n\n"
		}
		system += msg.Content
	}

	return system, rest
}
