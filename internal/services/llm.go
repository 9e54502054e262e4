package services

import (
	"context"

	"github.com/jwebster45206/escape-engine/pkg/chat"
)

//go:generate mockgen -destination=mocks/llm.go -package=servicesmocks -source=llm.go

const msgNoResponse = "(no response)"

// LLMService defines the interface for interacting with the LLM API
type LLMService interface {
	// InitModel prepares the model on startup
	InitModel(ctx context.Context, modelName string) error

	// Chat sends the conversation and returns the model's raw text reply
	Chat(ctx context.Context, messages []chat.ChatMessage) (string, error)
}
