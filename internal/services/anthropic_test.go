package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/escape-engine/pkg/chat"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAnthropicService(t *testing.T) {
	service := NewAnthropicService("test-api-key", "claude-sonnet", discardLogger())

	assert.Equal(t, "test-api-key", service.apiKey)
	assert.Equal(t, "claude-sonnet", service.modelName)
	assert.Equal(t, anthropicBaseURL, service.baseURL)
	assert.NotNil(t, service.httpClient)
}

func TestAnthropicService_InitModel(t *testing.T) {
	service := NewAnthropicService("test-key", "claude-sonnet", discardLogger())
	assert.NoError(t, service.InitModel(context.Background(), "test-model"))
}

func TestAnthropicService_Chat(t *testing.T) {
	var got AnthropicChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet",
			"content":[{"type":"text","text":"{\"scenario_text\":"},{"type":"text","text":"\"hi\"}"}],
			"usage":{"input_tokens":10,"output_tokens":4}}`))
	}))
	defer srv.Close()

	service := NewAnthropicService("test-key", "claude-sonnet", discardLogger()).WithBaseURL(srv.URL)
	out, err := service.Chat(context.Background(), []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: "You narrate."},
		{Role: chat.ChatRoleSystem, Content: "Reply in JSON."},
		{Role: chat.ChatRoleUser, Content: "look"},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"scenario_text":"hi"}`, out)
	assert.Equal(t, "You narrate.\n\nReply in JSON.", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, chat.ChatRoleUser, got.Messages[0].Role)
	assert.Equal(t, DefaultAnthropicMaxTokens, got.MaxTokens)
}

func TestAnthropicService_ChatPrependsUserTurn(t *testing.T) {
	var got AnthropicChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	service := NewAnthropicService("k", "m", discardLogger()).WithBaseURL(srv.URL)
	_, err := service.Chat(context.Background(), []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: "sys"},
		{Role: chat.ChatRoleAgent, Content: "earlier narration"},
	})
	require.NoError(t, err)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, chat.ChatRoleUser, got.Messages[0].Role)
	assert.Equal(t, chat.ChatRoleAgent, got.Messages[1].Role)
}

func TestAnthropicService_ChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "api error", status: http.StatusOK, body: `{"error":{"type":"overloaded_error","message":"overloaded"}}`},
		{name: "bad json", status: http.StatusOK, body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			service := NewAnthropicService("k", "m", discardLogger()).WithBaseURL(srv.URL)
			_, err := service.Chat(context.Background(), []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "x"}})
			assert.Error(t, err)
		})
	}
}

func TestAnthropicService_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	service := NewAnthropicService("k", "m", discardLogger()).WithBaseURL(srv.URL)
	out, err := service.Chat(context.Background(), []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, msgNoResponse, out)
}
