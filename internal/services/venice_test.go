package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/escape-engine/pkg/chat"
)

func TestNewVeniceService(t *testing.T) {
	service := NewVeniceService("test-api-key", "llama-3.3-70b", discardLogger())

	assert.Equal(t, "test-api-key", service.apiKey)
	assert.Equal(t, "llama-3.3-70b", service.modelName)
	assert.Equal(t, veniceBaseURL, service.baseURL)
	assert.NoError(t, service.InitModel(context.Background(), "llama-3.3-70b"))
}

func TestVeniceService_Chat(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"id":"c1","model":"llama","choices":[{"index":0,"message":{"role":"assistant","content":"{\"scenario_text\":\"hi\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	service := NewVeniceService("test-key", "llama", discardLogger()).WithBaseURL(srv.URL)
	out, err := service.Chat(context.Background(), []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: "sys"},
		{Role: chat.ChatRoleUser, Content: "look"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"scenario_text":"hi"}`, out)

	assert.Equal(t, "llama", got["model"])
	assert.Equal(t, false, got["stream"])

	format, ok := got["response_format"].(map[string]interface{})
	require.True(t, ok, "response_format should be sent")
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]interface{})
	assert.Equal(t, "narrator_turn", schema["name"])

	params := got["venice_parameters"].(map[string]interface{})
	assert.Equal(t, false, params["include_venice_system_prompt"])
}

func TestVeniceService_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	service := NewVeniceService("k", "m", discardLogger()).WithBaseURL(srv.URL)
	out, err := service.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, msgNoResponse, out)
}

func TestVeniceService_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"invalid model","type":"invalid_request","code":"400"}}`))
	}))
	defer srv.Close()

	service := NewVeniceService("k", "m", discardLogger()).WithBaseURL(srv.URL)
	_, err := service.Chat(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model")
}

func TestNarratorReplyFormat(t *testing.T) {
	format := narratorReplyFormat()
	assert.True(t, format.JSONSchema.Strict)

	required := format.JSONSchema.Schema["required"].([]string)
	props := format.JSONSchema.Schema["properties"].(map[string]interface{})
	for _, name := range required {
		assert.Contains(t, props, name)
	}
	assert.ElementsMatch(t, []string{"scenario_text", "choices", "theme", "effects", "outcome"}, required)
}
