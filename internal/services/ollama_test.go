package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/escape-engine/pkg/chat"
)

func TestOllamaService_InitModelAlreadyPresent(t *testing.T) {
	var pulls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3"}]}`))
		case "/api/pull":
			pulls.Add(1)
		}
	}))
	defer srv.Close()

	service := NewOllamaService(srv.URL, "llama3", discardLogger())
	require.NoError(t, service.InitModel(context.Background(), "llama3"))
	assert.Equal(t, int32(0), pulls.Load())
}

func TestOllamaService_InitModelPulls(t *testing.T) {
	var pulled string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/pull":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			pulled = body["name"]
		}
	}))
	defer srv.Close()

	service := NewOllamaService(srv.URL, "mistral", discardLogger())
	require.NoError(t, service.InitModel(context.Background(), "mistral"))
	assert.Equal(t, "mistral", pulled)
}

func TestOllamaService_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	service := NewOllamaService(srv.URL, "m", discardLogger())
	service.readyRetries = 2
	service.readyDelay = 0

	err := service.InitModel(context.Background(), "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}

func TestOllamaService_Chat(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"scenario_text\":\"dark\"}"}}`))
	}))
	defer srv.Close()

	service := NewOllamaService(srv.URL, "llama3", discardLogger())
	out, err := service.Chat(context.Background(), []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "look"}})
	require.NoError(t, err)

	assert.Equal(t, `{"scenario_text":"dark"}`, out)
	assert.Equal(t, "json", got["format"])
	assert.Equal(t, false, got["stream"])
}

func TestOllamaService_ChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	service := NewOllamaService(srv.URL, "llama3", discardLogger())
	_, err := service.Chat(context.Background(), nil)
	assert.Error(t, err)
}
