package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklog/api/internal/config"
)

func newUpstream(t *testing.T, handler http.HandlerFunc) *ChatClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewChatClient(config.LLMConfig{
		APIKey:  "sk-test",
		BaseURL: server.URL + "/v1/",
		Model:   "test-model",
		Timeout: config.Duration(5 * time.Second),
	})
}

func TestChatClientRequestShape(t *testing.T) {
	client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		assert.InDelta(t, 0.2, body.Temperature, 1e-9)
		assert.Equal(t, "json_object", body.ResponseFormat.Type)
		assert.Len(t, body.Messages, 2)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"mode\":\"readonly\"}"}}]}`))
	})

	content, err := client.Complete(context.Background(), []ChatMessage{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}})
	require.NoError(t, err)
	assert.Equal(t, `{"mode":"readonly"}`, content)
}

func TestChatClientNonSuccessStatus(t *testing.T) {
	client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), nil)
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Contains(t, upstream.Message, "429")
}

func TestChatClientNonStringContent(t *testing.T) {
	for _, body := range []string{
		`{"choices":[{"message":{"content":null}}]}`,
		`{"choices":[{"message":{"content":{"mode":"readonly"}}}]}`,
		`{"choices":[]}`,
		`garbage`,
	} {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		_, err := client.Complete(context.Background(), nil)
		var upstream *UpstreamError
		require.ErrorAs(t, err, &upstream, body)
	}
}

func TestChatClientTransportFailure(t *testing.T) {
	client := NewChatClient(config.LLMConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1", Timeout: config.Duration(time.Second)})
	_, err := client.Complete(context.Background(), nil)
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
}

func TestServiceEndToEndThroughChatClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"mode\":\"preview_patch\",\"message\":\"done\",\"patch\":{\"currentTask\":\"write\",\"evil\":1}}"}}]}`))
	}))
	defer server.Close()

	svc := NewService(config.LLMConfig{APIKey: "k", BaseURL: server.URL, Model: "m"}, nil)
	status, resp := svc.Respond(context.Background(), Request{Instruction: "set task"})

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ModePreviewPatch, resp.Mode)
	assert.Equal(t, map[string]json.RawMessage{"currentTask": json.RawMessage(`"write"`)}, resp.Patch)
}
