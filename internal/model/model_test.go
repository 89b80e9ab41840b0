package model

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mety-backend/internal/config"
	"mety-backend/pkg/logger"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, handle func(t *testing.T, body map[string]any) (int, any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		status, resp := handle(t, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestOpenAIModel(url string) *openaiChatModel {
	return newOpenAIChatModel(config.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: url + "/v1",
		Model:   "gpt-3.5-turbo",
	}, &http.Client{Timeout: 5 * time.Second})
}

func TestOpenAIChatModel_Generate_ForwardsMessagesAndOptions(t *testing.T) {
	server := completionServer(t, func(t *testing.T, body map[string]any) (int, any) {
		assert.Equal(t, "gpt-3.5-turbo", body["model"])
		assert.EqualValues(t, 1000, body["max_tokens"])
		assert.InDelta(t, 0.7, body["temperature"], 1e-6)

		messages := body["messages"].([]any)
		if !assert.Len(t, messages, 3) {
			return http.StatusBadRequest, nil
		}
		roles := make([]string, 0, len(messages))
		for _, m := range messages {
			roles = append(roles, m.(map[string]any)["role"].(string))
		}
		assert.Equal(t, []string{"system", "assistant", "user"}, roles)

		return http.StatusOK, map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-3.5-turbo",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": "A derivative measures change."},
				"finish_reason": "stop",
			}},
		}
	})

	m := newTestOpenAIModel(server.URL)
	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("persona"),
		schema.AssistantMessage("hello", nil),
		schema.UserMessage("Explain derivatives"),
	}, einoModel.WithMaxTokens(1000), einoModel.WithTemperature(0.7))

	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, msg.Role)
	assert.Equal(t, "A derivative measures change.", msg.Content)
}

func TestOpenAIChatModel_Generate_EmptyChoices(t *testing.T) {
	server := completionServer(t, func(t *testing.T, body map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"id": "chatcmpl-2", "choices": []any{}}
	})

	_, err := newTestOpenAIModel(server.URL).Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestOpenAIChatModel_Generate_ProviderError(t *testing.T) {
	server := completionServer(t, func(t *testing.T, body map[string]any) (int, any) {
		return http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "upstream exploded", "type": "server_error"},
		}
	})

	_, err := newTestOpenAIModel(server.URL).Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyCompletion)
}

func TestNewChatModel(t *testing.T) {
	cfg := &config.Config{
		Model:  config.ModelConfig{Provider: config.ProviderOpenAI},
		OpenAI: config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-3.5-turbo"},
		Chat:   config.ChatConfig{ProviderTimeout: time.Second},
	}
	m, err := NewChatModel(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, m)

	cfg.Model.Provider = "llama"
	_, err = NewChatModel(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrUnknownProvider)
}

func TestDebugTransport_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, logger.InitWithOutput("debug", "json", &buf))

	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := new(bytes.Buffer)
		b.ReadFrom(r.Body)
		gotBody = b.String()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := &http.Client{Transport: NewDebugTransport(nil, true)}
	req, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(`{"api_key":"sk-secret","prompt":"hi"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer sk-secret")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, `{"api_key":"sk-secret","prompt":"hi"}`, gotBody, "body must reach the server untouched")
	assert.NotContains(t, buf.String(), "sk-secret")
	assert.Contains(t, buf.String(), "[REDACTED]")
	assert.Contains(t, buf.String(), "provider request")
}

func TestSplitForGemini(t *testing.T) {
	system, history, last, err := splitForGemini([]*schema.Message{
		schema.SystemMessage("persona"),
		schema.UserMessage("q1"),
		schema.AssistantMessage("a1", nil),
		schema.UserMessage("q2"),
	})
	require.NoError(t, err)

	assert.Equal(t, "persona", system)
	assert.Equal(t, "q2", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, genai.Text("q1"), history[0].Parts[0])
	assert.Equal(t, "model", history[1].Role)

	_, _, _, err = splitForGemini([]*schema.Message{schema.SystemMessage("persona")})
	assert.ErrorIs(t, err, errGeminiNoUserTurn)
}

func TestGeminiText(t *testing.T) {
	assert.Empty(t, geminiText(nil))
	assert.Empty(t, geminiText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("Photo"), genai.Text("synthesis")}},
	}}}
	assert.Equal(t, "Photosynthesis", geminiText(resp))
}
