package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteSendsWireFormatAndParsesToolCalls(t *testing.T) {
	var captured openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "search_invoices", "arguments": "{\"Invoice Number\": \"INV-450\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	provider := NewOpenAI(server.URL, "sk-test", 5*time.Second)
	response, err := provider.Complete(context.Background(), Request{
		Model: "gpt-4o-mini",
		Messages: []Message{
			SystemMessage("system"),
			UserMessage("where is invoice INV-450?"),
		},
		Tools: []ToolDefinition{{
			Name:       "search_invoices",
			Parameters: json.RawMessage(`{"type":"object"}`),
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "auto", captured.ToolChoice)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)

	require.True(t, response.HasToolCalls())
	assert.Equal(t, "tool_calls", response.FinishReason)
	call := response.Message.ToolCalls[0]
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "search_invoices", call.Name)
	assert.JSONEq(t, `{"Invoice Number": "INV-450"}`, string(call.Arguments))
	assert.Equal(t, 15, response.Usage.TotalTokens)
}

func TestCompleteRoundTripsToolResultMessages(t *testing.T) {
	var captured openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Done."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	provider := NewOpenAI(server.URL, "", 5*time.Second)
	assistant := Message{Role: RoleAssistant, ToolCalls: []ToolCall{{
		ID: "call_1", Name: "search_invoices", Arguments: json.RawMessage(`{}`),
	}}}
	_, err := provider.Complete(context.Background(), Request{
		Model: "gpt-4o-mini",
		Messages: []Message{
			assistant,
			ToolResultMessage("call_1", "search_invoices", `[{"Invoice Number":"INV-450"}]`),
		},
	})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 2)
	require.Len(t, captured.Messages[0].ToolCalls, 1)
	assert.Equal(t, "function", captured.Messages[0].ToolCalls[0].Type)
	assert.Equal(t, "tool", captured.Messages[1].Role)
	assert.Equal(t, "call_1", captured.Messages[1].ToolCallID)
	assert.Equal(t, "search_invoices", captured.Messages[1].Name)
}

func TestCompleteDecodesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	provider := NewOpenAI(server.URL, "sk-test", 5*time.Second)
	_, err := provider.Complete(context.Background(), Request{Model: "gpt-4o-mini"})
	require.Error(t, err)

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusTooManyRequests, providerErr.StatusCode)
	assert.Equal(t, "rate_limit_error", providerErr.Type)
	assert.Contains(t, providerErr.Error(), "slow down")
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	provider := NewOpenAI(server.URL, "", 5*time.Second)
	_, err := provider.Complete(context.Background(), Request{Model: "gpt-4o-mini"})
	assert.Error(t, err)
}
