package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAI implements [Provider] against any endpoint that speaks the
// OpenAI Chat Completions wire format.
type OpenAI struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewOpenAI creates a provider for the given base URL and API key. The
// timeout bounds each completion call end to end.
func NewOpenAI(baseURL, apiKey string, timeout time.Duration) *OpenAI {
	return &OpenAI{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Complete sends a non-streaming request and returns the full response.
func (provider *OpenAI) Complete(ctx context.Context, request Request) (*Response, error) {
	wireRequest := provider.buildRequest(request)

	body, err := json.Marshal(wireRequest)
	if err != nil {
		return nil, fmt.Errorf("llm/openai: marshaling request: %w", err)
	}

	endpoint := provider.baseURL + "/v1/chat/completions"
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm/openai: creating request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if provider.apiKey != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+provider.apiKey)
	}

	httpResponse, err := provider.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("llm/openai: sending request: %w", err)
	}
	defer httpResponse.Body.Close()

	responseBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("llm/openai: reading response: %w", err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		return nil, decodeError(httpResponse.StatusCode, responseBody)
	}

	var wireResponse openaiResponse
	if err := json.Unmarshal(responseBody, &wireResponse); err != nil {
		return nil, fmt.Errorf("llm/openai: decoding response: %w", err)
	}
	if len(wireResponse.Choices) == 0 {
		return nil, fmt.Errorf("llm/openai: response contained no choices")
	}

	return wireResponse.toResponse(), nil
}

// ProviderError is returned when the LLM API responds with an error.
type ProviderError struct {
	StatusCode int
	Type       string
	Message    string
}

func (err *ProviderError) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

func decodeError(statusCode int, body []byte) error {
	var wireError struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wireError); err != nil || wireError.Error.Message == "" {
		return &ProviderError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
	}
	return &ProviderError{
		StatusCode: statusCode,
		Type:       wireError.Error.Type,
		Message:    wireError.Error.Message,
	}
}

// buildRequest converts our types to the OpenAI wire format.
func (provider *OpenAI) buildRequest(request Request) openaiRequest {
	wireRequest := openaiRequest{
		Model:     request.Model,
		MaxTokens: request.MaxTokens,
	}

	for _, message := range request.Messages {
		wireMessage := openaiMessage{
			Role:       string(message.Role),
			Content:    message.Content,
			ToolCallID: message.ToolCallID,
			Name:       message.Name,
		}
		for _, call := range message.ToolCalls {
			wireMessage.ToolCalls = append(wireMessage.ToolCalls, openaiToolCall{
				ID:   call.ID,
				Type: "function",
				Function: openaiFunctionCall{
					Name:      call.Name,
					Arguments: string(call.Arguments),
				},
			})
		}
		wireRequest.Messages = append(wireRequest.Messages, wireMessage)
	}

	for _, tool := range request.Tools {
		wireRequest.Tools = append(wireRequest.Tools, openaiTool{
			Type: "function",
			Function: openaiToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	if len(wireRequest.Tools) > 0 {
		wireRequest.ToolChoice = "auto"
	}

	return wireRequest
}

type openaiRequest struct {
	Model      string          `json:"model"`
	Messages   []openaiMessage `json:"messages"`
	Tools      []openaiTool    `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
	MaxTokens  int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openaiToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiFunctionCall `json:"function"`
}

type openaiFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiTool struct {
	Type     string               `json:"type"`
	Function openaiToolDefinition `json:"function"`
}

type openaiToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type openaiResponse struct {
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (wireResponse *openaiResponse) toResponse() *Response {
	choice := wireResponse.Choices[0]
	message := Message{
		Role:    Role(choice.Message.Role),
		Content: choice.Message.Content,
	}
	for _, call := range choice.Message.ToolCalls {
		message.ToolCalls = append(message.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}
	return &Response{
		Message:      message,
		FinishReason: choice.FinishReason,
		Usage:        wireResponse.Usage,
	}
}
