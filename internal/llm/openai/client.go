package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"quality-backend/internal/llm"
	"quality-backend/internal/shared/metrics"
	"quality-backend/internal/shared/telemetry"
)

var apiURL = "https://api.openai.com/v1/chat/completions"

const maxResponseBytes = 1 << 20

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// APIError is an error reported by the provider.
type APIError struct {
	Message string
	Type    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai error: %s (%s)", e.Message, e.Type)
}

// SuggestFix asks the model for a verdict on one issue. Output that is not
// valid JSON gets one repair round trip.
func (c *Client) SuggestFix(ctx context.Context, input llm.IssueInput) (llm.Suggestion, error) {
	raw, err := c.complete(ctx, BuildPrompt(input))
	if err != nil {
		return llm.Suggestion{}, err
	}
	if !json.Valid(raw) {
		raw, err = c.complete(ctx, buildFixPrompt(raw))
		if err != nil {
			return llm.Suggestion{}, err
		}
	}
	s, err := llm.ParseSuggestion(raw)
	if err != nil {
		return llm.Suggestion{}, err
	}
	s.Model = c.model
	return s, nil
}

// complete sends messages, retrying once without temperature when the model
// rejects it.
func (c *Client) complete(ctx context.Context, messages []Message) ([]byte, error) {
	withTemp := !omitTemperature(c.model)
	raw, err := c.completeOnce(ctx, messages, withTemp)
	var apiErr *APIError
	if withTemp && errors.As(err, &apiErr) && isTemperatureUnsupported(apiErr.Message) {
		telemetry.Info("llm.temperature.retry", map[string]any{
			"request_id": telemetry.RequestIDFromContext(ctx),
			"model":      c.model,
		})
		return c.completeOnce(ctx, messages, false)
	}
	return raw, err
}

func (c *Client) completeOnce(ctx context.Context, messages []Message, withTemp bool) ([]byte, error) {
	defer metrics.ObserveDependency(metrics.DependencyLLM, "chat_completion", time.Now())

	reqMessages := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, chatMessage{Role: m.Role, Content: m.Content})
	}
	reqBody := chatRequest{
		Model:          c.model,
		Messages:       reqMessages,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	if withTemp {
		temp := float32(0)
		reqBody.Temperature = &temp
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("openai request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("openai response parse (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return nil, &APIError{Message: parsed.Error.Message, Type: parsed.Error.Type}
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai response missing choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("openai response empty content")
	}
	logUsage(ctx, c.model, parsed.Usage)
	return []byte(content), nil
}

func logUsage(ctx context.Context, model string, usage *chatUsage) {
	fields := map[string]any{
		"request_id": telemetry.RequestIDFromContext(ctx),
		"model":      model,
	}
	if usage != nil {
		fields["prompt_tokens"] = usage.PromptTokens
		fields["completion_tokens"] = usage.CompletionTokens
		fields["total_tokens"] = usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

// omitTemperature reports models that only accept the default temperature,
// either gpt-5 variants or those listed in LLM_NO_TEMP0_MODELS.
func omitTemperature(model string) bool {
	if isGPT5(model) {
		return true
	}
	m := strings.ToLower(strings.TrimSpace(model))
	for _, entry := range strings.Split(os.Getenv("LLM_NO_TEMP0_MODELS"), ",") {
		if strings.ToLower(strings.TrimSpace(entry)) == m && m != "" {
			return true
		}
	}
	return false
}

func isTemperatureUnsupported(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "temperature") && strings.Contains(msg, "unsupported")
}

var _ llm.Client = (*Client)(nil)
