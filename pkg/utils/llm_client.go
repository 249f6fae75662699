package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// LLMProvider represents the type of LLM provider
type LLMProvider string

const (
	// OpenAI provider
	OpenAI LLMProvider = "openai"
	// Anthropic provider
	Anthropic LLMProvider = "anthropic"
	// Generic provider for OpenAI compatible APIs
	Generic LLMProvider = "generic"
)

const (
	defaultLLMTimeout         = 120 * time.Second
	defaultAnthropicMaxTokens = 4096
)

// ErrEmptyCompletion is returned when the provider answers without any text.
var ErrEmptyCompletion = errors.New("model returned no choices")

// LLMClient provides a unified interface for interacting with different LLM providers
type LLMClient struct {
	httpClient *HTTPClient
	provider   LLMProvider
	apiKey     string
	baseURL    string
	timeout    time.Duration
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMRequest represents a request to an LLM
type LLMRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

// LLMResponse represents a response from an LLM
type LLMResponse struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
	Usage   Usage    `json:"usage,omitempty"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Text returns the first choice's content.
func (r *LLMResponse) Text() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return r.Choices[0].Message.Content, nil
}

// LLMOption configures an LLMClient
type LLMOption func(*LLMClient)

// WithBaseURL overrides the provider's default endpoint.
func WithBaseURL(baseURL string) LLMOption {
	return func(c *LLMClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(client *HTTPClient) LLMOption {
	return func(c *LLMClient) {
		c.httpClient = client
	}
}

// WithTimeout bounds each completion call.
func WithTimeout(timeout time.Duration) LLMOption {
	return func(c *LLMClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewLLMClient creates a new LLM client
func NewLLMClient(provider LLMProvider, apiKey string, opts ...LLMOption) *LLMClient {
	client := &LLMClient{
		httpClient: NewHTTPClient(),
		provider:   provider,
		apiKey:     apiKey,
		timeout:    defaultLLMTimeout,
	}

	switch provider {
	case OpenAI:
		client.baseURL = "https://api.openai.com/v1"
	case Anthropic:
		client.baseURL = "https://api.anthropic.com/v1"
	}

	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Provider returns the configured provider.
func (c *LLMClient) Provider() LLMProvider {
	return c.provider
}

// Complete sends a completion request to the LLM
func (c *LLMClient) Complete(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	switch c.provider {
	case OpenAI, Generic:
		if c.baseURL == "" {
			return nil, fmt.Errorf("%s provider requires a base URL", c.provider)
		}
		return c.completeOpenAI(ctx, request)
	case Anthropic:
		return c.completeAnthropicMessages(ctx, request)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", c.provider)
	}
}

// completeOpenAI sends a chat completion request to OpenAI or a compatible API
func (c *LLMClient) completeOpenAI(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	requestBody := map[string]interface{}{
		"model":       request.Model,
		"messages":    request.Messages,
		"temperature": request.Temperature,
	}
	if request.MaxTokens > 0 {
		requestBody["max_tokens"] = request.MaxTokens
	}
	if len(request.Stop) > 0 {
		requestBody["stop"] = request.Stop
	}

	resp, err := c.httpClient.Do(ctx, &HTTPRequest{
		URL:    c.baseURL + "/chat/completions",
		Method: "POST",
		Body:   requestBody,
		Headers: map[string]string{
			"Authorization": "Bearer " + c.apiKey,
			"Content-Type":  "application/json",
		},
		Timeout: c.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%s API request failed: %w", c.provider, err)
	}

	if !resp.OK() {
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		message := string(resp.RawBody)
		if err := json.Unmarshal(resp.RawBody, &errorResp); err == nil && errorResp.Error.Message != "" {
			message = errorResp.Error.Message
		}
		return nil, &StatusError{Service: string(c.provider), StatusCode: resp.StatusCode, Body: message}
	}

	var openAIResp LLMResponse
	if err := json.Unmarshal(resp.RawBody, &openAIResp); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", c.provider, err)
	}
	if len(openAIResp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}
	return &openAIResp, nil
}

// completeAnthropicMessages sends a completion request to the Anthropic messages API
func (c *LLMClient) completeAnthropicMessages(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	var systemPrompt string
	var messages []Message
	for _, msg := range request.Messages {
		if msg.Role == "system" {
			systemPrompt = msg.Content
		} else {
			messages = append(messages, msg)
		}
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	requestBody := map[string]interface{}{
		"model":       request.Model,
		"messages":    messages,
		"temperature": request.Temperature,
		"max_tokens":  maxTokens,
	}
	if systemPrompt != "" {
		requestBody["system"] = systemPrompt
	}
	if len(request.Stop) > 0 {
		requestBody["stop_sequences"] = request.Stop
	}

	resp, err := c.httpClient.Do(ctx, &HTTPRequest{
		URL:    c.baseURL + "/messages",
		Method: "POST",
		Body:   requestBody,
		Headers: map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": "2023-06-01",
			"Content-Type":      "application/json",
		},
		Timeout: c.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("Anthropic API request failed: %w", err)
	}
	if !resp.OK() {
		return nil, &StatusError{Service: "Anthropic", StatusCode: resp.StatusCode, Body: string(resp.RawBody)}
	}

	var anthropicResp struct {
		ID         string `json:"id"`
		Model      string `json:"model"`
		StopReason string `json:"stop_reason"`
		Content    []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(resp.RawBody, &anthropicResp); err != nil {
		return nil, fmt.Errorf("failed to parse Anthropic response: %w", err)
	}

	var texts []string
	for _, block := range anthropicResp.Content {
		if block.Type == "text" {
			texts = append(texts, block.Text)
		}
	}
	if len(texts) == 0 {
		return nil, ErrEmptyCompletion
	}

	return &LLMResponse{
		ID:    anthropicResp.ID,
		Model: anthropicResp.Model,
		Choices: []Choice{{
			Message:      Message{Role: "assistant", Content: strings.Join(texts, "")},
			FinishReason: anthropicResp.StopReason,
		}},
		Usage: Usage{
			PromptTokens:     anthropicResp.Usage.InputTokens,
			CompletionTokens: anthropicResp.Usage.OutputTokens,
			TotalTokens:      anthropicResp.Usage.InputTokens + anthropicResp.Usage.OutputTokens,
		},
	}, nil
}
