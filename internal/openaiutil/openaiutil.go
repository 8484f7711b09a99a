// Package openaiutil is a minimal chat-completions client: one system
// message, one user message, and the first choice's text back.
package openaiutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	DefaultModel        = "gpt-3.5-turbo"
	DefaultEndpoint     = "https://api.openai.com/v1/chat/completions"
	DefaultSystemPrompt = "You are a helpful assistant."
	defaultTimeout      = 60 * time.Second
	maxErrorBodyBytes   = 512
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMissingKey is returned when neither the config nor OPENAI_API_KEY
// provides a key.
var ErrMissingKey = errors.New("OPENAI_API_KEY missing; set openai.api_key or environment variable")

type Config struct {
	APIKey       string
	Model        string
	Endpoint     string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	Timeout      time.Duration
}

type request struct {
	Model               string            `json:"model"`
	MaxCompletionTokens int               `json:"max_completion_tokens,omitempty"`
	Temperature         float64           `json:"temperature,omitempty"`
	Messages            []message         `json:"messages"`
	ResponseFormat      map[string]string `json:"response_format,omitempty"`
	ReasoningEffort     string            `json:"reasoning_effort,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client sends prompts to a chat-completions endpoint.
type Client struct {
	cfg  Config
	key  string
	http *http.Client
}

// New resolves defaults and the API key. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if key == "" {
		return nil, ErrMissingKey
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, key: key, http: httpClient}, nil
}

// Model returns the resolved model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Generate posts userContent and returns the first choice's message text.
// Transport errors, non-2xx statuses, API error objects, and empty choice
// lists are all returned as errors.
func (c *Client) Generate(ctx context.Context, userContent string) (string, error) {
	reqBody := request{
		Model:               c.cfg.Model,
		MaxCompletionTokens: c.cfg.MaxTokens,
		Messages: []message{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: userContent},
		},
	}
	if strings.HasPrefix(c.cfg.Model, "gpt-5") {
		reqBody.ResponseFormat = map[string]string{"type": "text"}
		reqBody.ReasoningEffort = "minimal"
	} else if c.cfg.Temperature > 0 {
		reqBody.Temperature = c.cfg.Temperature
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal OpenAI request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build OpenAI request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call OpenAI: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read OpenAI response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("OpenAI HTTP %s: %s", resp.Status, truncate(body, maxErrorBodyBytes))
	}

	var oaResp response
	if err := json.Unmarshal(body, &oaResp); err != nil {
		return "", fmt.Errorf("parse OpenAI response: %w", err)
	}
	if oaResp.Error != nil {
		return "", fmt.Errorf("OpenAI error: %s", oaResp.Error.Message)
	}
	if len(oaResp.Choices) == 0 {
		return "", errors.New("OpenAI response had no choices")
	}
	return strings.TrimSpace(oaResp.Choices[0].Message.Content), nil
}

func truncate(body []byte, limit int) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
