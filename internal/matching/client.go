package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrMissingAPIKey is the fatal configuration error raised before any
// network call when the completion-service credential is absent.
var ErrMissingAPIKey = errors.New("completion API key not configured")

type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Client is the interface the matcher and assistant use to talk to a
// chat-completion service.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

const (
	defaultEndpoint  = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel     = "mixtral-8x7b-32768"
	completionTemp   = 0.7
	completionTokens = 1000
)

// HTTPClient posts OpenAI-compatible chat completions with bearer auth.
type HTTPClient struct {
	Endpoint string
	Model    string
	key      string
	Client   *http.Client
}

// NewHTTPClient fails immediately when the key is empty; callers surface
// that as a configuration error, never as a degraded result.
func NewHTTPClient(endpoint, model, key string) (*HTTPClient, error) {
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if model == "" {
		model = defaultModel
	}
	return &HTTPClient{
		Endpoint: endpoint,
		Model:    model,
		key:      key,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *HTTPClient) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: completionTemp,
		MaxTokens:   completionTokens,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("completion service returned %d", resp.StatusCode)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}
