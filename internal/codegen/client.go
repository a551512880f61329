package codegen

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/exponent-ml/exponent/internal/domain"
	"github.com/exponent-ml/exponent/internal/prompt"
)

// Client calls an OpenAI-compatible chat completions endpoint to generate
// project source files. The agent is a black box returning text; the only
// validation applied here is that each expected artifact is non-empty.
type Client struct {
	client   *resty.Client
	model    string
	endpoint string
}

// Config holds configuration for the code generation client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient creates a code generation client. Transport errors and
// 5xx/429 responses are retried with backoff up to MaxRetries; any other
// failure is surfaced immediately.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)
	client.SetRetryCount(cfg.MaxRetries)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500 || r.StatusCode() == 429
	})

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &Client{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
	}
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt and returns the generated artifacts keyed by
// file name. Auth and quota failures are not retried; the provider's
// message is attached to the returned error.
func (c *Client) Generate(ctx context.Context, req *prompt.Request) (domain.GeneratedFiles, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   4000,
		Temperature: 0.7,
	}

	var resp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		Post(c.endpoint)

	if err != nil {
		return nil, fmt.Errorf("failed to call code generation API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := string(httpResp.Body())
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return nil, &domain.GenerationError{StatusCode: httpResp.StatusCode(), Message: msg}
	}

	if resp.Error != nil {
		return nil, &domain.GenerationError{Message: resp.Error.Message}
	}

	if len(resp.Choices) == 0 {
		return nil, &domain.GenerationError{
			StatusCode: httpResp.StatusCode(),
			Message:    "no choices in response",
		}
	}

	files := ExtractFiles(resp.Choices[0].Message.Content)
	for _, name := range []string{domain.FileModel, domain.FileTrain, domain.FilePredict} {
		if files[name] == "" {
			return nil, &domain.GenerationError{
				Message: fmt.Sprintf("response did not contain %s", name),
			}
		}
	}
	return files, nil
}
