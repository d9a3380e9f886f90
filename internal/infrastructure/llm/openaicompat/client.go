package openaicompat

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/albertai/studyset/internal/core/domain"
	"github.com/albertai/studyset/internal/infrastructure/resilience"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096

	completionsPath = "/chat/completions"
)

type Config struct {
	BaseURL      string
	Model        string
	APIKey       string
	APIKeyHeader string
	// Temperature nil means DefaultTemperature. Zero is sent as zero.
	Temperature  *float64
	MaxTokens    int
}

// Client calls an OpenAI-compatible chat-completions endpoint.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	endpoint     string
	model        string
	apiKey       string
	apiKeyHeader string
	temperature  float64
	maxTokens    int
	httpClient   *http.Client
	executor     *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("llm base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("llm model is required")
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}

	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Client{
		endpoint:     base + completionsPath,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		apiKeyHeader: strings.TrimSpace(cfg.APIKeyHeader),
		temperature:  temperature,
		maxTokens:    maxTokens,
		// Per-attempt deadlines come from the executor.
		httpClient: &http.Client{},
		executor:   executor,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system and one user message and returns the content of the
// first choice.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var response chatResponse
	err := c.executor.Execute(ctx, "llm.chat_completion:"+c.endpoint, func(callCtx context.Context) error {
		response = chatResponse{}
		return c.postJSON(callCtx, payload, &response)
	}, classifyCompletionError)
	if err != nil {
		return "", wrapCompletionError(err)
	}

	if len(response.Choices) == 0 {
		return "", domain.WrapError(domain.ErrEmptyResponse, "chat completion", errors.New("response has no choices"))
	}
	content := response.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", domain.WrapError(domain.ErrEmptyResponse, "chat completion", errors.New("first choice has no content"))
	}
	return content, nil
}
