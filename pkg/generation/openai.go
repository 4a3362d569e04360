package generation

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient is an alternative live generation backend using the OpenAI
// chat completions API.
type OpenAIClient struct {
	client *openai.Client
	cfg    Config
}

// NewOpenAIClient creates a live OpenAI-backed client
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}

	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}

	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		cfg:    cfg,
	}, nil
}

// Name implements Client
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Generate implements Client
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := withTimeout(ctx, c.cfg)
	defer cancel()

	prompt := buildPrompt(c.cfg, req)
	params := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: float32(c.cfg.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	start := time.Now()
	var response openai.ChatCompletionResponse
	err := withRetry(ctx, "openai", c.cfg.Retry, func() error {
		var apiErr error
		response, apiErr = c.client.CreateChatCompletion(ctx, params)
		return apiErr
	})
	if err != nil {
		return nil, wrapBackendErr("openai", err)
	}

	if len(response.Choices) == 0 {
		return nil, &BackendError{Provider: "openai", Err: errors.New("response contains no choices")}
	}

	raw, _ := json.Marshal(response)

	return &Result{
		Code:        response.Choices[0].Message.Content,
		Prompt:      prompt,
		SkillName:   req.SkillName,
		Model:       c.cfg.Model,
		TokensUsed:  response.Usage.TotalTokens,
		DurationMs:  time.Since(start).Milliseconds(),
		RawResponse: string(raw),
	}, nil
}

func init() {
	Register("openai", func(cfg Config) (Client, error) {
		return NewOpenAIClient(cfg)
	})
}
