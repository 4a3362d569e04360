package generation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// AnthropicClient is the default live generation backend, talking to the
// Anthropic Messages API. Credentials come from the standard
// ANTHROPIC_API_KEY environment variable.
type AnthropicClient struct {
	client anthropic.Client
	cfg    Config
}

// NewAnthropicClient creates a live Anthropic-backed client
func NewAnthropicClient(cfg Config) *AnthropicClient {
	if cfg.Model == "" {
		cfg.Model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}

	return &AnthropicClient{
		client: anthropic.NewClient(),
		cfg:    cfg,
	}
}

// Name implements Client
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Generate implements Client
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := withTimeout(ctx, c.cfg)
	defer cancel()

	prompt := buildPrompt(c.cfg, req)
	params := anthropic.MessageNewParams{
		MaxTokens: int64(c.cfg.MaxTokens),
		Model:     anthropic.Model(c.cfg.Model),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(c.cfg.Temperature)
	}

	start := time.Now()
	var message *anthropic.Message
	err := withRetry(ctx, "anthropic", c.cfg.Retry, func() error {
		var apiErr error
		message, apiErr = c.client.Messages.New(ctx, params)
		return apiErr
	})
	if err != nil {
		return nil, wrapBackendErr("anthropic", err)
	}

	var code string
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			code += text.Text
		}
	}

	raw, _ := json.Marshal(message)

	return &Result{
		Code:        code,
		Prompt:      prompt,
		SkillName:   req.SkillName,
		Model:       c.cfg.Model,
		TokensUsed:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
		DurationMs:  time.Since(start).Milliseconds(),
		RawResponse: string(raw),
	}, nil
}

func init() {
	Register("anthropic", func(cfg Config) (Client, error) {
		return NewAnthropicClient(cfg), nil
	})
}
