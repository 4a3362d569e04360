// Package generation abstracts "produce a code sample for this prompt" over
// pluggable backends. The harness is written against the Client interface
// only; implementations are selected by name from a small registry.
package generation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	pkgerrors "github.com/pkg/errors"

	"github.com/skillcheck/skillcheck/pkg/logger"
)

// Request describes one generation call for a scenario
type Request struct {
	Prompt       string
	SkillName    string
	ScenarioName string
	// SkillContext is the skill's reference text, prefixed to the prompt
	// when Config.IncludeSkillContext is set.
	SkillContext string
}

// Result is the output of one generation call. Callers take ownership of the
// returned value immediately.
type Result struct {
	Code       string `json:"code"`
	Prompt     string `json:"prompt"`
	SkillName  string `json:"skill_name"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
	DurationMs int64  `json:"duration_ms"`
	// RawResponse preserves the backend's unprocessed response for audit
	RawResponse string `json:"raw_response,omitempty"`
}

// RetryConfig controls retry behavior for live backends
type RetryConfig struct {
	Attempts     int    `mapstructure:"attempts" yaml:"attempts"`
	InitialDelay int    `mapstructure:"initial_delay" yaml:"initial_delay"` // milliseconds
	MaxDelay     int    `mapstructure:"max_delay" yaml:"max_delay"`         // milliseconds
	BackoffType  string `mapstructure:"backoff_type" yaml:"backoff_type"`   // "fixed" or "exponential"
}

// DefaultRetryConfig is applied when a config carries no retry settings
var DefaultRetryConfig = RetryConfig{
	Attempts:     3,
	InitialDelay: 1000,
	MaxDelay:     10000,
	BackoffType:  "exponential",
}

// Config holds generation settings for one suite
type Config struct {
	Provider            string      `mapstructure:"provider" yaml:"provider"`
	Model               string      `mapstructure:"model" yaml:"model"`
	MaxTokens           int         `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature         float64     `mapstructure:"temperature" yaml:"temperature"`
	IncludeSkillContext bool        `mapstructure:"include_skill_context" yaml:"include_skill_context"`
	TimeoutSeconds      int         `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Retry               RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// Client produces a code sample for a prompt. Generate must never substitute
// empty output for a failure: callers distinguish "empty but successful"
// from "failed" through the error return.
type Client interface {
	Generate(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// systemPrompt frames every live generation call
const systemPrompt = "You are a code generation assistant. Respond with a single complete code sample that satisfies the request. Do not include explanations outside the code."

// Factory builds a named client implementation from configuration
type Factory func(cfg Config) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a named client implementation to the registry.
// It is called from implementation init functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New builds a client by registry name
func New(name string, cfg Config) (Client, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, pkgerrors.Errorf("unknown generation backend %q (available: %v)", name, RegisteredNames())
	}
	return factory(cfg)
}

// RegisteredNames lists the registered backend names
func RegisteredNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildPrompt prefixes the skill context when the config asks for it
func buildPrompt(cfg Config, req Request) string {
	if cfg.IncludeSkillContext && req.SkillContext != "" {
		return req.SkillContext + "\n\n" + req.Prompt
	}
	return req.Prompt
}

// withTimeout applies the configured per-call timeout on top of the
// caller-supplied context, which remains the cancellation authority.
func withTimeout(ctx context.Context, cfg Config) (context.Context, context.CancelFunc) {
	if cfg.TimeoutSeconds > 0 {
		return context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	}
	return ctx, func() {}
}

// withRetry runs fn under the configured retry policy
func withRetry(ctx context.Context, provider string, cfg RetryConfig, fn func() error) error {
	if cfg.Attempts == 0 {
		cfg = DefaultRetryConfig
	}

	var delayType retry.DelayTypeFunc
	switch cfg.BackoffType {
	case "fixed":
		delayType = retry.FixedDelay
	case "exponential":
		fallthrough
	default:
		delayType = retry.BackOffDelay
	}

	return retry.Do(
		fn,
		retry.RetryIf(isRetryableError),
		retry.Attempts(uint(cfg.Attempts)),
		retry.Delay(time.Duration(cfg.InitialDelay)*time.Millisecond),
		retry.MaxDelay(time.Duration(cfg.MaxDelay)*time.Millisecond),
		retry.DelayType(delayType),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("backend", provider).
				WithField("attempt", n+1).
				WithField("max_attempts", cfg.Attempts).
				Warn("retrying generation call")
		}),
	)
}

func isRetryableError(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// wrapBackendErr maps transport failures to the harness error taxonomy
func wrapBackendErr(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Provider: provider, Err: err}
	}
	return &BackendError{Provider: provider, Err: err}
}
