package generation

import (
	"context"
	"strings"
)

const defaultPlaceholder = "# mock generation: no canned response configured for this scenario\n"

// MockClient returns canned responses keyed by scenario name. It is fully
// deterministic and is used in CI and offline runs. Scenarios without a
// canned response get a configurable placeholder flagged as low-confidence
// via TokensUsed = 0.
type MockClient struct {
	responses   map[string]string
	placeholder string
}

// MockOption configures a MockClient
type MockOption func(*MockClient)

// WithResponses sets the canned responses by scenario name
func WithResponses(responses map[string]string) MockOption {
	return func(m *MockClient) {
		for name, code := range responses {
			m.responses[name] = code
		}
	}
}

// WithPlaceholder overrides the placeholder for scenarios without a canned response
func WithPlaceholder(placeholder string) MockOption {
	return func(m *MockClient) {
		m.placeholder = placeholder
	}
}

// NewMockClient creates a mock generation client
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		responses:   make(map[string]string),
		placeholder: defaultPlaceholder,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements Client
func (m *MockClient) Name() string {
	return "mock"
}

// Generate implements Client. Canned responses report an approximate token
// count so they are distinguishable from the zero-confidence placeholder.
func (m *MockClient) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapBackendErr("mock", err)
	}

	result := &Result{
		Prompt:    req.Prompt,
		SkillName: req.SkillName,
		Model:     "mock",
	}

	if code, ok := m.responses[req.ScenarioName]; ok {
		result.Code = code
		result.RawResponse = code
		result.TokensUsed = len(strings.Fields(code))
		return result, nil
	}

	result.Code = m.placeholder
	result.RawResponse = m.placeholder
	result.TokensUsed = 0
	return result, nil
}

func init() {
	Register("mock", func(Config) (Client, error) {
		return NewMockClient(), nil
	})
}
