// Package suite defines skill test suites: ordered scenarios paired with
// generation configuration, loaded from a skill's tests/scenarios.yaml.
package suite

import (
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/skillcheck/skillcheck/pkg/generation"
)

// Scenario is one (prompt, expectation) pair used to probe generated code
type Scenario struct {
	Name              string   `yaml:"name" json:"name"`
	Prompt            string   `yaml:"prompt" json:"prompt"`
	ExpectedPatterns  []string `yaml:"expected_patterns" json:"expected_patterns,omitempty"`
	ForbiddenPatterns []string `yaml:"forbidden_patterns" json:"forbidden_patterns,omitempty"`
	Tags              []string `yaml:"tags" json:"tags,omitempty"`
	// MockResponse is canned code served by the mock client when running offline
	MockResponse string `yaml:"mock_response" json:"mock_response,omitempty"`
}

// Suite is the full scenario set for one skill
type Suite struct {
	SkillName  string
	Scenarios  []Scenario
	Generation generation.Config

	// CriteriaPath locates the skill's acceptance criteria document
	CriteriaPath string
	// SkillContext is the skill's reference text, injected into prompts
	// when the generation config asks for it
	SkillContext string
}

// suiteFile is the on-disk YAML shape. The generation section stays a raw
// map so that only keys the author actually set override the global
// defaults during Resolve.
type suiteFile struct {
	Skill      string         `yaml:"skill"`
	Generation map[string]any `yaml:"generation"`
	Scenarios  []Scenario     `yaml:"scenarios"`
}

// Load reads a scenarios.yaml file and resolves its generation config over
// the supplied defaults.
func Load(path string, defaults generation.Config) (*Suite, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read suite file %s", path)
	}
	return Parse(content, defaults)
}

// Parse parses scenarios.yaml content
func Parse(content []byte, defaults generation.Config) (*Suite, error) {
	var file suiteFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse suite file")
	}

	if file.Skill == "" {
		return nil, errors.New("suite file is missing the skill name")
	}

	seen := make(map[string]bool, len(file.Scenarios))
	for i, scenario := range file.Scenarios {
		if scenario.Name == "" {
			return nil, errors.Errorf("scenario %d has no name", i)
		}
		if scenario.Prompt == "" {
			return nil, errors.Errorf("scenario %q has no prompt", scenario.Name)
		}
		if seen[scenario.Name] {
			return nil, errors.Errorf("duplicate scenario name %q", scenario.Name)
		}
		seen[scenario.Name] = true
	}

	cfg, err := mergeGenerationConfig(defaults, file.Generation)
	if err != nil {
		return nil, err
	}

	return &Suite{
		SkillName:  file.Skill,
		Scenarios:  file.Scenarios,
		Generation: cfg,
	}, nil
}

// mergeGenerationConfig overlays the suite's generation settings on the
// global defaults. Only keys present in the suite file overwrite defaults.
func mergeGenerationConfig(defaults generation.Config, overrides map[string]any) (generation.Config, error) {
	merged := defaults
	if len(overrides) == 0 {
		return merged, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &merged,
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return merged, errors.Wrap(err, "failed to create generation config decoder")
	}
	if err := decoder.Decode(overrides); err != nil {
		return merged, errors.Wrap(err, "failed to merge generation config")
	}

	return merged, nil
}

// Filter returns a copy of the suite containing only scenarios whose name
// contains the given substring. An empty filter keeps everything.
func (s *Suite) Filter(substr string) *Suite {
	if substr == "" {
		return s
	}

	filtered := *s
	filtered.Scenarios = nil
	for _, scenario := range s.Scenarios {
		if strings.Contains(scenario.Name, substr) {
			filtered.Scenarios = append(filtered.Scenarios, scenario)
		}
	}
	return &filtered
}

// MockResponses collects the canned responses for the mock client
func (s *Suite) MockResponses() map[string]string {
	responses := make(map[string]string)
	for _, scenario := range s.Scenarios {
		if scenario.MockResponse != "" {
			responses[scenario.Name] = scenario.MockResponse
		}
	}
	return responses
}
