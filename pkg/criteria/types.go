// Package criteria loads acceptance criteria reference documents and turns
// them into structured, machine-checkable validation rules. Documents are
// free-form markdown; the loader extracts exactly the subset of guidance it
// can encode as a rule and ignores the rest.
package criteria

import "strings"

// CodePattern is a single example snippet extracted from a reference
// document, tagged as correct or incorrect usage.
type CodePattern struct {
	Code        string `json:"code"`
	Language    string `json:"language"`
	Description string `json:"description,omitempty"`
	IsCorrect   bool   `json:"is_correct"`
	Section     string `json:"section"`
}

// ValidationRule bundles the example patterns and structural requirements
// extracted from one document section.
type ValidationRule struct {
	Name              string        `json:"name"`
	Description       string        `json:"description,omitempty"`
	CorrectPatterns   []CodePattern `json:"correct_patterns,omitempty"`
	IncorrectPatterns []CodePattern `json:"incorrect_patterns,omitempty"`
	RequiredImports   []string      `json:"required_imports,omitempty"`
	ForbiddenImports  []string      `json:"forbidden_imports,omitempty"`
	RequiredPatterns  []string      `json:"required_patterns,omitempty"`
	ForbiddenPatterns []string      `json:"forbidden_patterns,omitempty"`
}

// AcceptanceCriteria is the full set of extracted rules for one skill.
// It is built once per run and treated as read-only afterwards, so it is
// safe to share across concurrent suite runs.
type AcceptanceCriteria struct {
	SkillName  string           `json:"skill_name"`
	SourcePath string           `json:"source_path"`
	Rules      []ValidationRule `json:"rules"`
	Language   string           `json:"language"`

	// Flattened unions across rules, kept for fast matching.
	CorrectPatterns   []CodePattern `json:"correct_patterns,omitempty"`
	IncorrectPatterns []CodePattern `json:"incorrect_patterns,omitempty"`
}

// Rule returns a rule by name (case-insensitive), or nil.
func (c *AcceptanceCriteria) Rule(name string) *ValidationRule {
	for i := range c.Rules {
		if strings.EqualFold(c.Rules[i].Name, name) {
			return &c.Rules[i]
		}
	}
	return nil
}

// Empty reports whether the document yielded no enforceable rules.
// A documentation-only skill is valid; callers must treat it as
// "no enforceable criteria" rather than an error.
func (c *AcceptanceCriteria) Empty() bool {
	return len(c.Rules) == 0
}

// RequiredCheckCount counts the required imports and patterns across all
// rules. Used to decide whether an empty code sample should be flagged.
func (c *AcceptanceCriteria) RequiredCheckCount() int {
	n := 0
	for _, r := range c.Rules {
		n += len(r.RequiredImports) + len(r.RequiredPatterns)
	}
	return n
}
