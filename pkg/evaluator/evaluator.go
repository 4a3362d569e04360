package evaluator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/skillcheck/skillcheck/pkg/criteria"
	"github.com/skillcheck/skillcheck/pkg/suite"
)

// Evaluator checks generated code against a skill's acceptance criteria
type Evaluator struct {
	scoring ScoreConfig
}

type Option func(*Evaluator)

// WithScoring overrides the default penalty weights
func WithScoring(cfg ScoreConfig) Option {
	return func(e *Evaluator) {
		e.scoring = cfg
	}
}

func New(opts ...Option) *Evaluator {
	e := &Evaluator{scoring: DefaultScoreConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores one generated code sample. The checks run as fixed
// phases, each sweeping every rule before the next begins: incorrect
// patterns, forbidden imports and patterns, required imports and
// patterns, correct-pattern bookkeeping, then the scenario's own
// expectations. A nil scenario skips the scenario-level checks.
func (e *Evaluator) Evaluate(crit *criteria.AcceptanceCriteria, generatedCode string, scenario *suite.Scenario) *Result {
	result := &Result{
		SkillName:     crit.SkillName,
		GeneratedCode: generatedCode,
	}
	if scenario != nil {
		result.Scenario = scenario.Name
	}

	sample := normalizeCode(generatedCode, crit.Language)

	e.checkEmptyOutput(crit, generatedCode, scenario, result)

	for i := range crit.Rules {
		e.checkIncorrectPatterns(sample, &crit.Rules[i], crit.Language, result)
	}
	for i := range crit.Rules {
		e.checkForbidden(generatedCode, &crit.Rules[i], result)
	}
	for i := range crit.Rules {
		e.checkRequired(generatedCode, &crit.Rules[i], result)
	}
	for i := range crit.Rules {
		e.checkCorrectPatterns(sample, &crit.Rules[i], crit.Language, result)
	}

	if scenario != nil {
		e.checkScenario(generatedCode, scenario, result)
	}

	result.finalize(e.scoring)
	return result
}

// checkEmptyOutput flags an empty sample when the criteria or scenario
// expected it to demonstrate something. Empty code against a skill with
// no enforceable checks is legitimately a clean pass.
func (e *Evaluator) checkEmptyOutput(crit *criteria.AcceptanceCriteria, code string, scenario *suite.Scenario, result *Result) {
	if strings.TrimSpace(code) != "" {
		return
	}
	expectations := crit.RequiredCheckCount()
	if scenario != nil {
		expectations += len(scenario.ExpectedPatterns)
	}
	if expectations == 0 {
		return
	}
	result.Findings = append(result.Findings, Finding{
		Severity: SeverityError,
		Rule:     "empty-output",
		Message:  "generated code is empty but the criteria define required checks",
	})
}

func (e *Evaluator) checkIncorrectPatterns(sample []codeLine, rule *criteria.ValidationRule, language string, result *Result) {
	for i, pattern := range rule.IncorrectPatterns {
		lines := normalizePattern(pattern.Code, patternLanguage(pattern, language))
		m := matchPattern(sample, lines, true)
		if !m.matched {
			continue
		}

		result.MatchedIncorrect = append(result.MatchedIncorrect, pattern.Section)

		finding := Finding{
			Severity:    SeverityError,
			Rule:        rule.Name,
			Message:     fmt.Sprintf("incorrect pattern from section %q found in generated code", pattern.Section),
			Line:        m.line,
			CodeSnippet: m.excerpt,
		}
		if paired := pairedCorrect(rule, i); paired != nil {
			finding.Suggestion = paired.Code
		} else {
			finding.Suggestion = fmt.Sprintf("review acceptance criteria section %q for correct usage", pattern.Section)
		}
		result.Findings = append(result.Findings, finding)
	}
}

// pairedCorrect associates an incorrect pattern with the rule's correct
// example at the same position, falling back to the rule's first correct
// example.
func pairedCorrect(rule *criteria.ValidationRule, idx int) *criteria.CodePattern {
	if len(rule.CorrectPatterns) == 0 {
		return nil
	}
	if idx < len(rule.CorrectPatterns) {
		return &rule.CorrectPatterns[idx]
	}
	return &rule.CorrectPatterns[0]
}

func (e *Evaluator) checkForbidden(code string, rule *criteria.ValidationRule, result *Result) {
	for _, imp := range rule.ForbiddenImports {
		if idx := strings.Index(code, imp); idx >= 0 {
			result.Findings = append(result.Findings, Finding{
				Severity:    SeverityError,
				Rule:        rule.Name,
				Message:     fmt.Sprintf("forbidden import %q present", imp),
				Line:        lineOfIndex(code, idx),
				CodeSnippet: imp,
			})
		}
	}
	for _, pattern := range rule.ForbiddenPatterns {
		if idx, ok := findPattern(code, pattern); ok {
			result.Findings = append(result.Findings, Finding{
				Severity:    SeverityError,
				Rule:        rule.Name,
				Message:     fmt.Sprintf("forbidden pattern %q present", pattern),
				Line:        lineOfIndex(code, idx),
				CodeSnippet: pattern,
			})
		}
	}
}

func (e *Evaluator) checkRequired(code string, rule *criteria.ValidationRule, result *Result) {
	for _, imp := range rule.RequiredImports {
		if !strings.Contains(code, imp) {
			result.Findings = append(result.Findings, Finding{
				Severity:   SeverityWarning,
				Rule:       rule.Name,
				Message:    fmt.Sprintf("missing required import %q", imp),
				Suggestion: fmt.Sprintf("import %s as shown in the acceptance criteria", imp),
			})
		}
	}
	for _, pattern := range rule.RequiredPatterns {
		if _, ok := findPattern(code, pattern); !ok {
			result.Findings = append(result.Findings, Finding{
				Severity: SeverityWarning,
				Rule:     rule.Name,
				Message:  fmt.Sprintf("missing recommended pattern %q", pattern),
			})
		}
	}
}

func (e *Evaluator) checkCorrectPatterns(sample []codeLine, rule *criteria.ValidationRule, language string, result *Result) {
	for _, pattern := range rule.CorrectPatterns {
		lines := normalizePattern(pattern.Code, patternLanguage(pattern, language))
		if m := matchPattern(sample, lines, false); m.matched {
			result.MatchedCorrect = append(result.MatchedCorrect, pattern.Section)
		}
	}
}

func (e *Evaluator) checkScenario(code string, scenario *suite.Scenario, result *Result) {
	for _, pattern := range scenario.ExpectedPatterns {
		if !strings.Contains(code, pattern) {
			result.Findings = append(result.Findings, Finding{
				Severity: SeverityWarning,
				Rule:     "scenario",
				Message:  fmt.Sprintf("expected pattern %q not found", pattern),
			})
		}
	}
	for _, pattern := range scenario.ForbiddenPatterns {
		if idx := strings.Index(code, pattern); idx >= 0 {
			result.Findings = append(result.Findings, Finding{
				Severity:    SeverityError,
				Rule:        "scenario",
				Message:     fmt.Sprintf("forbidden pattern %q present", pattern),
				Line:        lineOfIndex(code, idx),
				CodeSnippet: pattern,
			})
		}
	}
}

// findPattern matches a textual pattern against the code. Patterns are
// literal substrings unless marked with the "re:" prefix, which makes
// the remainder a regular expression. A marked pattern that does not
// compile degrades to a literal search for the remainder. Returns the
// byte offset of the first match.
func findPattern(code, pattern string) (int, bool) {
	if rest, ok := strings.CutPrefix(pattern, "re:"); ok {
		if re, err := regexp.Compile(rest); err == nil {
			if loc := re.FindStringIndex(code); loc != nil {
				return loc[0], true
			}
			return 0, false
		}
		pattern = rest
	}
	idx := strings.Index(code, pattern)
	return idx, idx >= 0
}

// patternLanguage prefers the pattern's own language tag over the
// document's declared language.
func patternLanguage(pattern criteria.CodePattern, fallback string) string {
	if pattern.Language != "" {
		return pattern.Language
	}
	return fallback
}
