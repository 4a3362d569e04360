// Package evaluator scores generated code against acceptance criteria.
// Evaluation is a pure function of its inputs: no I/O, no clock, no hidden
// state, so identical inputs always produce identical results.
package evaluator

// Severity classifies a finding. Only errors gate pass/fail; warnings
// lower the score and info findings are advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding is one observation about the generated code
type Finding struct {
	Severity    Severity `json:"severity"`
	Rule        string   `json:"rule"`
	Message     string   `json:"message"`
	Line        int      `json:"line,omitempty"`
	Column      int      `json:"column,omitempty"`
	CodeSnippet string   `json:"code_snippet,omitempty"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// Result is the outcome of evaluating one scenario's generated code
type Result struct {
	SkillName        string    `json:"skill_name"`
	Scenario         string    `json:"scenario"`
	GeneratedCode    string    `json:"generated_code"`
	Findings         []Finding `json:"findings"`
	MatchedCorrect   []string  `json:"matched_correct,omitempty"`
	MatchedIncorrect []string  `json:"matched_incorrect,omitempty"`
	Score            float64   `json:"score"`
	Passed           bool      `json:"passed"`
	ErrorCount       int       `json:"error_count"`
	WarningCount     int       `json:"warning_count"`
}

// ScoreConfig holds the penalty weights applied when deriving a score
// from findings. The defaults are conventions, not invariants, so they
// are configurable per evaluator.
type ScoreConfig struct {
	MaxScore       float64 `mapstructure:"max_score" yaml:"max_score"`
	ErrorPenalty   float64 `mapstructure:"error_penalty" yaml:"error_penalty"`
	WarningPenalty float64 `mapstructure:"warning_penalty" yaml:"warning_penalty"`
}

// DefaultScoreConfig returns the standard weights: start at 100, each
// error costs 25, each warning costs 5.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		MaxScore:       100,
		ErrorPenalty:   25,
		WarningPenalty: 5,
	}
}

// finalize derives the counts, score, and verdict from the accumulated
// findings. Passed is strictly gated on the absence of errors.
func (r *Result) finalize(scoring ScoreConfig) {
	r.ErrorCount = 0
	r.WarningCount = 0
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityError:
			r.ErrorCount++
		case SeverityWarning:
			r.WarningCount++
		}
	}

	score := scoring.MaxScore
	score -= float64(r.ErrorCount) * scoring.ErrorPenalty
	score -= float64(r.WarningCount) * scoring.WarningPenalty
	if score < 0 {
		score = 0
	}
	if score > scoring.MaxScore {
		score = scoring.MaxScore
	}

	r.Score = score
	r.Passed = r.ErrorCount == 0
}
