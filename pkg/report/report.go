// Package report renders evaluation summaries for humans and machines.
// Rendering is a pure projection of summary data: it never recomputes
// scores or re-runs evaluation.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skillcheck/skillcheck/pkg/evaluator"
	"github.com/skillcheck/skillcheck/pkg/runner"
)

// Format selects the rendering style
type Format string

const (
	// FormatText is a plain columnar format for terminal review
	FormatText Format = "text"
	// FormatJSON is the structured format for machine consumption and CI gating
	FormatJSON Format = "json"
	// FormatMarkdown is a narrative format for docs and PR comments
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a user-supplied format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	default:
		return "", errors.Errorf("unknown output format %q (expected text, json, or markdown)", s)
	}
}

// Report is the serialized envelope around a run's summaries
type Report struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	AllPassed   bool              `json:"all_passed"`
	Summaries   []*runner.Summary `json:"summaries"`
}

// AllPassed reports whether every scenario in every summary passed
func AllPassed(summaries []*runner.Summary) bool {
	for _, summary := range summaries {
		if summary.Failed > 0 {
			return false
		}
	}
	return true
}

// Renderer writes summaries in a chosen format
type Renderer struct {
	format  Format
	verbose bool
	now     func() time.Time
	newID   func() string
}

type Option func(*Renderer)

// WithVerbose includes full finding detail and raw generation responses
// for failed scenarios.
func WithVerbose(verbose bool) Option {
	return func(r *Renderer) {
		r.verbose = verbose
	}
}

func New(format Format, opts ...Option) *Renderer {
	r := &Renderer{
		format: format,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render writes the summaries to w. Any write error aborts the report:
// a truncated report must never look like a successful run.
func (r *Renderer) Render(w io.Writer, summaries []*runner.Summary) error {
	ew := &errWriter{w: w}

	var err error
	switch r.format {
	case FormatJSON:
		err = r.renderJSON(ew, summaries)
	case FormatMarkdown:
		err = r.renderMarkdown(ew, summaries)
	case FormatText:
		err = r.renderText(ew, summaries)
	default:
		return errors.Errorf("unknown output format %q", r.format)
	}
	if err != nil {
		return err
	}
	if ew.err != nil {
		return errors.Wrap(ew.err, "failed to write report")
	}
	return nil
}

// errWriter remembers the first write error so the render helpers can
// chain fmt.Fprintf calls without checking each return
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(p)
	if err != nil {
		ew.err = err
	}
	return n, err
}

func (r *Renderer) renderJSON(w io.Writer, summaries []*runner.Summary) error {
	report := Report{
		RunID:       r.newID(),
		GeneratedAt: r.now().UTC(),
		AllPassed:   AllPassed(summaries),
		Summaries:   summaries,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	return nil
}

// ParseJSON reads back a previously rendered JSON report
func ParseJSON(data []byte) (*Report, error) {
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.Wrap(err, "failed to parse report")
	}
	return &report, nil
}

func (r *Renderer) renderText(w io.Writer, summaries []*runner.Summary) error {
	for _, summary := range summaries {
		fmt.Fprintf(w, "Skill: %s\n", summary.SkillName)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SCENARIO\tSTATUS\tSCORE\tERRORS\tWARNINGS")
		for _, result := range summary.Results {
			fmt.Fprintf(tw, "%s\t%s\t%.1f\t%d\t%d\n",
				result.Scenario, verdict(result), result.Score, result.ErrorCount, result.WarningCount)
		}
		if err := tw.Flush(); err != nil {
			return errors.Wrap(err, "failed to write report")
		}

		fmt.Fprintf(w, "%d/%d passed, avg score %.1f (%s)\n\n",
			summary.Passed, summary.TotalScenarios, summary.AvgScore, formatDuration(summary.DurationMs))

		if r.verbose {
			r.writeTextFindings(w, summary)
		}
	}

	if AllPassed(summaries) {
		fmt.Fprintln(w, "PASS")
	} else {
		fmt.Fprintln(w, "FAIL")
	}
	return nil
}

func (r *Renderer) writeTextFindings(w io.Writer, summary *runner.Summary) {
	for _, result := range summary.Results {
		if len(result.Findings) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s:\n", result.Scenario)
		for _, finding := range result.Findings {
			fmt.Fprintf(w, "    [%s] %s: %s", strings.ToUpper(string(finding.Severity)), finding.Rule, finding.Message)
			if finding.Line > 0 {
				fmt.Fprintf(w, " (line %d)", finding.Line)
			}
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintln(w)
}

func (r *Renderer) renderMarkdown(w io.Writer, summaries []*runner.Summary) error {
	fmt.Fprintln(w, "# Skill Conformance Report")
	fmt.Fprintln(w)

	for _, summary := range summaries {
		status := "✅"
		if summary.Failed > 0 {
			status = "❌"
		}
		fmt.Fprintf(w, "## %s %s\n\n", status, summary.SkillName)
		fmt.Fprintf(w, "%d/%d scenarios passed, average score %.1f.\n\n",
			summary.Passed, summary.TotalScenarios, summary.AvgScore)

		fmt.Fprintln(w, "| Scenario | Status | Score | Errors | Warnings |")
		fmt.Fprintln(w, "|----------|--------|-------|--------|----------|")
		for _, result := range summary.Results {
			fmt.Fprintf(w, "| %s | %s | %.1f | %d | %d |\n",
				result.Scenario, verdict(result), result.Score, result.ErrorCount, result.WarningCount)
		}
		fmt.Fprintln(w)

		for _, result := range summary.Results {
			if result.Passed && result.Status != runner.StatusFailed && !r.verbose {
				continue
			}
			if len(result.Findings) == 0 && !r.verbose {
				continue
			}
			r.writeMarkdownDetail(w, result)
		}
	}

	if AllPassed(summaries) {
		fmt.Fprintln(w, "**Overall: PASS**")
	} else {
		fmt.Fprintln(w, "**Overall: FAIL**")
	}
	return nil
}

func (r *Renderer) writeMarkdownDetail(w io.Writer, result runner.ScenarioResult) {
	fmt.Fprintf(w, "### %s\n\n", result.Scenario)

	for _, finding := range result.Findings {
		fmt.Fprintf(w, "- **%s** (%s): %s\n", strings.ToUpper(string(finding.Severity)), finding.Rule, finding.Message)
		if r.verbose && finding.CodeSnippet != "" && finding.Suggestion != "" && looksLikeCode(finding.Suggestion) {
			diff := udiff.Unified("generated", "suggested", finding.CodeSnippet+"\n", finding.Suggestion+"\n")
			fmt.Fprintf(w, "\n```diff\n%s```\n\n", diff)
		}
	}
	if len(result.Findings) > 0 {
		fmt.Fprintln(w)
	}

	if r.verbose && result.Status == runner.StatusFailed && result.Generation != nil {
		fmt.Fprintf(w, "Raw generation response:\n\n```\n%s\n```\n\n", result.Generation.RawResponse)
	}
}

// looksLikeCode filters prose suggestions out of diff rendering
func looksLikeCode(s string) bool {
	return strings.ContainsAny(s, "=({")
}

func verdict(result runner.ScenarioResult) string {
	if result.Status == runner.StatusFailed {
		return "FAILED"
	}
	if result.Passed {
		return "pass"
	}
	return "fail"
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

// CountFindings tallies findings of one severity across a summary
func CountFindings(summary *runner.Summary, severity evaluator.Severity) int {
	n := 0
	for _, result := range summary.Results {
		for _, finding := range result.Findings {
			if finding.Severity == severity {
				n++
			}
		}
	}
	return n
}
