// Package runner drives the load -> generate -> evaluate pipeline across a
// suite's scenarios and aggregates the outcomes. Scenarios within one suite
// run sequentially so that reports preserve authoring order and live
// backends are not hammered in parallel; distinct suites may run
// concurrently because no mutable state crosses suite boundaries.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillcheck/skillcheck/pkg/criteria"
	"github.com/skillcheck/skillcheck/pkg/evaluator"
	"github.com/skillcheck/skillcheck/pkg/generation"
	"github.com/skillcheck/skillcheck/pkg/logger"
	"github.com/skillcheck/skillcheck/pkg/suite"
	"github.com/skillcheck/skillcheck/pkg/telemetry"
)

// Status tracks a scenario through the pipeline
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusEvaluating Status = "evaluating"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// ScenarioResult pairs an evaluation outcome with the runner-attached
// status and timing. Evaluation itself never records time; only the
// runner does.
type ScenarioResult struct {
	evaluator.Result
	Status     Status `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	// Generation holds the raw generation output for audit; omitted from
	// reports unless verbose output is requested.
	Generation *generation.Result `json:"generation,omitempty"`
}

// Summary aggregates one suite's scenario results
type Summary struct {
	SkillName      string           `json:"skill_name"`
	TotalScenarios int              `json:"total_scenarios"`
	Passed         int              `json:"passed"`
	Failed         int              `json:"failed"`
	AvgScore       float64          `json:"avg_score"`
	DurationMs     int64            `json:"duration_ms"`
	Results        []ScenarioResult `json:"results"`
}

// Runner executes suites. The zero value is not usable; construct with New.
type Runner struct {
	loader    *criteria.Loader
	evaluator *evaluator.Evaluator
	cache     generation.Cache
}

type Option func(*Runner)

// WithLoader overrides the criteria loader, e.g. to install a custom
// marker vocabulary.
func WithLoader(l *criteria.Loader) Option {
	return func(r *Runner) {
		r.loader = l
	}
}

// WithEvaluator overrides the evaluator, e.g. to change penalty weights
func WithEvaluator(e *evaluator.Evaluator) Option {
	return func(r *Runner) {
		r.evaluator = e
	}
}

// WithCache installs a generation cache scoped to this runner. Caching is
// always injected explicitly so concurrent runs stay isolated.
func WithCache(c generation.Cache) Option {
	return func(r *Runner) {
		r.cache = c
	}
}

func New(opts ...Option) *Runner {
	r := &Runner{
		loader:    criteria.NewLoader(),
		evaluator: evaluator.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every scenario in the suite in order. Generation failures
// become synthetic failing results rather than aborting the suite; only a
// criteria load failure is fatal, since nothing can be evaluated without
// criteria.
func (r *Runner) Run(ctx context.Context, s *suite.Suite, client generation.Client) (*Summary, error) {
	log := logger.G(ctx).WithField("skill", s.SkillName)

	crit, err := r.loadCriteria(s)
	if err != nil {
		return nil, err
	}
	if crit.Empty() {
		log.Warn("no enforceable criteria; scenarios will be checked against their own expectations only")
	}

	if r.cache != nil {
		client = generation.WithCache(client, r.cache)
	}

	summary := &Summary{SkillName: s.SkillName}
	start := time.Now()

	err = telemetry.WithSpan(ctx, "suite.run", func(ctx context.Context) error {
		for i := range s.Scenarios {
			scenario := &s.Scenarios[i]
			result := r.runScenario(ctx, s, crit, scenario, client)
			summary.Results = append(summary.Results, result)
		}
		return nil
	}, attribute.String("skill", s.SkillName), attribute.Int("scenarios", len(s.Scenarios)))
	if err != nil {
		return nil, err
	}

	summary.DurationMs = time.Since(start).Milliseconds()
	aggregate(summary)

	log.WithField("passed", summary.Passed).
		WithField("failed", summary.Failed).
		WithField("avg_score", summary.AvgScore).
		Info("suite finished")
	return summary, nil
}

func (r *Runner) loadCriteria(s *suite.Suite) (*criteria.AcceptanceCriteria, error) {
	if s.CriteriaPath == "" {
		return &criteria.AcceptanceCriteria{SkillName: s.SkillName}, nil
	}
	return r.loader.Load(s.SkillName, s.CriteriaPath)
}

func (r *Runner) runScenario(ctx context.Context, s *suite.Suite, crit *criteria.AcceptanceCriteria, scenario *suite.Scenario, client generation.Client) ScenarioResult {
	log := logger.G(ctx).WithField("skill", s.SkillName).WithField("scenario", scenario.Name)
	start := time.Now()

	result := ScenarioResult{Status: StatusPending}
	_ = telemetry.WithSpan(ctx, "scenario.run", func(ctx context.Context) error {
		result = r.executeScenario(ctx, s, crit, scenario, client)
		return nil
	}, attribute.String("scenario", scenario.Name))

	result.DurationMs = time.Since(start).Milliseconds()

	if result.Status == StatusFailed {
		log.WithField("duration_ms", result.DurationMs).Warn("scenario failed")
	} else {
		log.WithField("passed", result.Passed).
			WithField("score", result.Score).
			WithField("duration_ms", result.DurationMs).
			Debug("scenario evaluated")
	}
	return result
}

func (r *Runner) executeScenario(ctx context.Context, s *suite.Suite, crit *criteria.AcceptanceCriteria, scenario *suite.Scenario, client generation.Client) ScenarioResult {
	gen, err := client.Generate(ctx, generation.Request{
		Prompt:       scenario.Prompt,
		SkillName:    s.SkillName,
		ScenarioName: scenario.Name,
		SkillContext: s.SkillContext,
	})
	if err != nil {
		// A generation failure must not silently pass; surface it as a
		// synthetic failing result so the rest of the suite still runs.
		message := fmt.Sprintf("code generation failed: %v", err)
		if errors.Is(err, context.Canceled) {
			message = "code generation cancelled"
		}
		return failedResult(s.SkillName, scenario.Name, message)
	}

	result := ScenarioResult{
		Status:     StatusEvaluating,
		Generation: gen,
	}

	evalResult, evalErr := r.safeEvaluate(ctx, crit, gen.Code, scenario)
	if evalErr != nil {
		failed := failedResult(s.SkillName, scenario.Name, fmt.Sprintf("evaluator failure: %v", evalErr))
		failed.GeneratedCode = gen.Code
		failed.Generation = gen
		return failed
	}

	result.Result = *evalResult
	result.Status = StatusDone
	return result
}

// safeEvaluate guards against evaluator panics. The evaluator is a pure
// function and should never panic; if it does, that is a harness bug and
// the scenario fails with full diagnostic context rather than taking the
// whole suite down.
func (r *Runner) safeEvaluate(ctx context.Context, crit *criteria.AcceptanceCriteria, code string, scenario *suite.Scenario) (result *evaluator.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("panic during evaluation of scenario %q: %v", scenario.Name, rec)
			logger.G(ctx).WithField("scenario", scenario.Name).WithField("panic", rec).Error("evaluator panicked")
			telemetry.RecordError(ctx, err)
		}
	}()
	return r.evaluator.Evaluate(crit, code, scenario), nil
}

func failedResult(skillName, scenarioName, message string) ScenarioResult {
	return ScenarioResult{
		Result: evaluator.Result{
			SkillName: skillName,
			Scenario:  scenarioName,
			Findings: []evaluator.Finding{
				{
					Severity: evaluator.SeverityError,
					Rule:     "generation",
					Message:  message,
				},
			},
			Score:      0,
			Passed:     false,
			ErrorCount: 1,
		},
		Status: StatusFailed,
	}
}

func aggregate(summary *Summary) {
	summary.TotalScenarios = len(summary.Results)
	var total float64
	for _, result := range summary.Results {
		if result.Passed && result.Status != StatusFailed {
			summary.Passed++
		} else {
			summary.Failed++
		}
		total += result.Score
	}
	if summary.TotalScenarios > 0 {
		summary.AvgScore = total / float64(summary.TotalScenarios)
	}
}
