package runner

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/skillcheck/skillcheck/pkg/generation"
	"github.com/skillcheck/skillcheck/pkg/logger"
	"github.com/skillcheck/skillcheck/pkg/suite"
)

// ClientFactory builds a generation client for one suite. Each suite gets
// its own client so mock responses and per-suite generation config stay
// isolated across concurrent runs.
type ClientFactory func(s *suite.Suite) (generation.Client, error)

// RunAll executes every suite concurrently, one goroutine per suite.
// A failing suite (criteria unreadable, client construction failed) is
// skipped with an accumulated error; the other suites still produce
// summaries. Summaries come back sorted by skill name for stable reports.
func (r *Runner) RunAll(ctx context.Context, suites []*suite.Suite, factory ClientFactory) ([]*Summary, error) {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		summaries []*Summary
		errs      *multierror.Error
	)

	for _, s := range suites {
		wg.Add(1)
		go func(s *suite.Suite) {
			defer wg.Done()

			client, err := factory(s)
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, errors.Wrapf(err, "skill %s: failed to build generation client", s.SkillName))
				mu.Unlock()
				return
			}

			summary, err := r.Run(ctx, s, client)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, errors.Wrapf(err, "skill %s", s.SkillName))
				logger.G(ctx).WithField("skill", s.SkillName).WithError(err).Error("suite run failed")
				return
			}
			summaries = append(summaries, summary)
		}(s)
	}
	wg.Wait()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SkillName < summaries[j].SkillName
	})
	return summaries, errs.ErrorOrNil()
}
