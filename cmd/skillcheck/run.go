package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillcheck/skillcheck/pkg/criteria"
	"github.com/skillcheck/skillcheck/pkg/evaluator"
	"github.com/skillcheck/skillcheck/pkg/generation"
	"github.com/skillcheck/skillcheck/pkg/logger"
	"github.com/skillcheck/skillcheck/pkg/presenter"
	"github.com/skillcheck/skillcheck/pkg/report"
	"github.com/skillcheck/skillcheck/pkg/runner"
	"github.com/skillcheck/skillcheck/pkg/skills"
	"github.com/skillcheck/skillcheck/pkg/suite"
)

// RunConfig holds the resolved configuration for the run command
type RunConfig struct {
	SkillPattern string
	Mock         bool
	Verbose      bool
	Filter       string
	Output       string
	OutputFile   string
	Cache        bool
	List         bool
	BaseDir      string
}

func NewRunConfig() *RunConfig {
	return &RunConfig{
		Output:  "text",
		BaseDir: ".",
	}
}

func getRunConfigFromFlags(cmd *cobra.Command) *RunConfig {
	cfg := NewRunConfig()
	cfg.SkillPattern, _ = cmd.Flags().GetString("skill")
	cfg.Mock, _ = cmd.Flags().GetBool("mock")
	cfg.Verbose, _ = cmd.Flags().GetBool("verbose")
	cfg.Filter, _ = cmd.Flags().GetString("filter")
	cfg.Output, _ = cmd.Flags().GetString("output")
	cfg.OutputFile, _ = cmd.Flags().GetString("output-file")
	cfg.Cache, _ = cmd.Flags().GetBool("cache")
	cfg.List, _ = cmd.Flags().GetBool("list")
	cfg.BaseDir = viper.GetString("base_dir")
	return cfg
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scenario suites and evaluate the generated code",
	Long: `Run evaluates every skill that ships a scenario suite. For each scenario
the configured generation backend produces a code sample, which is scored
against the skill's acceptance criteria. The exit code is 0 only when every
evaluated scenario passes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getRunConfigFromFlags(cmd)
		presenter.SetQuiet(viper.GetBool("quiet"))

		if cfg.List {
			if err := listSkills(os.Stdout, cfg.BaseDir, true); err != nil {
				presenter.Error(err, "failed to list skills")
				os.Exit(1)
			}
			return
		}

		ok, err := executeRun(cmd, cfg)
		if err != nil {
			presenter.Error(err, "run failed")
			os.Exit(1)
		}
		if !ok {
			os.Exit(1)
		}
	},
}

func executeRun(cmd *cobra.Command, cfg *RunConfig) (bool, error) {
	ctx := cmd.Context()
	log := logger.G(ctx)

	format, err := report.ParseFormat(cfg.Output)
	if err != nil {
		return false, err
	}

	discovery, err := discoveryFor(cfg.BaseDir)
	if err != nil {
		return false, err
	}
	discovered, err := discovery.DiscoverSkills()
	if err != nil {
		return false, err
	}
	selected, err := skills.FilterByPattern(discovered, cfg.SkillPattern)
	if err != nil {
		return false, err
	}
	if cfg.SkillPattern != "" && len(selected) == 0 {
		return false, errors.Errorf("no skills match pattern %q", cfg.SkillPattern)
	}

	defaults := defaultGenerationConfig(cfg.Mock)

	suites, hadErrors := loadSuites(cmd, selected, defaults, cfg.Filter)
	if len(suites) == 0 {
		if hadErrors {
			return false, errors.New("no runnable suites; all candidates failed to load")
		}
		presenter.Warning("no scenario suites found; nothing to evaluate")
		return !hadErrors, nil
	}

	r := runner.New(runnerOptions(cfg)...)

	factory := func(s *suite.Suite) (generation.Client, error) {
		// --mock wins even when a suite names its own provider
		if cfg.Mock || s.Generation.Provider == "mock" {
			return generation.NewMockClient(generation.WithResponses(s.MockResponses())), nil
		}
		return generation.New(s.Generation.Provider, s.Generation)
	}

	summaries, runErr := r.RunAll(ctx, suites, factory)
	if runErr != nil {
		// Per-skill failures are reported but do not stop the other
		// skills from producing summaries.
		presenter.Error(runErr, "some suites failed")
		hadErrors = true
	}
	log.WithField("suites", len(summaries)).Debug("run complete")

	if err := renderReport(cfg, format, summaries); err != nil {
		return false, err
	}

	return report.AllPassed(summaries) && !hadErrors, nil
}

// loadSuites builds a suite per skill that ships scenarios. A bad suite
// file is fatal for that skill only.
func loadSuites(cmd *cobra.Command, selected map[string]*skills.Skill, defaults generation.Config, filter string) ([]*suite.Suite, bool) {
	ctx := cmd.Context()
	log := logger.G(ctx)

	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)

	var suites []*suite.Suite
	hadErrors := false
	for _, name := range names {
		skill := selected[name]

		scenariosPath := skill.ScenariosPath()
		if _, err := os.Stat(scenariosPath); err != nil {
			log.WithField("skill", name).Debug("no scenario suite, skipping")
			continue
		}

		s, err := suite.Load(scenariosPath, defaults)
		if err != nil {
			presenter.Error(err, fmt.Sprintf("skill %s: invalid scenario suite", name))
			hadErrors = true
			continue
		}
		s.SkillName = name
		s.SkillContext = skill.Content
		if _, err := os.Stat(skill.CriteriaPath()); err == nil {
			s.CriteriaPath = skill.CriteriaPath()
		}

		s = s.Filter(filter)
		if len(s.Scenarios) == 0 {
			log.WithField("skill", name).WithField("filter", filter).Debug("no scenarios after filtering")
			continue
		}
		suites = append(suites, s)
	}
	return suites, hadErrors
}

func renderReport(cfg *RunConfig, format report.Format, summaries []*runner.Summary) error {
	var dest io.Writer = os.Stdout
	var f *os.File
	if cfg.OutputFile != "" {
		var err error
		f, err = os.Create(cfg.OutputFile)
		if err != nil {
			return errors.Wrapf(err, "failed to create output file %s", cfg.OutputFile)
		}
		dest = f
	}

	renderer := report.New(format, report.WithVerbose(cfg.Verbose))
	if err := renderer.Render(dest, summaries); err != nil {
		if f != nil {
			f.Close()
		}
		return err
	}
	if f != nil {
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "failed to write output file %s", cfg.OutputFile)
		}
		presenter.Success("report written to " + cfg.OutputFile)
	}
	return nil
}

// discoveryFor builds the skill discovery, honoring an explicit
// skill_dirs list from the config file over the conventional
// .github/skills layout.
func discoveryFor(baseDir string) (*skills.Discovery, error) {
	if dirs := viper.GetStringSlice("skill_dirs"); len(dirs) > 0 {
		return skills.NewDiscovery(skills.WithSkillDirs(dirs...))
	}
	return skills.NewDiscovery(skills.WithBaseDir(baseDir))
}

// runnerOptions wires the optional cache plus any scoring and marker
// overrides from the config file.
func runnerOptions(cfg *RunConfig) []runner.Option {
	var opts []runner.Option
	if cfg.Cache {
		opts = append(opts, runner.WithCache(generation.NewMemoryCache()))
	}

	if viper.IsSet("scoring.max_score") || viper.IsSet("scoring.error_penalty") || viper.IsSet("scoring.warning_penalty") {
		scoring := evaluator.DefaultScoreConfig()
		if viper.IsSet("scoring.max_score") {
			scoring.MaxScore = viper.GetFloat64("scoring.max_score")
		}
		if viper.IsSet("scoring.error_penalty") {
			scoring.ErrorPenalty = viper.GetFloat64("scoring.error_penalty")
		}
		if viper.IsSet("scoring.warning_penalty") {
			scoring.WarningPenalty = viper.GetFloat64("scoring.warning_penalty")
		}
		opts = append(opts, runner.WithEvaluator(evaluator.New(evaluator.WithScoring(scoring))))
	}

	if viper.IsSet("markers.correct") || viper.IsSet("markers.incorrect") {
		markers := criteria.DefaultMarkers()
		if v := viper.GetStringSlice("markers.correct"); len(v) > 0 {
			markers.Correct = v
		}
		if v := viper.GetStringSlice("markers.incorrect"); len(v) > 0 {
			markers.Incorrect = v
		}
		opts = append(opts, runner.WithLoader(criteria.NewLoader(criteria.WithMarkers(markers))))
	}

	return opts
}

// defaultGenerationConfig assembles the global generation defaults from
// viper; suites may override individual keys in their own files.
func defaultGenerationConfig(mock bool) generation.Config {
	cfg := generation.Config{
		Provider:            viper.GetString("provider"),
		Model:               viper.GetString("model"),
		MaxTokens:           viper.GetInt("max_tokens"),
		Temperature:         viper.GetFloat64("temperature"),
		IncludeSkillContext: viper.GetBool("include_skill_context"),
		TimeoutSeconds:      viper.GetInt("timeout_seconds"),
		Retry:               generation.DefaultRetryConfig,
	}
	if viper.IsSet("retry.attempts") {
		cfg.Retry.Attempts = viper.GetInt("retry.attempts")
	}
	if mock {
		cfg.Provider = "mock"
	}
	return cfg
}

func init() {
	runCmd.Flags().String("skill", "", "Skill name or glob pattern to evaluate (all skills if omitted)")
	runCmd.Flags().Bool("mock", false, "Use the deterministic mock generation backend")
	runCmd.Flags().BoolP("verbose", "v", false, "Include full finding detail and raw responses for failures")
	runCmd.Flags().String("filter", "", "Only run scenarios whose name contains this substring")
	runCmd.Flags().StringP("output", "o", "text", "Report format (text, json, markdown)")
	runCmd.Flags().String("output-file", "", "Write the report to a file instead of stdout")
	runCmd.Flags().Bool("cache", false, "Cache generation results within this invocation")
	runCmd.Flags().Bool("list", false, "List skills and scenarios without running")
}
