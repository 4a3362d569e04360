package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillcheck/skillcheck/pkg/logger"
	"github.com/skillcheck/skillcheck/pkg/presenter"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLCHECK")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillcheck")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()

	viper.SetDefault("provider", "anthropic")
	viper.SetDefault("max_tokens", 4096)
	viper.SetDefault("timeout_seconds", 120)
	viper.SetDefault("include_skill_context", true)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "auto")
}

var rootCmd = &cobra.Command{
	Use:   "skillcheck",
	Short: "Evaluate generated code against skill acceptance criteria",
	Long: `skillcheck runs a skill-conformance harness: it extracts machine-checkable
acceptance criteria from each skill's reference document, obtains a candidate
code sample per scenario from a generation backend, scores the sample against
the criteria, and reports the results.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			presenter.Warning("invalid log level, using info")
		}
		logger.SetLogFormat(viper.GetString("log_format"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	ctx := context.Background()

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "auto", "Log format (auto, json, text)")
	rootCmd.PersistentFlags().String("base-dir", ".", "Repository root containing .github/skills")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress informational console output")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("base_dir", rootCmd.PersistentFlags().Lookup("base-dir"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	shutdown, err := initTracing(ctx)
	if err != nil {
		presenter.Warning("failed to initialize tracing: " + err.Error())
	}
	if shutdown != nil {
		defer shutdown(ctx)
	}

	rootCmd.AddCommand(withTracing(runCmd))
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		presenter.Error(err, "command failed")
		os.Exit(1)
	}
}
