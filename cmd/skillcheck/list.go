package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillcheck/skillcheck/pkg/generation"
	"github.com/skillcheck/skillcheck/pkg/suite"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered skills and their scenario suites",
	Run: func(cmd *cobra.Command, args []string) {
		withScenarios, _ := cmd.Flags().GetBool("scenarios")
		if err := listSkills(os.Stdout, viper.GetString("base_dir"), withScenarios); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	},
}

func listSkills(w io.Writer, baseDir string, withScenarios bool) error {
	discovery, err := discoveryFor(baseDir)
	if err != nil {
		return err
	}
	names, err := discovery.ListSkillNames()
	if err != nil {
		return err
	}
	discovered, err := discovery.DiscoverSkills()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLANGUAGE\tCRITERIA\tSCENARIOS\tDESCRIPTION")
	for _, name := range names {
		skill := discovered[name]

		criteriaMark := "-"
		if _, err := os.Stat(skill.CriteriaPath()); err == nil {
			criteriaMark = "yes"
		}

		scenarioCount := 0
		var scenarios []suite.Scenario
		if s, err := suite.Load(skill.ScenariosPath(), generation.Config{}); err == nil {
			scenarioCount = len(s.Scenarios)
			scenarios = s.Scenarios
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			name, skill.Language(), criteriaMark, scenarioCount, skill.Description)

		if withScenarios {
			for _, scenario := range scenarios {
				fmt.Fprintf(tw, "  %s\t\t\t\t%s\n", scenario.Name, scenario.Prompt)
			}
		}
	}
	return tw.Flush()
}

func init() {
	listCmd.Flags().Bool("scenarios", false, "Also list each skill's scenarios")
}
