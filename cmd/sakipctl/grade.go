package main

import (
	"fmt"
	"strconv"

	"github.com/kwanter/sakip-sub003/internal/scoring"
	"github.com/spf13/cobra"
)

var gradeTarget float64

var gradeCmd = &cobra.Command{
	Use:   "grade <score>...",
	Short: "Print the letter grade of overall scores",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			score, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("invalid score %q", arg)
			}
			score = scoring.Round2(score)
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\t%s\n", score, scoring.GradeOf(score))
		}
		return nil
	},
}

var categorizeCmd = &cobra.Command{
	Use:   "categorize <actual>...",
	Short: "Print achievement percentage and category of actual values against --target",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			actual, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("invalid value %q", arg)
			}
			pct := scoring.Round2(scoring.PercentageOf(actual, gradeTarget))
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f%%\t%s\n", pct, scoring.Categorize(pct))
		}
		return nil
	},
}

func init() {
	categorizeCmd.Flags().Float64VarP(&gradeTarget, "target", "t", 100, "Target value")
	rootCmd.AddCommand(gradeCmd, categorizeCmd)
}
