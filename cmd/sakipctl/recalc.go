package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/spf13/cobra"
)

var (
	recalcYear      int
	recalcIndicator uint
	cleanupDays     int
)

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate yearly indicator scores",
	Long: `Recalculate the yearly score snapshot of one indicator (--indicator) or of
every active indicator. Only validated performance data is graded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		scores := services.NewScoreService(db, services.NewSystemLogService(db))
		out := cmd.OutOrStdout()

		if recalcIndicator != 0 {
			snap, err := scores.RecalculateIndicator(cmd.Context(), services.SystemPrincipal, recalcIndicator, recalcYear)
			if errors.Is(err, services.ErrNoScoringData) {
				fmt.Fprintf(out, "indicator %d has no validated data for %d\n", recalcIndicator, recalcYear)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "indicator %d %d: %.2f (%s) from %d data points\n",
				recalcIndicator, recalcYear, snap.OverallScore, snap.Grade, snap.DataPoints)
			return nil
		}

		summary, err := scores.RecalculateYear(cmd.Context(), services.SystemPrincipal, recalcYear)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d: scored %d, skipped %d, failed %d\n", summary.Year, summary.Scored, summary.Skipped, summary.Failed)
		if summary.Failed > 0 {
			return fmt.Errorf("%d indicators failed", summary.Failed)
		}
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-logs",
	Short: "Delete audit log rows older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		logs := services.NewSystemLogService(db)
		days := cleanupDays
		if days == 0 {
			days = logs.GetRetentionDays()
		}
		deleted, err := logs.CleanupOldLogs(days)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d log rows older than %d days\n", deleted, days)
		return nil
	},
}

func init() {
	recalcCmd.Flags().IntVarP(&recalcYear, "year", "y", time.Now().Year(), "Year to grade")
	recalcCmd.Flags().UintVarP(&recalcIndicator, "indicator", "i", 0, "Only this indicator id")
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "Retention in days (default: system setting)")
	rootCmd.AddCommand(recalcCmd, cleanupCmd)
}
