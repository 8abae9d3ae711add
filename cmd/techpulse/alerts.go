package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/techpulse/internal/period"
	"github.com/TobiSchelling/techpulse/internal/pipeline"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Detect, list and dismiss weekly bucket alerts",
}

var profilesPath string

var alertsDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run alert detection on the bucket profile cache and write the weekly report",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		path := profilesPath
		if path == "" {
			path = cfg.GetProfilesPath()
		}
		fmt.Printf("Detecting alerts from %s\n", path)

		result := pipeline.New(cfg, db, logger).RunWeekly(context.Background(), path)
		printSteps(result)
		if err := result.Err(); err != nil {
			return err
		}
		fmt.Printf("\nWeek %s complete. Reports are in %s\n", result.PeriodID, cfg.ReportsDir())
		return nil
	},
}

func init() {
	alertsDetectCmd.Flags().StringVar(&profilesPath, "profiles", "", "Path to bucket_profiles.json")
}

var weekFlag string

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored alerts for a week",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var week period.Date
		if weekFlag != "" {
			d, err := period.Parse(weekFlag)
			if err != nil {
				return err
			}
			week = period.WeekStart(d)
		} else {
			week, err = db.GetLatestAlertWeek()
			if err != nil {
				return err
			}
		}
		if week.IsZero() {
			fmt.Println("No alerts stored. Run 'techpulse alerts detect' first.")
			return nil
		}

		records, err := db.ListAlerts(week, true)
		if err != nil {
			return err
		}
		fmt.Printf("Alerts for %s:\n", period.FormatWeekDisplay(week))
		if len(records) == 0 {
			fmt.Println("  (none)")
			return nil
		}
		for _, r := range records {
			a := r.Alert
			marker := ""
			if r.Dismissed() {
				marker = " (dismissed)"
			}
			fmt.Printf("\n[%s]%s\n", r.ID, marker)
			fmt.Printf("  %s %s: %s | %s | magnitude %.1f | %d week(s)\n",
				a.Severity, a.AlertType.Label(), a.BucketName, a.Interpretation, a.DivergenceMagnitude, a.WeeksPersistent)
			fmt.Printf("  %s\n", a.Rationale)
		}
		return nil
	},
}

func init() {
	alertsListCmd.Flags().StringVar(&weekFlag, "week", "", "Any date in the week to list (default: latest)")
}

var alertsDismissCmd = &cobra.Command{
	Use:   "dismiss [id]",
	Short: "Toggle an alert's dismissed state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rec, err := db.GetAlert(args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("alert %s not found", args[0])
		}

		dismissed, err := db.ToggleDismiss(rec.ID)
		if err != nil {
			return err
		}
		newState := "restored"
		if dismissed {
			newState = "dismissed"
		}
		fmt.Printf("Alert [%s] %s %s: %s\n", rec.ID, rec.Alert.AlertType.Label(), rec.Alert.BucketName, newState)
		return nil
	},
}

func init() {
	alertsCmd.AddCommand(alertsDetectCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsDismissCmd)
}
