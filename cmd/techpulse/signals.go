package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/techpulse/internal/period"
	"github.com/TobiSchelling/techpulse/internal/pipeline"
	"github.com/TobiSchelling/techpulse/internal/tracker"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Track long-lived signals from daily clusters",
}

var (
	fromDate  string
	toDate    string
	sourceDir string
	reset     bool
)

var signalsProcessCmd = &cobra.Command{
	Use:   "process [date...]",
	Short: "Link daily cluster files into signals",
	Long:  "Processes the given dates, a --from/--to range, or every day since the last processed one.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db, logger)
		dates, err := resolveDates(pipe, args)
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			fmt.Println("Nothing to process.")
			return nil
		}

		dir := sourceDir
		if dir == "" {
			dir = cfg.GetSourceDir()
		}
		fmt.Printf("Processing %d day(s): %s\n", len(dates), strings.Join(dates, ", "))

		result := pipe.RunDaily(context.Background(), dates, dir, reset)
		printSteps(result)
		return result.Err()
	},
}

func init() {
	signalsProcessCmd.Flags().StringVar(&fromDate, "from", "", "First date to process (YYYY-MM-DD)")
	signalsProcessCmd.Flags().StringVar(&toDate, "to", "", "Last date to process (YYYY-MM-DD, default today)")
	signalsProcessCmd.Flags().StringVar(&sourceDir, "source-dir", "", "Directory holding dual_feed_<date>.json files")
	signalsProcessCmd.Flags().BoolVar(&reset, "reset", false, "Clear the signal store before processing")
}

// resolveDates picks explicit dates, then a --from/--to range, then the
// pending days since the last run.
func resolveDates(pipe *pipeline.Pipeline, args []string) ([]string, error) {
	if len(args) > 0 && (fromDate != "" || toDate != "") {
		return nil, fmt.Errorf("pass either dates or --from/--to, not both")
	}
	for _, a := range args {
		if _, err := period.Parse(a); err != nil {
			return nil, err
		}
	}
	if len(args) > 0 {
		return args, nil
	}

	if fromDate == "" && toDate != "" {
		return nil, fmt.Errorf("--to requires --from")
	}
	if fromDate != "" {
		from, err := period.Parse(fromDate)
		if err != nil {
			return nil, err
		}
		to := period.Today()
		if toDate != "" {
			if to, err = period.Parse(toDate); err != nil {
				return nil, err
			}
		}
		if to.Before(from) {
			return nil, fmt.Errorf("--to %s is before --from %s", to, from)
		}
		return period.Range(from, to), nil
	}

	if reset {
		return []string{period.Today().String()}, nil
	}
	return pipe.PendingDates()
}

var (
	statusFilter string
	topN         int
)

var signalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List signals by recent mentions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var status tracker.Status
		if statusFilter != "" {
			s, ok := tracker.ParseStatus(statusFilter)
			if !ok {
				return fmt.Errorf("unknown status %q", statusFilter)
			}
			status = s
		}

		st, err := tracker.NewStore(cfg.SignalsDir()).Load()
		if err != nil {
			return err
		}
		summary := tracker.Summarize(st, status, topN)
		if len(summary.Top) == 0 {
			fmt.Println("No signals.")
			return nil
		}

		fmt.Printf("Signals as of %s:\n\n", summary.LastProcessedDate)
		for _, sig := range summary.Top {
			m := sig.Metrics
			fmt.Printf("[%s] %s\n", sig.SignalID, sig.Name)
			fmt.Printf("  %s | 7d: %d | 21d: %d | velocity: %+.2f | confidence: %.2f | last seen %s\n",
				sig.Status, m.Mentions7D, m.Mentions21D, m.Velocity, m.Confidence, sig.LastSeen)
		}
		return nil
	},
}

func init() {
	signalsListCmd.Flags().StringVar(&statusFilter, "status", "", "Only show signals with this status")
	signalsListCmd.Flags().IntVarP(&topN, "limit", "n", 20, "Maximum signals to show (0 for all)")

	signalsCmd.AddCommand(signalsProcessCmd)
	signalsCmd.AddCommand(signalsListCmd)
}
