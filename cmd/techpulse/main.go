package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/techpulse/internal/config"
	"github.com/TobiSchelling/techpulse/internal/database"
	"github.com/TobiSchelling/techpulse/internal/logging"
	"github.com/TobiSchelling/techpulse/internal/pipeline"
	"github.com/TobiSchelling/techpulse/internal/tracker"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = zerolog.Nop()
	logCloser  io.Closer
)

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "techpulse",
	Short:   "Weekly technology alerts and daily signal tracking",
	Long:    "techpulse turns scored technology buckets into weekly alert reports and links daily story clusters into long-lived signals.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logCfg := cfg.Logging
		if verbose {
			logCfg.Level = "debug"
		}
		logger, logCloser, err = logging.New(logCfg)
		if err != nil {
			return err
		}
		logger.Debug().Str("config", path).Msg("config loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(signalsCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(scheduleCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("techpulse", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/techpulse/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to point at your cluster feeds and bucket profiles.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and signal store status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Buckets:")
		fmt.Printf("  Profiles stored: %d\n", stats.Profiles)
		fmt.Printf("  Weeks: %d\n", stats.ProfileWeeks)
		fmt.Printf("  Distinct buckets: %d\n", stats.Buckets)
		fmt.Println("\nAlerts:")
		fmt.Printf("  Total: %d\n", stats.Alerts)
		fmt.Printf("  Dismissed: %d\n", stats.DismissedAlerts)
		fmt.Printf("  Active streaks: %d\n", stats.ActiveStreaks)

		fmt.Println("\nRuns:")
		for _, kind := range []string{database.RunWeekly, database.RunDaily} {
			last, err := db.GetLastRun(kind)
			if err != nil {
				return err
			}
			if last == nil {
				fmt.Printf("  %s: never\n", kind)
				continue
			}
			fmt.Printf("  %s: %s (generated %s)\n", kind, last.PeriodID, last.GeneratedAt)
		}

		st, err := tracker.NewStore(cfg.SignalsDir()).Load()
		if err != nil {
			return err
		}
		summary := tracker.Summarize(st, "", 0)
		fmt.Println("\nSignals:")
		lastDate := summary.LastProcessedDate
		if lastDate == "" {
			lastDate = "never"
		}
		fmt.Printf("  Last processed: %s\n", lastDate)
		fmt.Printf("  Total: %d\n", summary.Total)
		for _, s := range tracker.Statuses {
			if n := summary.ByStatus[s]; n > 0 {
				fmt.Printf("  %s: %d\n", s, n)
			}
		}
		return nil
	},
}

func printSteps(result *pipeline.Result) {
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.DatabasePath(), logger)
}
