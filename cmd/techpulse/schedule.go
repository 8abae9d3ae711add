package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/techpulse/internal/pipeline"
	"github.com/TobiSchelling/techpulse/internal/scheduler"
)

var runImmediately bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily and weekly pipelines on their cron schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db, logger)
		sched := scheduler.New(logger, cfg.Schedule.Timeout)

		jobs := []scheduler.Job{
			{
				Name: "daily",
				Spec: cfg.Schedule.Daily,
				Run: func(ctx context.Context) error {
					dates, err := pipe.PendingDates()
					if err != nil {
						return err
					}
					if len(dates) == 0 {
						logger.Info().Msg("no pending days")
						return nil
					}
					return pipe.RunDaily(ctx, dates, cfg.GetSourceDir(), false).Err()
				},
			},
			{
				Name: "weekly",
				Spec: cfg.Schedule.Weekly,
				Run: func(ctx context.Context) error {
					return pipe.RunWeekly(ctx, cfg.GetProfilesPath()).Err()
				},
			},
		}
		for _, job := range jobs {
			if err := sched.Add(job); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if runImmediately {
			for _, name := range sched.Jobs() {
				if err := sched.RunNow(ctx, name); err != nil {
					logger.Error().Err(err).Str("job", name).Msg("initial run failed")
				}
			}
		}

		sched.Start()
		fmt.Println("Scheduler running. Press Ctrl+C to stop")
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
		return nil
	},
}

func init() {
	scheduleCmd.Flags().BoolVar(&runImmediately, "now", false, "Run every job once before waiting for the schedule")
}
