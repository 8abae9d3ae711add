package pipeline

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/techpulse/internal/database"
	"github.com/TobiSchelling/techpulse/internal/llm"
	"github.com/TobiSchelling/techpulse/internal/period"
	"github.com/TobiSchelling/techpulse/internal/tracker"
)

// PendingDates returns the dates after the last processed one up to today.
// A fresh store starts with today.
func (p *Pipeline) PendingDates() ([]string, error) {
	st, err := p.SignalStore().Load()
	if err != nil {
		return nil, err
	}
	today := period.NewDate(p.now())
	if st.LastProcessedDate == "" {
		return []string{today.String()}, nil
	}
	last, err := period.Parse(st.LastProcessedDate)
	if err != nil {
		return nil, fmt.Errorf("%w: last_processed_date: %v", tracker.ErrStateCorrupt, err)
	}
	return period.Range(last.AddDays(1), today), nil
}

// RunDaily feeds the given dates' cluster files through the signal tracker.
// With reset, the canonical state is cleared first.
func (p *Pipeline) RunDaily(ctx context.Context, dates []string, sourceDir string, reset bool) *Result {
	start := p.now()
	r := &Result{}
	if len(dates) > 0 {
		r.PeriodID = dates[len(dates)-1]
	}
	store := p.SignalStore()

	if reset {
		p.logger.Warn().Str("path", store.StatePath()).Msg("resetting signal state")
		if !r.add(p.stepReset(store)) {
			return r
		}
	}

	stats, step := p.stepTrack(ctx, store, dates, sourceDir)
	if !r.add(step) {
		return r
	}

	r.add(p.stepSummarize(store, stats))
	r.add(p.writeMetrics("daily", start))
	return r
}

func (p *Pipeline) stepReset(store *tracker.Store) StepResult {
	if err := store.Reset(); err != nil {
		return StepResult{Name: "Reset", Err: err}
	}
	return StepResult{Name: "Reset", Summary: "cleared " + store.StatePath()}
}

func (p *Pipeline) stepTrack(ctx context.Context, store *tracker.Store, dates []string, sourceDir string) ([]tracker.DayStats, StepResult) {
	p.logger.Info().Int("dates", len(dates)).Str("source_dir", sourceDir).Msg("tracking signals")

	var embedder llm.Embedder
	if p.embedder != nil {
		if err := p.embedder.Available(ctx); err != nil {
			p.logger.Warn().Err(err).Msg("embedding server unavailable, linking on overlap only")
		} else {
			embedder = p.embedder
		}
	}

	t := tracker.New(p.cfg.Tracker, store, embedder, p.logger)
	stats, err := t.ProcessDays(ctx, dates, sourceDir)

	processed, skipped, created, transitions := 0, 0, 0, 0
	for _, ds := range stats {
		result := "processed"
		if ds.Skipped {
			skipped++
			result = "skipped"
		} else {
			processed++
			created += ds.Created
			transitions += ds.Transitions
		}
		if p.recorder != nil {
			p.recorder.RecordDay(result)
		}
	}

	step := StepResult{
		Name: "Track",
		Summary: fmt.Sprintf("Processed %d days (%d skipped): %d new signals, %d status changes",
			processed, skipped, created, transitions),
		Err: err,
	}
	return stats, step
}

func (p *Pipeline) stepSummarize(store *tracker.Store, stats []tracker.DayStats) StepResult {
	st, err := store.Load()
	if err != nil {
		return StepResult{Name: "Summarize", Err: err}
	}
	sum := tracker.Summarize(st, "", 0)

	byStatus := make(map[string]int, len(sum.ByStatus))
	active := 0
	for status, n := range sum.ByStatus {
		byStatus[string(status)] = n
		if status.Active() {
			active += n
		}
	}
	if p.recorder != nil {
		p.recorder.SetSignals(byStatus)
	}

	days := 0
	for _, ds := range stats {
		if !ds.Skipped {
			days++
		}
	}
	if days > 0 && st.LastProcessedDate != "" {
		if _, err := p.db.InsertRunReport(database.RunReport{
			Kind:          database.RunDaily,
			PeriodID:      st.LastProcessedDate,
			DaysProcessed: days,
			SignalsActive: active,
		}); err != nil {
			return StepResult{Name: "Summarize", Err: fmt.Errorf("recording run: %w", err)}
		}
	}

	return StepResult{
		Name:    "Summarize",
		Summary: fmt.Sprintf("%d signals tracked, %d active, last processed %s", sum.Total, active, st.LastProcessedDate),
	}
}
