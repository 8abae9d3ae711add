// Package pipeline wires the components into the two batch runs: the daily
// signal run and the weekly alert run.
package pipeline

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/techpulse/internal/config"
	"github.com/TobiSchelling/techpulse/internal/database"
	"github.com/TobiSchelling/techpulse/internal/llm"
	"github.com/TobiSchelling/techpulse/internal/metrics"
	"github.com/TobiSchelling/techpulse/internal/tracker"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	PeriodID string
	Steps    []StepResult
}

// Err returns the joined step errors, or nil.
func (r *Result) Err() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errors.Join(errs...)
}

func (r *Result) add(step StepResult) bool {
	r.Steps = append(r.Steps, step)
	return step.Err == nil
}

// Pipeline orchestrates the daily and weekly runs.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	embedder *llm.OllamaEmbedder
	recorder *metrics.Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a pipeline. The embedder is only built when embedding is
// enabled; metrics are only recorded when a textfile path is configured.
func New(cfg *config.Config, db *database.DB, logger zerolog.Logger) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		db:     db,
		logger: logger.With().Str("component", "pipeline").Logger(),
		now:    time.Now,
	}
	if cfg.Embedding.Enabled {
		p.embedder = llm.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.OllamaURL, cfg.Embedding.Timeout)
	}
	if cfg.MetricsPath() != "" {
		p.recorder = metrics.New()
	}
	return p
}

// SignalStore returns the tracker store under the configured data directory.
func (p *Pipeline) SignalStore() *tracker.Store {
	return tracker.NewStore(p.cfg.SignalsDir())
}

func (p *Pipeline) writeMetrics(name string, start time.Time) StepResult {
	if p.recorder == nil {
		return StepResult{Name: "Metrics", Summary: "disabled"}
	}
	end := p.now()
	p.recorder.RecordRun(name, end.Sub(start).Seconds(), end.Unix())
	path := p.cfg.MetricsPath()
	if err := p.recorder.WriteTextfile(path); err != nil {
		return StepResult{Name: "Metrics", Err: err}
	}
	return StepResult{Name: "Metrics", Summary: "wrote " + path}
}
