package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/techpulse/internal/cluster"
	"github.com/TobiSchelling/techpulse/internal/period"
)

func writeFeed(t *testing.T, dir, date string, clusters ...cluster.Cluster) {
	t.Helper()
	data, err := json.Marshal(cluster.Feed{Date: date, Clusters: clusters})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, cluster.FileName(date)), data, 0o644))
}

func theme(id string, entities ...string) cluster.Cluster {
	return cluster.Cluster{ClusterID: id, Kind: cluster.KindTheme, RepresentativeTitle: "Theme " + id, Entities: entities}
}

func newTestTracker(t *testing.T, embedder *fakeEmbedder) (*Tracker, string, string) {
	t.Helper()
	stateDir := t.TempDir()
	sourceDir := t.TempDir()
	store := NewStore(stateDir)
	store.now = func() time.Time { return time.Date(2026, 2, 20, 6, 0, 0, 0, time.UTC) }
	var tr *Tracker
	if embedder != nil {
		tr = New(DefaultConfig(), store, embedder, zerolog.Nop())
	} else {
		tr = New(DefaultConfig(), store, nil, zerolog.Nop())
	}
	return tr, stateDir, sourceDir
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0, 0}
	}
	return out, nil
}

func seed(t *testing.T, tr *Tracker, signals ...*Signal) {
	t.Helper()
	st := NewState()
	for _, s := range signals {
		st.Signals[s.SignalID] = s
	}
	require.NoError(t, tr.Store().Save(st))
}

func seededSignal(id, lastSeen string, entities ...string) *Signal {
	d := period.MustParse(lastSeen)
	return &Signal{
		SignalID:  id,
		Name:      id,
		Status:    StatusWeak,
		Profile:   Profile{Entities: entities, ExampleTitles: []string{}},
		Events:    []Event{{ClusterID: "seed-" + id, Date: d, MatchScore: 1}},
		FirstSeen: d,
		LastSeen:  d,
		UpdatedAt: d,
	}
}

func TestProcessDays_CreatesSignals(t *testing.T) {
	tr, stateDir, src := newTestTracker(t, nil)
	writeFeed(t, src, "2026-02-06",
		theme("c1", "langgraph", "crewai"),
		theme("c2", "pgvector", "qdrant"),
		cluster.Cluster{ClusterID: "e1", Kind: "EVENT", Entities: []string{"langgraph"}},
	)

	stats, err := tr.ProcessDays(context.Background(), []string{"2026-02-06"}, src)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Clusters)
	assert.Equal(t, 2, stats[0].Created)
	assert.Equal(t, 0, stats[0].Linked)

	st, err := tr.Store().Load()
	require.NoError(t, err)
	assert.Len(t, st.Signals, 2)
	assert.Equal(t, "2026-02-06", st.LastProcessedDate)

	id := NewSignalID("2026-02-06", "c1")
	sig := st.Signals[id]
	require.NotNil(t, sig)
	assert.Equal(t, "Theme c1", sig.Name)
	assert.Equal(t, StatusWeak, sig.Status)
	assert.Equal(t, 1, sig.Metrics.Mentions7D)
	assert.Equal(t, []string{"langgraph", "crewai"}, sig.Profile.Entities)
	assert.Regexp(t, `^sig_[0-9a-f]{12}$`, sig.SignalID)

	_, err = os.Stat(filepath.Join(stateDir, "signals_snapshot_2026-02-06.json"))
	assert.NoError(t, err)
}

func TestProcessDays_ReplayIsIdempotent(t *testing.T) {
	once, _, src := newTestTracker(t, nil)
	writeFeed(t, src, "2026-02-06", theme("c1", "a", "b"), theme("c2", "c", "d"), theme("c3", "a", "b", "e"))

	_, err := once.ProcessDays(context.Background(), []string{"2026-02-06"}, src)
	require.NoError(t, err)
	want, err := once.Store().Load()
	require.NoError(t, err)

	twice, _, _ := newTestTracker(t, nil)
	stats, err := twice.ProcessDays(context.Background(), []string{"2026-02-06", "2026-02-06"}, src)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 3, stats[1].Duplicates)
	assert.Zero(t, stats[1].Linked)
	assert.Zero(t, stats[1].Created)

	got, err := twice.Store().Load()
	require.NoError(t, err)
	require.Len(t, got.Signals, len(want.Signals))
	for id, w := range want.Signals {
		g := got.Signals[id]
		require.NotNil(t, g, id)
		assert.Equal(t, w.Metrics, g.Metrics)
		assert.Equal(t, w.Events, g.Events)
		assert.Equal(t, w.Status, g.Status)
	}
}

func TestProcessDays_LinksToBestScore(t *testing.T) {
	tr, _, src := newTestTracker(t, nil)
	// Cluster terms {a,b,c}: Jaccard 3/5 = 0.6 against A, 2/5 = 0.4 against B.
	a := seededSignal("sig_a", "2026-02-05", "a", "b", "c", "d", "e")
	b := seededSignal("sig_b", "2026-02-05", "a", "b", "d", "e")
	seed(t, tr, a, b)
	writeFeed(t, src, "2026-02-06", theme("c1", "a", "b", "c"))

	stats, err := tr.ProcessDays(context.Background(), []string{"2026-02-06"}, src)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[0].Linked)
	assert.Zero(t, stats[0].Created)

	st, err := tr.Store().Load()
	require.NoError(t, err)
	gotA, gotB := st.Signals["sig_a"], st.Signals["sig_b"]
	assert.Equal(t, 2, gotA.Metrics.Mentions7D, "exactly one new mention")
	assert.Equal(t, 1, gotB.Metrics.Mentions7D)
	require.Len(t, gotA.Events, 2)
	assert.Equal(t, "c1", gotA.Events[1].ClusterID)
	assert.InDelta(t, 0.6, gotA.Events[1].MatchScore, 1e-9)
	assert.Equal(t, "2026-02-06", gotA.LastSeen.String())
}

func TestProcessDays_TiePrefersMostRecent(t *testing.T) {
	tr, _, src := newTestTracker(t, nil)
	older := seededSignal("sig_a", "2026-02-01", "x", "y")
	newer := seededSignal("sig_b", "2026-02-04", "x", "y")
	seed(t, tr, older, newer)
	writeFeed(t, src, "2026-02-06", theme("c1", "x", "y"))

	_, err := tr.ProcessDays(context.Background(), []string{"2026-02-06"}, src)
	require.NoError(t, err)

	st, err := tr.Store().Load()
	require.NoError(t, err)
	assert.Len(t, st.Signals["sig_a"].Events, 1)
	assert.Len(t, st.Signals["sig_b"].Events, 2)
}

func TestProcessDays_BelowThresholdCreates(t *testing.T) {
	tr, _, src := newTestTracker(t, nil)
	seed(t, tr, seededSignal("sig_a", "2026-02-05", "a", "b", "c", "d"))
	writeFeed(t, src, "2026-02-06", theme("c1", "a", "x", "y", "z"))

	stats, err := tr.ProcessDays(context.Background(), []string{"2026-02-06"}, src)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[0].Created)
}

func TestProcessDays_EmbeddingBackfillBlends(t *testing.T) {
	tr, _, src := newTestTracker(t, &fakeEmbedder{})
	sig := seededSignal("sig_a", "2026-02-05", "q", "r")
	sig.Profile.Embedding = []float64{2, 0, 0}
	sig.Profile.EmbeddingCount = 1
	seed(t, tr, sig)
	// No shared entities: overlap 0, cosine 1, blended 0.5.
	writeFeed(t, src, "2026-02-06", theme("c1", "s", "t"))

	stats, err := tr.ProcessDays(context.Background(), []string{"2026-02-06"}, src)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[0].Linked)

	st, err := tr.Store().Load()
	require.NoError(t, err)
	got := st.Signals["sig_a"]
	assert.InDelta(t, 0.5, got.Events[1].MatchScore, 1e-9)
	assert.Equal(t, []float64{1.5, 0, 0}, got.Profile.Embedding)
	assert.Equal(t, 2, got.Profile.EmbeddingCount)
}

func TestProcessDays_EmbeddingFailureFallsBack(t *testing.T) {
	tr, _, src := newTestTracker(t, &fakeEmbedder{err: errors.New("ollama down")})
	writeFeed(t, src, "2026-02-06", theme("c1", "a"))

	stats, err := tr.ProcessDays(context.Background(), []string{"2026-02-06"}, src)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[0].Created)
}

func TestProcessDays_EmergesOverDays(t *testing.T) {
	tr, _, src := newTestTracker(t, nil)
	dates := []string{"2026-02-06", "2026-02-07", "2026-02-08"}
	for _, d := range dates {
		writeFeed(t, src, d, theme("c"+d, "langgraph", "crewai"))
	}

	stats, err := tr.ProcessDays(context.Background(), dates, src)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[2].Transitions)

	st, err := tr.Store().Load()
	require.NoError(t, err)
	require.Len(t, st.Signals, 1)
	sig := st.Sorted()[0]
	assert.Equal(t, StatusEmerging, sig.Status)
	assert.Equal(t, 3, sig.Metrics.Mentions7D)
	assert.Equal(t, 3, sig.Metrics.Domains7D)
	assert.InDelta(t, 0.59, sig.Metrics.Confidence, 1e-9)
	require.Len(t, sig.StatusHistory, 1)
	assert.Equal(t, Transition{Date: period.MustParse("2026-02-08"), From: StatusWeak, To: StatusEmerging}, sig.StatusHistory[0])
}

func TestProcessDays_EarlierDateDoesNotRewindState(t *testing.T) {
	tr, _, src := newTestTracker(t, nil)
	dates := []string{"2026-02-02", "2026-02-03", "2026-02-04", "2026-02-05"}
	for _, d := range dates {
		writeFeed(t, src, d, theme("c"+d, "langgraph", "crewai"))
	}
	_, err := tr.ProcessDays(context.Background(), dates, src)
	require.NoError(t, err)
	want, err := tr.Store().Load()
	require.NoError(t, err)
	require.Len(t, want.Signals, 1)
	before := want.Sorted()[0]
	assert.Equal(t, 4, before.Metrics.Mentions7D)

	stats, err := tr.ProcessDays(context.Background(), []string{"2026-02-02"}, src)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.True(t, stats[0].Skipped)
	assert.True(t, errors.Is(stats[0].Err, ErrDateBehindState))

	got, err := tr.Store().Load()
	require.NoError(t, err)
	after := got.Sorted()[0]
	assert.Equal(t, "2026-02-05", got.LastProcessedDate)
	assert.Equal(t, before.Metrics, after.Metrics)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, "2026-02-05", after.UpdatedAt.String())
}

func TestState_Linked(t *testing.T) {
	st := NewState()
	sig := seededSignal("s1", "2026-02-06", "x")
	st.Signals[sig.SignalID] = sig

	assert.True(t, st.Linked(period.MustParse("2026-02-06"), "seed-s1"))
	assert.False(t, st.Linked(period.MustParse("2026-02-07"), "seed-s1"))
	assert.False(t, st.Linked(period.MustParse("2026-02-06"), "other"))
}

func TestProcessDays_DeadSignalsStopLinking(t *testing.T) {
	tr, _, src := newTestTracker(t, nil)
	writeFeed(t, src, "2026-02-01", theme("c1", "x", "y"))
	writeFeed(t, src, "2026-02-15", theme("c2", "unrelated"))
	writeFeed(t, src, "2026-02-16", theme("c3", "x", "y"))

	_, err := tr.ProcessDays(context.Background(), []string{"2026-02-01", "2026-02-15"}, src)
	require.NoError(t, err)
	st, err := tr.Store().Load()
	require.NoError(t, err)
	first := st.Signals[NewSignalID("2026-02-01", "c1")]
	assert.Equal(t, StatusDead, first.Status)

	stats, err := tr.ProcessDays(context.Background(), []string{"2026-02-16"}, src)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[0].Created)
	assert.Zero(t, stats[0].Linked)
}

func TestProcessDays_SkipsMissingAndMalformed(t *testing.T) {
	tr, _, src := newTestTracker(t, nil)
	writeFeed(t, src, "2026-02-06", theme("c1", "a"))
	require.NoError(t, os.WriteFile(filepath.Join(src, cluster.FileName("2026-02-08")), []byte("{not json"), 0o644))
	writeFeed(t, src, "2026-02-09", theme("c2", "b"))

	stats, err := tr.ProcessDays(context.Background(), []string{"2026-02-06", "2026-02-07", "2026-02-08", "2026-02-09"}, src)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	assert.False(t, stats[0].Skipped)
	assert.True(t, stats[1].Skipped)
	assert.True(t, errors.Is(stats[1].Err, ErrNoClusterFile))
	assert.True(t, stats[2].Skipped)
	assert.False(t, stats[3].Skipped)

	st, err := tr.Store().Load()
	require.NoError(t, err)
	assert.Len(t, st.Signals, 2)
	assert.Equal(t, "2026-02-09", st.LastProcessedDate)
}

func TestProcessDays_CorruptStateFailsLoudly(t *testing.T) {
	tr, stateDir, src := newTestTracker(t, nil)
	writeFeed(t, src, "2026-02-06", theme("c1", "a"))
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "signals_state.json"), []byte("garbage"), 0o644))

	_, err := tr.ProcessDays(context.Background(), []string{"2026-02-06"}, src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateCorrupt))

	data, err := os.ReadFile(filepath.Join(stateDir, "signals_state.json"))
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(data), "corrupt state must not be overwritten")

	require.NoError(t, tr.Store().Reset())
	_, err = tr.ProcessDays(context.Background(), []string{"2026-02-06"}, src)
	require.NoError(t, err)
}

func TestProcessDays_Cancelled(t *testing.T) {
	tr, _, src := newTestTracker(t, nil)
	writeFeed(t, src, "2026-02-06", theme("c1", "a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.ProcessDays(ctx, []string{"2026-02-06"}, src)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_PanicsOnInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FadingVelocity = 1
	assert.Panics(t, func() { New(cfg, NewStore(t.TempDir()), nil, zerolog.Nop()) })
}
