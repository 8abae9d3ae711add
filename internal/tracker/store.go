package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/TobiSchelling/techpulse/internal/fileutil"
	"github.com/TobiSchelling/techpulse/internal/period"
)

// StateVersion is the current signals_state.json schema version.
const StateVersion = 1

const stateFile = "signals_state.json"

// ErrStateCorrupt is returned when the state file exists but cannot be read
// as signal state. The tracker never silently starts over; the caller must
// reset explicitly.
var ErrStateCorrupt = errors.New("signal state corrupt")

// State is the canonical signal store.
type State struct {
	Version           int                `json:"version"`
	UpdatedAt         time.Time          `json:"updated_at"`
	LastProcessedDate string             `json:"last_processed_date,omitempty"`
	Signals           map[string]*Signal `json:"signals"`
}

// NewState returns an empty store.
func NewState() *State {
	return &State{Version: StateVersion, Signals: make(map[string]*Signal)}
}

// Linked reports whether any signal already holds the cluster for day.
func (s *State) Linked(day period.Date, clusterID string) bool {
	for _, sig := range s.Signals {
		if sig.HasEvent(day, clusterID) {
			return true
		}
	}
	return false
}

// Sorted returns the signals ordered by ID.
func (s *State) Sorted() []*Signal {
	out := make([]*Signal, 0, len(s.Signals))
	for _, sig := range s.Signals {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignalID < out[j].SignalID })
	return out
}

// Store reads and writes signal state under a data directory. It assumes a
// single writer process (the batch job); concurrent processes would race on
// the read-modify-write cycle. Writes are atomic so a crash mid-write leaves
// the previous state intact.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// StatePath returns the canonical state file path.
func (s *Store) StatePath() string {
	return filepath.Join(s.dir, stateFile)
}

// SnapshotPath returns the daily snapshot path for date.
func (s *Store) SnapshotPath(date string) string {
	return filepath.Join(s.dir, "signals_snapshot_"+date+".json")
}

// Load reads the state. A missing file yields an empty state; an unreadable
// one yields ErrStateCorrupt.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.StatePath())
	if errors.Is(err, os.ErrNotExist) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading signal state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStateCorrupt, s.StatePath(), err)
	}
	if st.Version < 1 || st.Version > StateVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrStateCorrupt, s.StatePath(), st.Version)
	}
	if st.Signals == nil {
		st.Signals = make(map[string]*Signal)
	}
	for id, sig := range st.Signals {
		if sig == nil || sig.SignalID != id {
			return nil, fmt.Errorf("%w: %s: signal %q does not match its key", ErrStateCorrupt, s.StatePath(), id)
		}
	}
	return &st, nil
}

// Save atomically replaces the state file.
func (s *Store) Save(st *State) error {
	st.Version = StateVersion
	st.UpdatedAt = s.now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding signal state: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.StatePath(), data, 0o644); err != nil {
		return fmt.Errorf("writing signal state: %w", err)
	}
	return nil
}

// WriteSnapshot writes the immutable snapshot for date.
func (s *Store) WriteSnapshot(date string, st *State) error {
	snap := struct {
		Date    string    `json:"date"`
		Signals []*Signal `json:"signals"`
	}{Date: date, Signals: st.Sorted()}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.SnapshotPath(date), data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Reset deletes the canonical state. Daily snapshots are kept.
func (s *Store) Reset() error {
	if err := os.Remove(s.StatePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing signal state: %w", err)
	}
	return nil
}
