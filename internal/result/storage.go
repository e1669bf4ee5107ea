package result

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Store persists run snapshots and the history file under a single data
// directory: <dir>/<run_id>.json per run, <dir>/latest.json always
// pointing at the newest run, <dir>/history.json for the summary rows.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// NewRunID stamps a run identifier from the run start time. UTC
// second-resolution timestamps sort lexically, so identifiers are unique
// and monotonically increasing across runs.
func NewRunID(t time.Time) string {
	return t.UTC().Format("2006-01-02T15-04-05")
}

// Score computes the run score, exact to one decimal place.
func Score(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(passed)/float64(total)*1000) / 10
}

// WriteSnapshot persists the snapshot and overwrites the latest pointer.
// Both writes go through a temp file and rename so a crash mid-write
// never leaves a partial file visible to readers.
func (s *Store) WriteSnapshot(snap *RunSnapshot) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	data = append(data, '\n')
	if err := writeFileAtomic(filepath.Join(s.Dir, snap.RunID+".json"), data); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.Dir, "latest.json"), data); err != nil {
		return fmt.Errorf("writing latest pointer: %w", err)
	}
	return nil
}

// ReadSnapshot loads a previously written snapshot.
func ReadSnapshot(path string) (*RunSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap RunSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &snap, nil
}

// ReadLatest loads the most recent snapshot via the latest pointer.
func (s *Store) ReadLatest() (*RunSnapshot, error) {
	return ReadSnapshot(filepath.Join(s.Dir, "latest.json"))
}

// ReadHistory loads the history file. A missing file is an empty
// history, not an error.
func (s *Store) ReadHistory() (*History, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, "history.json"))
	if os.IsNotExist(err) {
		return &History{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	var hist History
	if err := json.Unmarshal(data, &hist); err != nil {
		return nil, fmt.Errorf("parsing history: %w", err)
	}
	return &hist, nil
}

// UpsertHistory appends the entry to the history file, replacing any
// existing entry with the same run_id. Re-running with an identical
// run_id leaves the history length unchanged.
func (s *Store) UpsertHistory(entry HistoryEntry) error {
	hist, err := s.ReadHistory()
	if err != nil {
		return err
	}
	kept := hist.Entries[:0]
	for _, e := range hist.Entries {
		if e.RunID != entry.RunID {
			kept = append(kept, e)
		}
	}
	hist.Entries = append(kept, entry)
	sort.Slice(hist.Entries, func(i, j int) bool {
		return hist.Entries[i].RunID < hist.Entries[j].RunID
	})

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	data, err := json.MarshalIndent(hist, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	data = append(data, '\n')
	if err := writeFileAtomic(filepath.Join(s.Dir, "history.json"), data); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
