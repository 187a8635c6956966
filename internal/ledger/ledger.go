// Package ledger implements the persistent failure ledger: the set of
// (city, date, source) keys whose fetch attempts have been exhausted. The
// sweep consults the ledger before every fetch so that sources known to be
// failing for a unit are not hammered again on subsequent runs. Entries
// survive process restarts and are only removed by an explicit Clear.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gridpulse/internal/types"
)

// Ledger is the in-process view of the persisted failure set. All methods
// hold an internal mutex, so the check-then-mark sequence cannot race even
// if a future sweep implementation fans out across goroutines.
type Ledger struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[types.FetchKey]struct{}
}

// New creates a Ledger backed by the given file path. Call Load before use.
func New(path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		path:    path,
		logger:  logger,
		entries: make(map[types.FetchKey]struct{}),
	}
}

// Load reads the persisted ledger. An absent file is an empty ledger, not
// an error. The file format is a JSON array of [city, date, source]
// triples; entry order is not significant.
func (l *Ledger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		l.entries = make(map[types.FetchKey]struct{})
		return nil
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerIO,
			fmt.Sprintf("reading ledger %s", l.path), err)
	}

	var triples [][3]string
	if err := json.Unmarshal(raw, &triples); err != nil {
		return types.NewAppError(types.ErrCodeLedgerIO,
			fmt.Sprintf("parsing ledger %s", l.path), err)
	}

	entries := make(map[types.FetchKey]struct{}, len(triples))
	for _, t := range triples {
		entries[types.FetchKey{City: t[0], Date: t[1], Source: types.Source(t[2])}] = struct{}{}
	}
	l.entries = entries

	return nil
}

// ShouldSkip reports whether the key has previously exhausted its retries
// and must be skipped without a network call.
func (l *Ledger) ShouldSkip(key types.FetchKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[key]
	return ok
}

// MarkFailed records that the key exhausted its retry sequence. It is only
// called for genuine failures, never for no-data responses. Entries
// accumulate monotonically within a run.
func (l *Ledger) MarkFailed(key types.FetchKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = struct{}{}
}

// Len returns the number of ledgered keys.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns the ledgered keys sorted by (city, date, source), for
// inspection tooling and deterministic persistence.
func (l *Ledger) Entries() []types.FetchKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLocked()
}

func (l *Ledger) sortedLocked() []types.FetchKey {
	keys := make([]types.FetchKey, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].City != keys[j].City {
			return keys[i].City < keys[j].City
		}
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].Source < keys[j].Source
	})
	return keys
}

// Persist writes the full ledger to disk. It is called once at the end of a
// sweep rather than per key, to bound I/O. The write goes to a temp file in
// the same directory followed by a rename, so a crash can never leave a
// truncated ledger behind.
func (l *Ledger) Persist() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := l.sortedLocked()
	triples := make([][3]string, 0, len(keys))
	for _, k := range keys {
		triples = append(triples, [3]string{k.City, k.Date, string(k.Source)})
	}

	raw, err := json.MarshalIndent(triples, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerIO, "encoding ledger", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return types.NewAppError(types.ErrCodeLedgerIO, "creating ledger directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".ledger-*")
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerIO, "creating ledger temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeLedgerIO, "writing ledger temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeLedgerIO, "closing ledger temp file", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeLedgerIO, "replacing ledger file", err)
	}

	l.logger.Info("ledger persisted",
		"path", l.path,
		"entries", len(keys),
	)

	return nil
}

// Clear empties the ledger and persists the empty state. This is an
// explicit maintenance action; failures are never cleared automatically.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	l.entries = make(map[types.FetchKey]struct{})
	l.mu.Unlock()
	return l.Persist()
}
