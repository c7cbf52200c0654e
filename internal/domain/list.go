package domain

import (
	"errors"
	"time"
)

// ErrNoNewEntries is returned by MergeFileList when the incoming mapping is
// empty. A merge with nothing to add has no meaningful cutoff and must be
// skipped by the caller, not silently applied.
var ErrNoNewEntries = errors.New("merge: no new entries")

// FileEntry is the per-file info stored in a FileList.
type FileEntry struct {
	Sweeps int `json:"sweeps"`
}

// FileList maps normalized keys to per-file info for one (level, product)
// pair. Serialized as a JSON object; encoding/json sorts the keys, which
// keeps the persisted form deterministic.
type FileList map[string]FileEntry

// MergeFileList overlays incoming entries onto existing, pruning existing
// entries older than the retention window. The cutoff is measured backward
// from the newest timestamp among the incoming keys, so a late-running batch
// never prunes entries it just added. Existing entries with unparseable keys
// are pruned. Incoming entries are always kept, even below the cutoff.
//
// The merge is idempotent: applying the same incoming mapping twice yields
// the same list as applying it once.
func MergeFileList(existing, incoming FileList, retention time.Duration) (FileList, time.Time, error) {
	if len(incoming) == 0 {
		return nil, time.Time{}, ErrNoNewEntries
	}

	var newest time.Time
	for key := range incoming {
		if ts, ok := KeyTimestamp(key); ok && ts.After(newest) {
			newest = ts
		}
	}
	if newest.IsZero() {
		// No incoming key carries a timestamp; fall back to the clock so the
		// prune still runs against a sane reference.
		newest = Now()
	}
	cutoff := newest.Add(-retention)

	merged := make(FileList, len(existing)+len(incoming))
	for key, entry := range existing {
		ts, ok := KeyTimestamp(key)
		if !ok || ts.Before(cutoff) {
			continue
		}
		merged[key] = entry
	}
	for key, entry := range incoming {
		merged[key] = entry
	}
	return merged, cutoff, nil
}
