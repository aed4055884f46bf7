package gitbase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thiagokokada/gitbase-go/internal/gitbase/backend"
	"github.com/thiagokokada/gitbase-go/internal/record"
)

// HistoryEntry is one commit of the store together with the ChangeSet its
// message carries.
type HistoryEntry struct {
	SHA     string
	Author  string
	Message string
	// Date is the raw Date value printed by git; Timestamp is its parsed form,
	// zero when the value could not be parsed.
	Date      string
	Timestamp time.Time
	ChangeSet *record.ChangeSet

	store *Store
}

// History lists entries in backend order, newest first.
type History struct {
	Entries []*HistoryEntry
}

func newHistory(s *Store, records []commitRecord) (*History, error) {
	h := &History{Entries: make([]*HistoryEntry, 0, len(records))}
	for _, rec := range records {
		cs, err := record.DecodeChangeSet([]byte(rec.embedded))
		if err != nil {
			return nil, fmt.Errorf("commit %s: %w", rec.sha, err)
		}
		h.Entries = append(h.Entries, &HistoryEntry{
			SHA:       rec.sha,
			Author:    rec.author,
			Message:   rec.message,
			Date:      rec.date,
			Timestamp: parseDate(rec.date),
			ChangeSet: cs,
			store:     s,
		})
	}
	return h, nil
}

func parseDate(value string) time.Time {
	ts, err := time.Parse(backend.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return ts
}

func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Entries)
}

// Filter returns the entries whose ChangeSet belongs to id.
func (h *History) Filter(id record.Identity) *History {
	out := &History{}
	if h == nil {
		return out
	}
	for _, e := range h.Entries {
		if e.ChangeSet != nil && e.ChangeSet.Object.SameObject(id) {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

// Attributes reads the snapshot of the entry's object as of its commit.
func (e *HistoryEntry) Attributes(ctx context.Context) (*record.Attributes, error) {
	if e.store == nil {
		return nil, fmt.Errorf("history entry %s is not attached to a store", e.SHA)
	}
	return e.store.VersionAt(ctx, e.SHA, e.ChangeSet.Object)
}

// Retrieve rebuilds the object as of the entry's commit through the store's
// Registry.
func (e *HistoryEntry) Retrieve(ctx context.Context) (any, error) {
	attrs, err := e.Attributes(ctx)
	if err != nil {
		return nil, err
	}
	return e.store.registry.Build(e.ChangeSet.Object, attrs)
}
