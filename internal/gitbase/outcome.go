package gitbase

import (
	"strings"

	"github.com/thiagokokada/gitbase-go/internal/gitbase/backend"
)

type MergeOutcome int

const (
	MergeSuccess MergeOutcome = iota
	MergeUpToDate
	MergeConflicts
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeSuccess:
		return "success"
	case MergeUpToDate:
		return "up to date"
	case MergeConflicts:
		return "conflicts"
	default:
		return "unknown"
	}
}

type SyncOutcome int

const (
	SyncSuccess SyncOutcome = iota
	SyncRejected
)

func (o SyncOutcome) String() string {
	switch o {
	case SyncSuccess:
		return "success"
	case SyncRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ClassifyMerge reads the text a merge printed. These are heuristics over
// human-readable output: blank means success, a first line of "Already up to
// date" (with or without git's trailing period) means nothing was merged, and
// anything else is treated as conflicts.
func ClassifyMerge(raw string) MergeOutcome {
	if strings.TrimSpace(raw) == "" {
		return MergeSuccess
	}
	first, _, _ := strings.Cut(raw, "\n")
	first = strings.TrimRight(first, "\r")
	if first == backend.AlreadyUpToDate || first == strings.TrimSuffix(backend.AlreadyUpToDate, ".") {
		return MergeUpToDate
	}
	return MergeConflicts
}

// ClassifyPull reports any output of a pull as a rejection.
func ClassifyPull(raw string) SyncOutcome {
	return classifySync(raw)
}

// ClassifyPush reports any output of a push as a rejection.
func ClassifyPush(raw string) SyncOutcome {
	return classifySync(raw)
}

func classifySync(raw string) SyncOutcome {
	if strings.TrimSpace(raw) == "" {
		return SyncSuccess
	}
	return SyncRejected
}

type MergeResult struct {
	Outcome MergeOutcome
	Output  string
}

func (r MergeResult) Conflicts() bool {
	return r.Outcome == MergeConflicts
}

func (r MergeResult) UpToDate() bool {
	return r.Outcome == MergeUpToDate
}

type SyncResult struct {
	Outcome SyncOutcome
	Output  string
}

func (r SyncResult) Rejected() bool {
	return r.Outcome == SyncRejected
}
