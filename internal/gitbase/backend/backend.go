package backend

import (
	"context"
	"fmt"
	"strings"
)

// Backend executes version-control operations against one repository.
//
// The repository is fixed when the Backend is created; no implementation
// changes the process working directory. Merge, Pull and Push report their
// outcome as human-readable text following git's conventions: an empty string
// on success, "Already up to date." when there is nothing to merge, and the
// conflict or rejection message otherwise. Their error result is reserved for
// failures to run the operation at all.
type Backend interface {
	RepoPath() string

	Init(ctx context.Context) error
	Add(ctx context.Context, relPath string) error
	Commit(ctx context.Context, messageFile string) error
	Checkout(ctx context.Context, branch string, create bool) error
	Tag(ctx context.Context, name string) error
	Fetch(ctx context.Context, remote string) error

	Merge(ctx context.Context, branch string) (string, error)
	Pull(ctx context.Context, remote, branch string) (string, error)
	Push(ctx context.Context, remote, branch string) (string, error)

	// Log returns the history in git's default "medium" format, newest first,
	// without merge commits.
	Log(ctx context.Context, opts LogOptions) (string, error)
	// Show returns the content of path as of commit sha.
	Show(ctx context.Context, sha, path string) (string, error)
	// Head returns the commit HEAD points to, or "" for an unborn branch.
	Head(ctx context.Context) (string, error)
}

type LogOptions struct {
	// Path restricts the log to commits touching this repository-relative path.
	Path string
	// Since restricts the log to commits after this revision (tag, branch or sha).
	Since string
}

type Signature struct {
	Name  string
	Email string
}

var DefaultAuthor = Signature{Name: "gitbase", Email: "gitbase@localhost"}

func (s Signature) String() string {
	return fmt.Sprintf("%s <%s>", s.Name, s.Email)
}

func (s Signature) orDefault() Signature {
	if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Email) == "" {
		return DefaultAuthor
	}
	return s
}

type Options struct {
	// Author signs commits. DefaultAuthor is used when unset.
	Author Signature
}

// Kind selects a Backend implementation.
type Kind string

const (
	KindCLI    Kind = "cli"
	KindNative Kind = "native"
)

// New opens the Backend of the given kind for repoPath.
func New(kind Kind, repoPath string, opts Options) (Backend, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(string(kind)))) {
	case KindCLI, "":
		return NewCLI(repoPath, opts)
	case KindNative:
		return NewNative(repoPath, opts)
	default:
		return nil, fmt.Errorf("unknown backend %q (want %q or %q)", kind, KindCLI, KindNative)
	}
}

// DateLayout is the layout of the Date: line in git's default log format.
const DateLayout = "Mon Jan 2 15:04:05 2006 -0700"

// AlreadyUpToDate is the first line of a merge that had nothing to do.
const AlreadyUpToDate = "Already up to date."
