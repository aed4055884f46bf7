package gitbase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/thiagokokada/gitbase-go/internal/gitbase/backend"
	"github.com/thiagokokada/gitbase-go/internal/record"
)

var (
	ErrRepositoryMissing = errors.New("repository missing")
	ErrNotADirectory     = errors.New("not a directory")
	ErrInvalidLayout     = errors.New("invalid repository layout")
	ErrNotFound          = errors.New("object not found")
)

type Options struct {
	// AutoCreate creates the base directory and initializes the repository
	// when they are missing.
	AutoCreate bool
	// Registry rebuilds typed objects for Get and HistoryEntry.Retrieve.
	Registry *record.Registry
	Logger   *slog.Logger
}

// Store keeps one YAML snapshot per object under its base directory and
// records every update as a commit whose message is the encoded ChangeSet.
type Store struct {
	base     string
	backend  backend.Backend
	registry *record.Registry
	log      *slog.Logger

	// mu serializes Update; other processes writing the same repository must
	// be coordinated by the caller.
	mu sync.Mutex
}

func Open(basePath string, b backend.Backend, opts Options) (*Store, error) {
	if b == nil {
		return nil, fmt.Errorf("open store: backend not set")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}
	if repo := b.RepoPath(); filepath.Clean(repo) != abs {
		return nil, fmt.Errorf("open store %s: %w: backend repository is %s", abs, ErrInvalidLayout, repo)
	}
	s := &Store{base: abs, backend: b, registry: opts.Registry, log: opts.Logger}
	if s.log == nil {
		s.log = slog.Default()
	}

	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !opts.AutoCreate {
			return nil, fmt.Errorf("open store %s: %w", abs, ErrRepositoryMissing)
		}
	case err != nil:
		return nil, fmt.Errorf("open store %s: %w", abs, err)
	case !info.IsDir():
		return nil, fmt.Errorf("open store %s: %w", abs, ErrNotADirectory)
	}

	gitDir := filepath.Join(abs, ".git")
	info, err = os.Stat(gitDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !opts.AutoCreate {
			return nil, fmt.Errorf("open store %s: %w: no .git directory", abs, ErrRepositoryMissing)
		}
		if err := b.Init(context.Background()); err != nil {
			return nil, fmt.Errorf("open store %s: %w", abs, err)
		}
		s.log.Info("initialized repository", slog.String("path", abs))
	case err != nil:
		return nil, fmt.Errorf("open store %s: %w", abs, err)
	case !info.IsDir():
		return nil, fmt.Errorf("open store %s: %w: %s is not a directory", abs, ErrInvalidLayout, gitDir)
	}
	return s, nil
}

func (s *Store) BasePath() string {
	return s.base
}

func (s *Store) Backend() backend.Backend {
	return s.backend
}

type UpdateResult struct {
	Changes *record.ChangeSet
	// Committed is false when nothing changed or the write was skipped.
	Committed bool
	// Skipped reports a write that could not be persisted because the base
	// or class directory is not a directory; Reason says which.
	Skipped bool
	Reason  string
}

// Update replaces the snapshot of id with attrs and commits the difference.
func (s *Store) Update(ctx context.Context, id record.Identity, attrs *record.Attributes) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reason := notADirectory(s.base); reason != "" {
		return s.skip(id, reason), nil
	}
	classDir := id.ClassDirectory(s.base)
	if _, err := os.Stat(classDir); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(classDir, 0o755); err != nil {
			return UpdateResult{}, fmt.Errorf("update %s: %w", id, err)
		}
	}
	if reason := notADirectory(classDir); reason != "" {
		return s.skip(id, reason), nil
	}

	filename := id.Filename(s.base)
	current, stored, existed, err := s.readSnapshot(filename)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: %w", id, err)
	}
	cs := record.Difference(id, current, attrs)
	snapshot, err := record.EncodeAttributes(attrs)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: encode snapshot: %w", id, err)
	}
	// Removed keys, reordered keys and new nil values change the snapshot
	// without producing a Change.
	if existed && bytes.Equal(stored, snapshot) {
		s.log.Debug("update without changes", slog.String("object", id.String()))
		return UpdateResult{Changes: cs}, nil
	}
	message, err := record.EncodeChangeSet(cs)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: encode changes: %w", id, err)
	}
	if err := writeFileAtomic(filename, snapshot); err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: %w", id, err)
	}
	if err := s.commit(ctx, id.Path(), message); err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: %w", id, err)
	}
	s.log.Debug("committed update",
		slog.String("object", id.String()),
		slog.Int("changes", cs.Len()),
	)
	return UpdateResult{Changes: cs, Committed: true}, nil
}

func (s *Store) skip(id record.Identity, reason string) UpdateResult {
	s.log.Warn("update skipped", slog.String("object", id.String()), slog.String("reason", reason))
	return UpdateResult{Changes: record.NewChangeSet(id), Skipped: true, Reason: reason}
}

func (s *Store) commit(ctx context.Context, relPath string, message []byte) error {
	f, err := os.CreateTemp("", "gitbase-commit-*")
	if err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(message); err != nil {
		f.Close()
		return fmt.Errorf("commit message: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	if err := s.backend.Add(ctx, relPath); err != nil {
		return err
	}
	return s.backend.Commit(ctx, f.Name())
}

// readSnapshot returns the stored attributes, the raw file contents and
// whether the file existed.
func (s *Store) readSnapshot(filename string) (*record.Attributes, []byte, bool, error) {
	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return record.NewAttributes(), nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	attrs, err := record.DecodeAttributes(data)
	if err != nil {
		return nil, data, true, fmt.Errorf("%s: %w", filename, err)
	}
	return attrs, data, true, nil
}

// Current returns the working snapshot of id.
func (s *Store) Current(ctx context.Context, id record.Identity) (*record.Attributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	attrs, _, existed, err := s.readSnapshot(id.Filename(s.base))
	if err != nil {
		return nil, err
	}
	if !existed {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return attrs, nil
}

// Get rebuilds the current object of id through the Registry.
func (s *Store) Get(ctx context.Context, id record.Identity) (any, error) {
	attrs, err := s.Current(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.registry.Build(id, attrs)
}

type HistoryOptions struct {
	// Object restricts the history to one object.
	Object *record.Identity
	// Since restricts the history to commits after a tag, branch or sha.
	Since string
}

func (s *Store) History(ctx context.Context, opts HistoryOptions) (*History, error) {
	logOpts := backend.LogOptions{Since: opts.Since}
	if opts.Object != nil {
		logOpts.Path = opts.Object.Path()
	}
	text, err := s.backend.Log(ctx, logOpts)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return &History{}, nil
	}
	h, err := newHistory(s, parseLog(text))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if opts.Object != nil {
		h = h.Filter(*opts.Object)
	}
	return h, nil
}

// VersionAt returns the snapshot of id as of commit sha.
func (s *Store) VersionAt(ctx context.Context, sha string, id record.Identity) (*record.Attributes, error) {
	text, err := s.backend.Show(ctx, sha, id.Path())
	if err != nil {
		return nil, fmt.Errorf("version %s of %s: %w", sha, id, err)
	}
	attrs, err := record.DecodeAttributes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("version %s of %s: %w", sha, id, err)
	}
	return attrs, nil
}

func (s *Store) Tag(ctx context.Context, name string) error {
	return s.backend.Tag(ctx, name)
}

func (s *Store) Checkout(ctx context.Context, branch string, create bool) error {
	return s.backend.Checkout(ctx, branch, create)
}

func (s *Store) Fetch(ctx context.Context, remote string) error {
	return s.backend.Fetch(ctx, remote)
}

func (s *Store) Merge(ctx context.Context, branch string) (MergeResult, error) {
	out, err := s.backend.Merge(ctx, branch)
	if err != nil {
		return MergeResult{}, err
	}
	res := MergeResult{Outcome: ClassifyMerge(out), Output: out}
	s.log.Info("merge", slog.String("branch", branch), slog.String("outcome", res.Outcome.String()))
	return res, nil
}

func (s *Store) Pull(ctx context.Context, remote, branch string) (SyncResult, error) {
	out, err := s.backend.Pull(ctx, remote, branch)
	if err != nil {
		return SyncResult{}, err
	}
	res := SyncResult{Outcome: ClassifyPull(out), Output: out}
	s.log.Info("pull",
		slog.String("remote", remote),
		slog.String("branch", branch),
		slog.String("outcome", res.Outcome.String()),
	)
	return res, nil
}

func (s *Store) Push(ctx context.Context, remote, branch string) (SyncResult, error) {
	out, err := s.backend.Push(ctx, remote, branch)
	if err != nil {
		return SyncResult{}, err
	}
	res := SyncResult{Outcome: ClassifyPush(out), Output: out}
	s.log.Info("push",
		slog.String("remote", remote),
		slog.String("branch", branch),
		slog.String("outcome", res.Outcome.String()),
	)
	return res, nil
}

// notADirectory explains why path cannot hold snapshots, or returns "".
func notADirectory(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("%s: %v", path, err)
	}
	if !info.IsDir() {
		return fmt.Sprintf("%s is not a directory", path)
	}
	return ""
}

func writeFileAtomic(filename string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}
