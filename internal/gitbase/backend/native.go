package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type native struct {
	path   string
	author Signature

	mu   sync.Mutex
	repo *gitlib.Repository
}

// NewNative returns a Backend built on go-git. It needs no git executable;
// Merge only fast-forwards and reports diverged histories as a conflict.
func NewNative(repoPath string, opts Options) (Backend, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	return &native{path: abs, author: opts.Author.orDefault()}, nil
}

func (n *native) RepoPath() string {
	if n == nil {
		return ""
	}
	return n.path
}

func (n *native) open() (*gitlib.Repository, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.repo != nil {
		return n.repo, nil
	}
	repo, err := gitlib.PlainOpen(n.path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", n.path, err)
	}
	n.repo = repo
	return repo, nil
}

func (n *native) worktree() (*gitlib.Repository, *gitlib.Worktree, error) {
	repo, err := n.open()
	if err != nil {
		return nil, nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("worktree: %w", err)
	}
	return repo, wt, nil
}

func (n *native) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(n.path, 0o755); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	repo, err := gitlib.PlainInit(n.path, false)
	if errors.Is(err, gitlib.ErrRepositoryAlreadyExists) {
		repo, err = gitlib.PlainOpen(n.path)
	}
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	n.repo = repo
	slog.Debug("go-git init", slog.String("repo", n.path))
	return nil
}

func (n *native) Add(ctx context.Context, relPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	relPath = strings.TrimSpace(relPath)
	if relPath == "" {
		return fmt.Errorf("path not specified")
	}
	_, wt, err := n.worktree()
	if err != nil {
		return err
	}
	if _, err := wt.Add(filepath.ToSlash(relPath)); err != nil {
		return fmt.Errorf("add %s: %w", relPath, err)
	}
	return nil
}

func (n *native) Commit(ctx context.Context, messageFile string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := os.ReadFile(messageFile)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	_, wt, err := n.worktree()
	if err != nil {
		return err
	}
	hash, err := wt.Commit(string(msg), &gitlib.CommitOptions{
		Author: &object.Signature{Name: n.author.Name, Email: n.author.Email, When: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Debug("go-git commit", slog.String("repo", n.path), slog.String("sha", hash.String()))
	return nil
}

func (n *native) Checkout(ctx context.Context, branch string, create bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return fmt.Errorf("branch not specified")
	}
	_, wt, err := n.worktree()
	if err != nil {
		return err
	}
	err = wt.Checkout(&gitlib.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
	})
	if err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	return nil
}

func (n *native) Tag(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("tag not specified")
	}
	repo, err := n.open()
	if err != nil {
		return err
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("tag %s: %w", name, err)
	}
	if _, err := repo.CreateTag(name, head.Hash(), nil); err != nil {
		return fmt.Errorf("tag %s: %w", name, err)
	}
	return nil
}

func (n *native) Fetch(ctx context.Context, remote string) error {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return fmt.Errorf("remote not specified")
	}
	repo, err := n.open()
	if err != nil {
		return err
	}
	err = repo.FetchContext(ctx, &gitlib.FetchOptions{RemoteName: remote})
	if err != nil && !errors.Is(err, gitlib.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch %s: %w", remote, err)
	}
	return nil
}

func (n *native) Merge(ctx context.Context, branch string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return "", fmt.Errorf("branch not specified")
	}
	repo, wt, err := n.worktree()
	if err != nil {
		return "", err
	}
	target, err := repo.ResolveRevision(plumbing.Revision(branch))
	if err != nil {
		return "", fmt.Errorf("merge %s: %w", branch, err)
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", n.adoptUnbornHead(repo, wt, *target)
	}
	if err != nil {
		return "", fmt.Errorf("merge %s: %w", branch, err)
	}
	if head.Hash() == *target {
		return AlreadyUpToDate + "\n", nil
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return "", fmt.Errorf("merge %s: %w", branch, err)
	}
	targetCommit, err := repo.CommitObject(*target)
	if err != nil {
		return "", fmt.Errorf("merge %s: %w", branch, err)
	}
	if ok, err := targetCommit.IsAncestor(headCommit); err != nil {
		return "", fmt.Errorf("merge %s: %w", branch, err)
	} else if ok {
		return AlreadyUpToDate + "\n", nil
	}
	ok, err := headCommit.IsAncestor(targetCommit)
	if err != nil {
		return "", fmt.Errorf("merge %s: %w", branch, err)
	}
	if !ok {
		return fmt.Sprintf("CONFLICT (diverged): %s and HEAD have diverged; fast-forward not possible\n", branch), nil
	}
	if err := wt.Reset(&gitlib.ResetOptions{Commit: *target, Mode: gitlib.HardReset}); err != nil {
		return "", fmt.Errorf("merge %s: %w", branch, err)
	}
	return "", nil
}

// adoptUnbornHead points the branch HEAD names at target, as a merge into a
// repository without commits does.
func (n *native) adoptUnbornHead(repo *gitlib.Repository, wt *gitlib.Worktree, target plumbing.Hash) error {
	headRef, err := repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}
	name := headRef.Target()
	if headRef.Type() != plumbing.SymbolicReference {
		name = plumbing.Master
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(name, target)); err != nil {
		return fmt.Errorf("update %s: %w", name, err)
	}
	return wt.Reset(&gitlib.ResetOptions{Commit: target, Mode: gitlib.HardReset})
}

func (n *native) Pull(ctx context.Context, remote, branch string) (string, error) {
	remote = strings.TrimSpace(remote)
	branch = strings.TrimSpace(branch)
	if remote == "" || branch == "" {
		return "", fmt.Errorf("remote and branch must be specified")
	}
	_, wt, err := n.worktree()
	if err != nil {
		return "", err
	}
	err = wt.PullContext(ctx, &gitlib.PullOptions{
		RemoteName:    remote,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	switch {
	case err == nil, errors.Is(err, gitlib.NoErrAlreadyUpToDate):
		return "", nil
	case errors.Is(err, gitlib.ErrNonFastForwardUpdate):
		return fmt.Sprintf(" ! [rejected]        %s -> %s (non-fast-forward)\n", branch, branch), nil
	default:
		return "", fmt.Errorf("pull %s %s: %w", remote, branch, err)
	}
}

func (n *native) Push(ctx context.Context, remote, branch string) (string, error) {
	remote = strings.TrimSpace(remote)
	branch = strings.TrimSpace(branch)
	if remote == "" || branch == "" {
		return "", fmt.Errorf("remote and branch must be specified")
	}
	repo, err := n.open()
	if err != nil {
		return "", err
	}
	ref := plumbing.NewBranchReferenceName(branch)
	err = repo.PushContext(ctx, &gitlib.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref.String() + ":" + ref.String())},
	})
	switch {
	case err == nil, errors.Is(err, gitlib.NoErrAlreadyUpToDate):
		return "", nil
	case errors.Is(err, gitlib.ErrNonFastForwardUpdate), errors.Is(err, gitlib.ErrForceNeeded):
		return fmt.Sprintf(" ! [rejected]        %s -> %s (non-fast-forward)\n", branch, branch), nil
	default:
		return "", fmt.Errorf("push %s %s: %w", remote, branch, err)
	}
}

func (n *native) Log(ctx context.Context, opts LogOptions) (string, error) {
	repo, err := n.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("log: %w", err)
	}
	excluded, err := n.reachable(ctx, repo, strings.TrimSpace(opts.Since))
	if err != nil {
		return "", err
	}
	logOpts := &gitlib.LogOptions{From: head.Hash(), Order: gitlib.LogOrderDFS}
	if path := strings.TrimSpace(opts.Path); path != "" {
		p := filepath.ToSlash(path)
		logOpts.FileName = &p
	}
	iter, err := repo.Log(logOpts)
	if err != nil {
		return "", fmt.Errorf("log: %w", err)
	}
	defer iter.Close()
	var commits []*object.Commit
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		c, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("log: %w", err)
		}
		if _, skip := excluded[c.Hash]; skip || c.NumParents() > 1 {
			continue
		}
		commits = append(commits, c)
	}
	return FormatLog(commits), nil
}

// reachable returns every commit reachable from rev, or nil for an empty rev.
func (n *native) reachable(ctx context.Context, repo *gitlib.Repository, rev string) (map[plumbing.Hash]struct{}, error) {
	if rev == "" {
		return nil, nil
	}
	from, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("log %s..HEAD: %w", rev, err)
	}
	iter, err := repo.Log(&gitlib.LogOptions{From: *from})
	if err != nil {
		return nil, fmt.Errorf("log %s..HEAD: %w", rev, err)
	}
	defer iter.Close()
	seen := make(map[plumbing.Hash]struct{})
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[c.Hash] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seen, nil
}

func (n *native) Show(ctx context.Context, sha, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sha = strings.TrimSpace(sha)
	if sha == "" {
		return "", fmt.Errorf("commit not specified")
	}
	repo, err := n.open()
	if err != nil {
		return "", err
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(sha))
	if err != nil {
		return "", fmt.Errorf("show %s:%s: %w", sha, path, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return "", fmt.Errorf("show %s:%s: %w", sha, path, err)
	}
	file, err := commit.File(filepath.ToSlash(path))
	if err != nil {
		return "", fmt.Errorf("show %s:%s: %w", sha, path, err)
	}
	return file.Contents()
}

func (n *native) Head(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	repo, err := n.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	return head.Hash().String(), nil
}
