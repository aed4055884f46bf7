package gitbase

import (
	"context"
	"errors"

	"github.com/thiagokokada/gitbase-go/internal/gitbase/backend"
)

type fakeBackend struct {
	repoPath string

	initFunc  func() error
	addFunc   func(relPath string) error
	logFunc   func(opts backend.LogOptions) (string, error)
	showFunc  func(sha, path string) (string, error)
	headFunc  func() (string, error)
	mergeFunc func(branch string) (string, error)
	pullFunc  func(remote, branch string) (string, error)
	pushFunc  func(remote, branch string) (string, error)

	lastLogOptions *backend.LogOptions
	lastShowSHA    string
	lastShowPath   string
	lastTag        string
	lastCheckout   string
	lastFetch      string
	commits        int
}

func (f *fakeBackend) RepoPath() string { return f.repoPath }

func (f *fakeBackend) Init(context.Context) error {
	if f.initFunc != nil {
		return f.initFunc()
	}
	return errors.New("unexpected Init call")
}

func (f *fakeBackend) Add(_ context.Context, relPath string) error {
	if f.addFunc != nil {
		return f.addFunc(relPath)
	}
	return nil
}

func (f *fakeBackend) Commit(context.Context, string) error {
	f.commits++
	return nil
}

func (f *fakeBackend) Checkout(_ context.Context, branch string, _ bool) error {
	f.lastCheckout = branch
	return nil
}

func (f *fakeBackend) Tag(_ context.Context, name string) error {
	f.lastTag = name
	return nil
}

func (f *fakeBackend) Fetch(_ context.Context, remote string) error {
	f.lastFetch = remote
	return nil
}

func (f *fakeBackend) Merge(_ context.Context, branch string) (string, error) {
	if f.mergeFunc != nil {
		return f.mergeFunc(branch)
	}
	return "", errors.New("unexpected Merge call")
}

func (f *fakeBackend) Pull(_ context.Context, remote, branch string) (string, error) {
	if f.pullFunc != nil {
		return f.pullFunc(remote, branch)
	}
	return "", errors.New("unexpected Pull call")
}

func (f *fakeBackend) Push(_ context.Context, remote, branch string) (string, error) {
	if f.pushFunc != nil {
		return f.pushFunc(remote, branch)
	}
	return "", errors.New("unexpected Push call")
}

func (f *fakeBackend) Log(_ context.Context, opts backend.LogOptions) (string, error) {
	f.lastLogOptions = &opts
	if f.logFunc != nil {
		return f.logFunc(opts)
	}
	return "", errors.New("unexpected Log call")
}

func (f *fakeBackend) Show(_ context.Context, sha, path string) (string, error) {
	f.lastShowSHA = sha
	f.lastShowPath = path
	if f.showFunc != nil {
		return f.showFunc(sha, path)
	}
	return "", errors.New("unexpected Show call")
}

func (f *fakeBackend) Head(context.Context) (string, error) {
	if f.headFunc != nil {
		return f.headFunc()
	}
	return "", errors.New("unexpected Head call")
}
