package gitbase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thiagokokada/gitbase-go/internal/debounce"
)

const watchDebounceDelay = 350 * time.Millisecond

// Watch calls fn with the entries committed since the previous call each time
// the repository settles after a change. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(*History)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			s.log.Error("watcher close", slog.Any("error", err))
		}
	}()
	for _, path := range s.watchPaths() {
		s.log.Debug("adding path to FS watcher", slog.String("path", path))
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}

	last, err := s.backend.Head(ctx)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	settled := make(chan struct{}, 1)
	d := debounce.New(watchDebounceDelay, func() {
		select {
		case settled <- struct{}{}:
		default:
		}
	})
	defer d.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ignoreWatchPath(ev.Name) {
				continue
			}
			s.log.Debug("fsnotify event", slog.String("op", ev.Op.String()), slog.String("path", ev.Name))
			d.Trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("fsnotify error", slog.Any("error", err))
		case <-settled:
			head, err := s.notifyNew(ctx, last, fn)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				s.log.Error("watch history", slog.Any("error", err))
				continue
			}
			last = head
		}
	}
}

// notifyNew reports the commits after last and returns the new head.
func (s *Store) notifyNew(ctx context.Context, last string, fn func(*History)) (string, error) {
	head, err := s.backend.Head(ctx)
	if err != nil {
		return last, err
	}
	if head == last || head == "" {
		return head, nil
	}
	h, err := s.History(ctx, HistoryOptions{Since: last})
	if err != nil {
		return last, err
	}
	if h.Len() > 0 {
		fn(h)
	}
	return head, nil
}

func (s *Store) watchPaths() []string {
	gitDir := filepath.Join(s.base, ".git")
	paths := []string{gitDir}
	heads := filepath.Join(gitDir, "refs", "heads")
	if info, err := os.Stat(heads); err == nil && info.IsDir() {
		paths = append(paths, heads)
	}
	return paths
}

func ignoreWatchPath(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".lock" || ext == ".ipc"
}
