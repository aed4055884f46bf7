package gitbase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/thiagokokada/gitbase-go/internal/gitbase/backend"
	"github.com/thiagokokada/gitbase-go/internal/record"
)

var (
	widget1 = record.NewIdentity("Widget", "widget", "1")
	widget2 = record.NewIdentity("Widget", "widget", "2")
)

var storeKinds = []backend.Kind{backend.KindNative, backend.KindCLI}

type widget struct {
	Color string
	Size  int
}

func testRegistry() *record.Registry {
	reg := record.NewRegistry()
	reg.Register("Widget", func(attrs *record.Attributes) (any, error) {
		color, _ := attrs.Lookup("color").(string)
		size, _ := attrs.Lookup("size").(int)
		return widget{Color: color, Size: size}, nil
	})
	return reg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newStore opens a fresh store on kind, skipping CLI runs without a usable git.
func newStore(t *testing.T, kind backend.Kind) *Store {
	t.Helper()
	if kind == backend.KindCLI {
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("git not found on PATH")
		}
	}
	base := filepath.Join(t.TempDir(), "db")
	b, err := backend.New(kind, base, backend.Options{Author: backend.Signature{Name: "Tester", Email: "tester@example.com"}})
	if err != nil {
		if kind == backend.KindCLI {
			t.Skipf("git backend unavailable: %v", err)
		}
		t.Fatalf("backend.New(%s): %v", kind, err)
	}
	s, err := Open(base, b, Options{AutoCreate: true, Registry: testRegistry(), Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func newNativeStore(t *testing.T) *Store {
	t.Helper()
	return newStore(t, backend.KindNative)
}

func update(t *testing.T, s *Store, id record.Identity, attrs *record.Attributes) UpdateResult {
	t.Helper()
	res, err := s.Update(context.Background(), id, attrs)
	if err != nil {
		t.Fatalf("Update(%s): %v", id, err)
	}
	return res
}

func history(t *testing.T, s *Store, opts HistoryOptions) *History {
	t.Helper()
	h, err := s.History(context.Background(), opts)
	if err != nil {
		t.Fatalf("History(%+v): %v", opts, err)
	}
	return h
}

func current(t *testing.T, s *Store, id record.Identity) *record.Attributes {
	t.Helper()
	attrs, err := s.Current(context.Background(), id)
	if err != nil {
		t.Fatalf("Current(%s): %v", id, err)
	}
	return attrs
}

func changeSetOf(id record.Identity, changes ...record.Change) *record.ChangeSet {
	cs := record.NewChangeSet(id)
	for _, c := range changes {
		cs.Add(c)
	}
	return cs
}

const widgetNotes = "first paragraph\n\n  indented second paragraph\n"

func TestStoreThreeUpdates(t *testing.T) {
	t.Parallel()

	for _, kind := range storeKinds {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := newStore(t, kind)

			update(t, s, widget1, record.AttributesOf("color", "red", "size", 1, "notes", widgetNotes))
			update(t, s, widget2, record.AttributesOf("color", "orange", "size", 3))
			res := update(t, s, widget1, record.AttributesOf("color", "blue", "size", 2, "notes", widgetNotes))
			if !res.Committed || res.Skipped {
				t.Fatalf("third update = %+v, want committed", res)
			}

			h := history(t, s, HistoryOptions{})
			if h.Len() != 3 {
				t.Fatalf("History().Len() = %d, want 3", h.Len())
			}
			want := []*record.ChangeSet{
				changeSetOf(widget1, record.NewChange("color", "red", "blue"), record.NewChange("size", 1, 2)),
				changeSetOf(widget2, record.NewChange("color", nil, "orange"), record.NewChange("size", nil, 3)),
				changeSetOf(widget1,
					record.NewChange("color", nil, "red"),
					record.NewChange("size", nil, 1),
					record.NewChange("notes", nil, widgetNotes),
				),
			}
			for i, e := range h.Entries {
				if !want[i].Equal(e.ChangeSet) {
					t.Fatalf("entry %d changes = %+v, want %+v", i, e.ChangeSet.Changes(), want[i].Changes())
				}
				if len(e.SHA) != 40 {
					t.Fatalf("entry %d sha = %q", i, e.SHA)
				}
				if e.Author != "Tester <tester@example.com>" {
					t.Fatalf("entry %d author = %q", i, e.Author)
				}
				if e.Timestamp.IsZero() {
					t.Fatalf("entry %d date %q did not parse", i, e.Date)
				}
			}

			if got := current(t, s, widget1); !record.AttributesOf("color", "blue", "size", 2, "notes", widgetNotes).Equal(got) {
				t.Fatalf("Current(widget1) = %v", got.Map())
			}

			obj, err := h.Entries[2].Retrieve(ctx)
			if err != nil {
				t.Fatalf("Retrieve: %v", err)
			}
			if obj != (widget{Color: "red", Size: 1}) {
				t.Fatalf("Retrieve() = %+v", obj)
			}
			old, err := h.Entries[2].Attributes(ctx)
			if err != nil {
				t.Fatalf("Attributes: %v", err)
			}
			if got := old.Lookup("notes"); got != widgetNotes {
				t.Fatalf("notes at first commit = %q, want %q", got, widgetNotes)
			}

			obj, err = s.Get(ctx, widget1)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if obj != (widget{Color: "blue", Size: 2}) {
				t.Fatalf("Get() = %+v", obj)
			}
		})
	}
}

func TestStoreHistoryScoping(t *testing.T) {
	t.Parallel()

	for _, kind := range storeKinds {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := newStore(t, kind)

			update(t, s, widget1, record.AttributesOf("color", "red"))
			update(t, s, widget2, record.AttributesOf("color", "orange"))
			if err := s.Tag(ctx, "v1"); err != nil {
				t.Fatalf("Tag: %v", err)
			}
			update(t, s, widget1, record.AttributesOf("color", "blue"))
			update(t, s, widget2, record.AttributesOf("color", "green"))

			since := history(t, s, HistoryOptions{Since: "v1"})
			if since.Len() != 2 {
				t.Fatalf("History(since v1).Len() = %d, want 2", since.Len())
			}
			if !since.Entries[0].ChangeSet.Object.SameObject(widget2) || !since.Entries[1].ChangeSet.Object.SameObject(widget1) {
				t.Fatalf("History(since v1) objects = %s, %s", since.Entries[0].ChangeSet.Object, since.Entries[1].ChangeSet.Object)
			}

			only1 := history(t, s, HistoryOptions{Object: &widget1})
			if only1.Len() != 2 {
				t.Fatalf("History(widget1).Len() = %d, want 2", only1.Len())
			}
			for _, e := range only1.Entries {
				if !e.ChangeSet.Object.SameObject(widget1) {
					t.Fatalf("History(widget1) contains %s", e.ChangeSet.Object)
				}
			}

			scoped := history(t, s, HistoryOptions{Object: &widget2, Since: "v1"})
			if scoped.Len() != 1 {
				t.Fatalf("History(widget2 since v1).Len() = %d, want 1", scoped.Len())
			}
			c, ok := scoped.Entries[0].ChangeSet.Get("color")
			if !ok || c.Old != "orange" || c.New != "green" {
				t.Fatalf("color change = %+v, %v", c, ok)
			}

			attrs, err := scoped.Entries[0].Attributes(ctx)
			if err != nil {
				t.Fatalf("Attributes: %v", err)
			}
			if got := attrs.Lookup("color"); got != "green" {
				t.Fatalf("color at commit = %v, want green", got)
			}
		})
	}
}

func TestStoreUpdateWithoutChangesDoesNotCommit(t *testing.T) {
	t.Parallel()

	s := newNativeStore(t)

	update(t, s, widget1, record.AttributesOf("color", "red"))
	res := update(t, s, widget1, record.AttributesOf("color", "red"))
	if res.Committed || res.Changes.Len() != 0 {
		t.Fatalf("identical update = %+v, want no commit", res)
	}
	if got := history(t, s, HistoryOptions{}).Len(); got != 1 {
		t.Fatalf("History().Len() = %d, want 1", got)
	}
}

func TestStoreDeletedKeysAreNotTracked(t *testing.T) {
	t.Parallel()

	s := newNativeStore(t)

	update(t, s, widget1, record.AttributesOf("color", "red", "size", 1))
	res := update(t, s, widget1, record.AttributesOf("color", "blue"))
	if got := res.Changes.Fields(); !slices.Equal(got, []string{"color"}) {
		t.Fatalf("changed fields = %v, want [color]", got)
	}
	if got := current(t, s, widget1).Keys(); !slices.Equal(got, []string{"color"}) {
		t.Fatalf("Current keys = %v, want [color]", got)
	}
}

func TestStoreUpdateWithOnlyStructuralChangesCommits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		next *record.Attributes
	}{
		{name: "removed key", next: record.AttributesOf("color", "red")},
		{name: "reordered keys", next: record.AttributesOf("size", 1, "color", "red")},
		{name: "new nil value", next: record.AttributesOf("color", "red", "size", 1, "owner", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newNativeStore(t)
			update(t, s, widget1, record.AttributesOf("color", "red", "size", 1))

			res := update(t, s, widget1, tt.next)
			if !res.Committed {
				t.Fatalf("Update = %+v, want a commit", res)
			}
			if res.Changes.Len() != 0 {
				t.Fatalf("changes = %+v, want none", res.Changes.Changes())
			}

			got := current(t, s, widget1)
			if !tt.next.Equal(got) || !slices.Equal(got.Keys(), tt.next.Keys()) {
				t.Fatalf("Current = %v (keys %v), want %v (keys %v)", got.Map(), got.Keys(), tt.next.Map(), tt.next.Keys())
			}

			h := history(t, s, HistoryOptions{Object: &widget1})
			if h.Len() != 2 {
				t.Fatalf("History(widget1).Len() = %d, want 2", h.Len())
			}
			if h.Entries[0].ChangeSet.Len() != 0 || !h.Entries[0].ChangeSet.Object.SameObject(widget1) {
				t.Fatalf("newest entry = %+v", h.Entries[0].ChangeSet)
			}

			if res := update(t, s, widget1, tt.next); res.Committed {
				t.Fatalf("repeated update = %+v, want no commit", res)
			}
		})
	}
}

func TestStoreUpdateSkipsWhenClassPathIsAFile(t *testing.T) {
	t.Parallel()

	s := newNativeStore(t)
	if err := os.WriteFile(filepath.Join(s.BasePath(), "gadget"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := update(t, s, record.NewIdentity("Gadget", "gadget", "1"), record.AttributesOf("a", 1))
	if !res.Skipped || res.Committed {
		t.Fatalf("Update = %+v, want skipped", res)
	}
	if !strings.Contains(res.Reason, "not a directory") {
		t.Fatalf("Reason = %q", res.Reason)
	}
}

func TestStoreCurrentMissing(t *testing.T) {
	t.Parallel()

	s := newNativeStore(t)
	if _, err := s.Current(context.Background(), widget1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Current() error = %v, want ErrNotFound", err)
	}
}

func TestStoreCurrentDecodeError(t *testing.T) {
	t.Parallel()

	s := newNativeStore(t)
	if err := os.MkdirAll(widget1.ClassDirectory(s.BasePath()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(widget1.Filename(s.BasePath()), []byte("- a\n- b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Current(context.Background(), widget1); !errors.Is(err, record.ErrDecode) {
		t.Fatalf("Current() error = %v, want ErrDecode", err)
	}
}

func TestStoreDiffVersions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newNativeStore(t)

	update(t, s, widget1, record.AttributesOf("color", "red", "size", 1))
	update(t, s, widget1, record.AttributesOf("color", "blue", "size", 1))

	h := history(t, s, HistoryOptions{Object: &widget1})
	if h.Len() != 2 {
		t.Fatalf("History(widget1).Len() = %d, want 2", h.Len())
	}
	newest, oldest := h.Entries[0].SHA, h.Entries[1].SHA

	diff, err := s.DiffVersions(ctx, widget1, oldest, newest)
	if err != nil {
		t.Fatalf("DiffVersions: %v", err)
	}
	for _, want := range []string{"--- a/widget/1.yml", "+++ b/widget/1.yml", "-color: red\n", "+color: blue\n", " size: 1\n"} {
		if !strings.Contains(diff, want) {
			t.Fatalf("diff missing %q:\n%s", want, diff)
		}
	}

	diff, err = s.DiffVersions(ctx, widget1, "", "")
	if err != nil {
		t.Fatalf("DiffVersions: %v", err)
	}
	if !strings.Contains(diff, "--- /dev/null") || !strings.Contains(diff, "+color: blue\n") {
		t.Fatalf("diff against nothing:\n%s", diff)
	}

	diff, err = s.DiffVersions(ctx, widget1, newest, "")
	if err != nil {
		t.Fatalf("DiffVersions: %v", err)
	}
	if diff != "" {
		t.Fatalf("diff of head against working copy = %q, want empty", diff)
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	open := func(base string, autoCreate bool) error {
		t.Helper()
		b, err := backend.NewNative(base, backend.Options{})
		if err != nil {
			t.Fatal(err)
		}
		_, err = Open(base, b, Options{AutoCreate: autoCreate, Logger: quietLogger()})
		return err
	}
	mustWrite := func(path string, data []byte) {
		t.Helper()
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustMkdir := func(path string) {
		t.Helper()
		if err := os.Mkdir(path, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	file := filepath.Join(dir, "file")
	mustWrite(file, nil)
	noGit := filepath.Join(dir, "plain")
	mustMkdir(noGit)
	gitFile := filepath.Join(dir, "gitfile")
	mustMkdir(gitFile)
	mustWrite(filepath.Join(gitFile, ".git"), []byte("gitdir: elsewhere\n"))

	tests := []struct {
		name       string
		base       string
		autoCreate bool
		want       error
	}{
		{name: "missing base", base: filepath.Join(dir, "missing"), want: ErrRepositoryMissing},
		{name: "base is a file", base: file, autoCreate: true, want: ErrNotADirectory},
		{name: "no git directory", base: noGit, want: ErrRepositoryMissing},
		{name: "git is a file", base: gitFile, autoCreate: true, want: ErrInvalidLayout},
	}
	for _, tt := range tests {
		if err := open(tt.base, tt.autoCreate); !errors.Is(err, tt.want) {
			t.Fatalf("%s: Open() error = %v, want %v", tt.name, err, tt.want)
		}
	}

	created := filepath.Join(dir, "created")
	if err := open(created, true); err != nil {
		t.Fatalf("Open(auto create): %v", err)
	}
	if info, err := os.Stat(filepath.Join(created, ".git")); err != nil || !info.IsDir() {
		t.Fatalf(".git after auto create: %v", err)
	}

	b, err := backend.NewNative(filepath.Join(dir, "other"), backend.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Open(created, b, Options{}); !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("Open(mismatched backend) error = %v, want ErrInvalidLayout", err)
	}
}

func TestStoreSyncOperationsAreClassified(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := t.TempDir()
	if err := os.Mkdir(filepath.Join(base, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	fb := &fakeBackend{
		repoPath: base,
		mergeFunc: func(branch string) (string, error) {
			if branch == "current" {
				return "Already up to date.\n", nil
			}
			return "CONFLICT (content): Merge conflict in widget/1.yml\n", nil
		},
		pullFunc: func(string, string) (string, error) { return "", nil },
		pushFunc: func(string, string) (string, error) {
			return " ! [rejected]        main -> main (fetch first)\n", nil
		},
	}
	s, err := Open(base, fb, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if m, err := s.Merge(ctx, "current"); err != nil || !m.UpToDate() {
		t.Fatalf("Merge(current) = %+v, %v; want up to date", m, err)
	}
	m, err := s.Merge(ctx, "feature")
	if err != nil || !m.Conflicts() || !strings.HasPrefix(m.Output, "CONFLICT") {
		t.Fatalf("Merge(feature) = %+v, %v; want conflicts", m, err)
	}
	if p, err := s.Pull(ctx, "origin", "main"); err != nil || p.Outcome != SyncSuccess {
		t.Fatalf("Pull() = %+v, %v; want success", p, err)
	}
	if p, err := s.Push(ctx, "origin", "main"); err != nil || !p.Rejected() {
		t.Fatalf("Push() = %+v, %v; want rejected", p, err)
	}

	if err := s.Tag(ctx, "v2"); err != nil {
		t.Fatal(err)
	}
	if err := s.Checkout(ctx, "topic", true); err != nil {
		t.Fatal(err)
	}
	if err := s.Fetch(ctx, "origin"); err != nil {
		t.Fatal(err)
	}
	if fb.lastTag != "v2" || fb.lastCheckout != "topic" || fb.lastFetch != "origin" {
		t.Fatalf("recorded tag=%q checkout=%q fetch=%q", fb.lastTag, fb.lastCheckout, fb.lastFetch)
	}
}
