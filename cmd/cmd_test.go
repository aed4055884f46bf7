package cmd

import (
	"bytes"
	"context"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/gitbase-go/internal/config"
	"github.com/thiagokokada/gitbase-go/internal/record"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(key, config.EnvPrefix+"_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

// execute runs gitbase against repo with the native backend.
func execute(t *testing.T, repo string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--repo", repo, "--backend", "native", "--color", "never"}, args...)
	err := run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), err
}

func TestPutGetHistory(t *testing.T) {
	isolate(t)
	repo := t.TempDir()

	out, err := execute(t, repo, "put", "widget", "w1", "color=red", "size=3")
	require.NoError(t, err)
	assert.Equal(t, "widget/w1.yml: committed 2 change(s)\n", out)

	out, err = execute(t, repo, "get", "widget", "w1")
	require.NoError(t, err)
	assert.Equal(t, "color: red\nsize: 3\n", out)

	out, err = execute(t, repo, "put", "widget", "w1", "color=blue", "size=3")
	require.NoError(t, err)
	assert.Equal(t, "widget/w1.yml: committed 1 change(s)\n", out)

	out, err = execute(t, repo, "put", "widget", "w1", "color=blue", "size=3")
	require.NoError(t, err)
	assert.Equal(t, "widget/w1.yml: unchanged\n", out)

	out, err = execute(t, repo, "history", "--class", "widget", "--id", "w1")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "commit "))
	assert.Contains(t, out, "Author: gitbase <gitbase@localhost>")
	assert.Contains(t, out, "        old: red\n")
	assert.Contains(t, out, "        new: blue\n")
	assert.Less(t, strings.Index(out, "new: blue"), strings.Index(out, "new: red"), "newest entry first")
}

func TestPutGeneratesID(t *testing.T) {
	isolate(t)
	repo := t.TempDir()

	out, err := execute(t, repo, "put", "widget", "color=red")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^widget/[0-9a-f-]{36}\.yml: committed 1 change\(s\)\n$`), out)

	out, err = execute(t, repo, "put", "--type", "Gadget", "gadget", "-", "name=x")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^gadget/[0-9a-f-]{36}\.yml: `), out)
}

func TestPutFromFile(t *testing.T) {
	isolate(t)
	repo := t.TempDir()
	file := repo + "-attrs.yaml"
	require.NoError(t, os.WriteFile(file, []byte("color: red\nsize: 1\n"), 0o644))
	t.Cleanup(func() { os.Remove(file) })

	_, err := execute(t, repo, "put", "--file", file, "widget", "w1", "size=2")
	require.NoError(t, err)
	out, err := execute(t, repo, "get", "widget", "w1")
	require.NoError(t, err)
	assert.Equal(t, "color: red\nsize: 2\n", out)
}

func TestDiffAgainstWorkingCopy(t *testing.T) {
	isolate(t)
	repo := t.TempDir()

	_, err := execute(t, repo, "put", "widget", "w1", "color=red")
	require.NoError(t, err)
	out, err := execute(t, repo, "diff", "widget", "w1", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "--- /dev/null")
	assert.Contains(t, out, "+++ b/widget/w1.yml")
	assert.Contains(t, out, "+color: red\n")
}

func TestCommandErrors(t *testing.T) {
	isolate(t)
	repo := t.TempDir()

	_, err := execute(t, repo, "history", "--class", "widget")
	assert.ErrorContains(t, err, "--class and --id must be given together")

	_, err = execute(t, repo, "get", "widget", "missing")
	assert.Error(t, err)

	_, err = execute(t, repo, "put", "widget", "w1", "=oops")
	assert.ErrorContains(t, err, "invalid assignment")

	_, err = execute(t, repo, "--backend", "svn", "get", "widget", "w1")
	assert.Error(t, err)
}

func TestApplyAssignments(t *testing.T) {
	t.Parallel()

	attrs := record.NewAttributes()
	require.NoError(t, applyAssignments(attrs, []string{
		"size=3",
		"name=",
		"tags=[a, b]",
		"meta={owner: me}",
		"label=hello world",
	}))
	assert.Equal(t, []string{"size", "name", "tags", "meta", "label"}, attrs.Keys())
	assert.Equal(t, 3, attrs.Lookup("size"))
	assert.Equal(t, "", attrs.Lookup("name"))
	assert.Equal(t, []any{"a", "b"}, attrs.Lookup("tags"))
	assert.True(t, record.AttributesOf("owner", "me").Equal(attrs.Lookup("meta").(*record.Attributes)))
	assert.Equal(t, "hello world", attrs.Lookup("label"))

	assert.Error(t, applyAssignments(record.NewAttributes(), []string{"novalue"}))
}

func TestSplitPutArgs(t *testing.T) {
	t.Parallel()

	id, rest := splitPutArgs([]string{"w1", "a=1"})
	assert.Equal(t, "w1", id)
	assert.Equal(t, []string{"a=1"}, rest)

	id, rest = splitPutArgs([]string{"-", "a=1"})
	assert.Len(t, id, 36)
	assert.Equal(t, []string{"a=1"}, rest)

	id, rest = splitPutArgs([]string{"a=1"})
	assert.Len(t, id, 36)
	assert.Equal(t, []string{"a=1"}, rest)
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "gitbase "), out)
}
