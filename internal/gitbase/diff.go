package gitbase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/thiagokokada/gitbase-go/internal/record"
)

const diffContext = 3

// DiffVersions returns a unified diff between two versions of id's snapshot.
// An empty fromSHA diffs against no previous version and an empty toSHA
// against the working snapshot. Identical versions yield "".
func (s *Store) DiffVersions(ctx context.Context, id record.Identity, fromSHA, toSHA string) (string, error) {
	from, err := s.versionText(ctx, id, fromSHA, false)
	if err != nil {
		return "", err
	}
	to, err := s.versionText(ctx, id, toSHA, true)
	if err != nil {
		return "", err
	}
	fromLabel := "a/" + id.Path()
	if fromSHA == "" {
		fromLabel = "/dev/null"
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(from),
		B:        splitLines(to),
		FromFile: fromLabel,
		ToFile:   "b/" + id.Path(),
		FromDate: fromSHA,
		ToDate:   toSHA,
		Context:  diffContext,
	})
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", id, err)
	}
	return text, nil
}

func (s *Store) versionText(ctx context.Context, id record.Identity, sha string, working bool) (string, error) {
	if sha != "" {
		text, err := s.backend.Show(ctx, sha, id.Path())
		if err != nil {
			return "", fmt.Errorf("diff %s at %s: %w", id, sha, err)
		}
		return text, nil
	}
	if !working {
		return "", nil
	}
	data, err := os.ReadFile(id.Filename(s.base))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", id, err)
	}
	return string(data), nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return difflib.SplitLines(s)
}
