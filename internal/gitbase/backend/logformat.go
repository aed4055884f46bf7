package backend

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// FormatLogEntry renders c the way "git log --pretty=medium" does: header
// lines, a blank line, then every message line indented by four spaces.
func FormatLogEntry(c *object.Commit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "commit %s\n", c.Hash)
	fmt.Fprintf(&b, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(&b, "Date:   %s\n", c.Author.When.Format(DateLayout))
	b.WriteString("\n")
	message := strings.TrimRight(c.Message, "\n")
	for line := range strings.SplitSeq(message, "\n") {
		fmt.Fprintf(&b, "    %s\n", line)
	}
	return b.String()
}

// FormatLog joins entries with the blank separator line git prints.
func FormatLog(commits []*object.Commit) string {
	parts := make([]string, 0, len(commits))
	for _, c := range commits {
		parts = append(parts, FormatLogEntry(c))
	}
	return strings.Join(parts, "\n")
}
