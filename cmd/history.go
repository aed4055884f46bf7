package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitbase-go/internal/gitbase"
	"github.com/thiagokokada/gitbase-go/internal/highlight"
	"github.com/thiagokokada/gitbase-go/internal/record"
)

func newHistoryCmd(a *app) *cobra.Command {
	var class, id, since string
	c := &cobra.Command{
		Use:   "history",
		Short: "List the commits of the store with their change sets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := gitbase.HistoryOptions{Since: since}
			switch {
			case class != "" && id != "":
				ident := record.NewIdentity("", class, id)
				opts.Object = &ident
			case class != "" || id != "":
				return errors.New("--class and --id must be given together")
			}
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			h, err := s.History(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return a.printHistory(h)
		},
	}
	c.Flags().StringVar(&class, "class", "", "only show commits touching this class")
	c.Flags().StringVar(&id, "id", "", "only show commits touching this object id")
	c.Flags().StringVar(&since, "since", "", "only show commits after this tag, branch or sha")
	return c
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print new commits as they land in the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			slog.Info("watching repository", slog.String("path", s.BasePath()))
			return s.Watch(cmd.Context(), func(h *gitbase.History) {
				if err := a.printHistory(h); err != nil {
					slog.Error("print history", slog.Any("error", err))
				}
			})
		},
	}
}

func (a *app) printHistory(h *gitbase.History) error {
	for i, e := range h.Entries {
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		fmt.Fprintf(a.stdout, "commit %s\nAuthor: %s\nDate:   %s\n\n", e.SHA, e.Author, e.Date)
		body, err := record.EncodeChangeSet(e.ChangeSet)
		if err != nil {
			return err
		}
		if err := a.hl.Write(a.stdout, indent(string(body), "    "), highlight.YAML); err != nil {
			return err
		}
	}
	return nil
}

func indent(text, prefix string) string {
	var b strings.Builder
	for line := range strings.Lines(text) {
		if strings.TrimSpace(line) != "" {
			b.WriteString(prefix)
		}
		b.WriteString(line)
	}
	return b.String()
}
