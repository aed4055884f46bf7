package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thiagokokada/gitbase-go/internal/highlight"
	"github.com/thiagokokada/gitbase-go/internal/record"
)

func newPutCmd(a *app) *cobra.Command {
	var typeTag, file string
	c := &cobra.Command{
		Use:   "put <class> [id] [key=value...]",
		Short: "Store a new snapshot of an object and commit the change set",
		Long: "put replaces the snapshot of an object with the given attributes and commits the field-level difference.\n" +
			"Values are parsed as YAML scalars or flow collections. A random id is generated when id is omitted or \"-\".",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, assignments := splitPutArgs(args[1:])
			attrs := record.NewAttributes()
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if attrs, err = record.DecodeAttributes(data); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
			}
			if err := applyAssignments(attrs, assignments); err != nil {
				return err
			}
			if typeTag == "" {
				typeTag = args[0]
			}
			ident := record.NewIdentity(typeTag, args[0], id)

			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			res, err := s.Update(cmd.Context(), ident, attrs)
			if err != nil {
				return err
			}
			switch {
			case res.Skipped:
				return fmt.Errorf("%s not persisted: %s", ident, res.Reason)
			case res.Committed:
				fmt.Fprintf(a.stdout, "%s: committed %d change(s)\n", ident.Path(), res.Changes.Len())
			default:
				fmt.Fprintf(a.stdout, "%s: unchanged\n", ident.Path())
			}
			return nil
		},
	}
	c.Flags().StringVar(&typeTag, "type", "", "type tag stored with the change set (default: class)")
	c.Flags().StringVarP(&file, "file", "f", "", "read attributes from a YAML mapping before applying key=value pairs")
	return c
}

// splitPutArgs separates the optional id from key=value assignments.
func splitPutArgs(args []string) (string, []string) {
	if len(args) == 0 || strings.Contains(args[0], "=") {
		return uuid.NewString(), args
	}
	if args[0] == "-" {
		return uuid.NewString(), args[1:]
	}
	return args[0], args[1:]
}

func applyAssignments(attrs *record.Attributes, assignments []string) error {
	for _, pair := range assignments {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("invalid assignment %q, want key=value", pair)
		}
		value, err := parseValue(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		attrs.Set(key, value)
	}
	return nil
}

func parseValue(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return raw, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	if m, ok := v.(map[string]any); ok {
		return record.FromMap(m), nil
	}
	return v, nil
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <class> <id>",
		Short: "Print the current snapshot of an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			attrs, err := s.Current(cmd.Context(), record.NewIdentity("", args[0], args[1]))
			if err != nil {
				return err
			}
			return a.printAttributes(attrs)
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <sha> <class> <id>",
		Short: "Print the snapshot of an object as of a commit",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			attrs, err := s.VersionAt(cmd.Context(), args[0], record.NewIdentity("", args[1], args[2]))
			if err != nil {
				return err
			}
			return a.printAttributes(attrs)
		},
	}
}

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <class> <id> <from> [to]",
		Short: "Show a unified diff between two versions of an object",
		Long: "diff compares the snapshot at commit from with the one at commit to, or with the working copy when to is omitted.\n" +
			"Pass \"-\" as from to diff against an empty file.",
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			from := args[2]
			if from == "-" {
				from = ""
			}
			var to string
			if len(args) == 4 {
				to = args[3]
			}
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			out, err := s.DiffVersions(cmd.Context(), record.NewIdentity("", args[0], args[1]), from, to)
			if err != nil {
				return err
			}
			if out == "" {
				return nil
			}
			return a.hl.Write(a.stdout, out, highlight.Diff)
		},
	}
}

func (a *app) printAttributes(attrs *record.Attributes) error {
	if attrs == nil {
		return errors.New("no attributes")
	}
	data, err := record.EncodeAttributes(attrs)
	if err != nil {
		return err
	}
	return a.hl.Write(a.stdout, string(data), highlight.YAML)
}
