package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitbase-go/internal/buildinfo"
	"github.com/thiagokokada/gitbase-go/internal/config"
	"github.com/thiagokokada/gitbase-go/internal/gitbase"
	"github.com/thiagokokada/gitbase-go/internal/gitbase/backend"
	"github.com/thiagokokada/gitbase-go/internal/highlight"
)

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// app carries what every subcommand needs once flags and config are resolved.
type app struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
	hl     *highlight.Highlighter
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&app{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gitbase",
		Short:         "Versioned YAML object store on top of git",
		Long:          "gitbase keeps one YAML snapshot per object and records every update as a git commit whose message is the field-level change set.",
		Version:       buildinfo.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Root())
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newInitCmd(a),
		newPutCmd(a),
		newGetCmd(a),
		newShowCmd(a),
		newDiffCmd(a),
		newHistoryCmd(a),
		newWatchCmd(a),
		newTagCmd(a),
		newCheckoutCmd(a),
		newFetchCmd(a),
		newMergeCmd(a),
		newPullCmd(a),
		newPushCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) setup(root *cobra.Command) error {
	cfg, err := config.Load(root.PersistentFlags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level})))
	if cfg.File != "" {
		slog.Debug("loaded config", slog.String("path", cfg.File))
	}

	mode, err := highlight.ParseColorMode(cfg.Color)
	if err != nil {
		return err
	}
	a.hl = highlight.New(a.stdout, mode, highlight.ThemePreferenceFromString(cfg.Theme))
	return nil
}

func (a *app) openStore(autoCreate bool) (*gitbase.Store, error) {
	b, err := backend.New(backend.Kind(a.cfg.Backend), a.cfg.Repo, backend.Options{
		Author: backend.Signature{Name: a.cfg.Author.Name, Email: a.cfg.Author.Email},
	})
	if err != nil {
		return nil, err
	}
	return gitbase.Open(a.cfg.Repo, b, gitbase.Options{
		AutoCreate: autoCreate || a.cfg.AutoCreate,
		Logger:     slog.Default(),
	})
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the repository directory and initialize git in it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(true)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "gitbase repository at %s\n", s.BasePath())
			return nil
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintln(a.stdout, buildinfo.String())
			if out, err := backend.GitVersion(); err == nil {
				fmt.Fprintf(a.stdout, "%s (cli backend requires >= %s)\n", out, backend.MinGitVersion())
			}
			return nil
		},
	}
}
