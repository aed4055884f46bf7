package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTagCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <name>",
		Short: "Tag the current commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			return s.Tag(cmd.Context(), args[0])
		},
	}
}

func newCheckoutCmd(a *app) *cobra.Command {
	var create bool
	c := &cobra.Command{
		Use:   "checkout <branch>",
		Short: "Switch to a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			return s.Checkout(cmd.Context(), args[0], create)
		},
	}
	c.Flags().BoolVarP(&create, "create", "b", false, "create the branch first")
	return c
}

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [remote]",
		Short: "Fetch from a remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, _ := a.remoteAndBranch(args)
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			return s.Fetch(cmd.Context(), remote)
		},
	}
}

func newMergeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge a branch into the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			res, err := s.Merge(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, res.Output)
			fmt.Fprintf(a.stdout, "merge %s: %s\n", args[0], res.Outcome)
			if res.Conflicts() {
				return fmt.Errorf("merge %s: %s", args[0], res.Outcome)
			}
			return nil
		},
	}
}

func newPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull [remote] [branch]",
		Short: "Pull a branch from a remote, fast-forward only",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, branch := a.remoteAndBranch(args)
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			res, err := s.Pull(cmd.Context(), remote, branch)
			if err != nil {
				return err
			}
			return a.reportSync("pull", remote, branch, res.Output, res.Rejected(), res.Outcome.String())
		},
	}
}

func newPushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push [remote] [branch]",
		Short: "Push a branch to a remote",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, branch := a.remoteAndBranch(args)
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			res, err := s.Push(cmd.Context(), remote, branch)
			if err != nil {
				return err
			}
			return a.reportSync("push", remote, branch, res.Output, res.Rejected(), res.Outcome.String())
		},
	}
}

// remoteAndBranch fills missing positional arguments from the configuration.
func (a *app) remoteAndBranch(args []string) (string, string) {
	remote, branch := a.cfg.Remote, a.cfg.Branch
	if len(args) > 0 {
		remote = args[0]
	}
	if len(args) > 1 {
		branch = args[1]
	}
	return remote, branch
}

func (a *app) reportSync(op, remote, branch, output string, rejected bool, outcome string) error {
	fmt.Fprint(a.stdout, output)
	fmt.Fprintf(a.stdout, "%s %s %s: %s\n", op, remote, branch, outcome)
	if rejected {
		return fmt.Errorf("%s %s %s: %s", op, remote, branch, outcome)
	}
	return nil
}
