package backend

import (
	"context"
	"fmt"
	"os"
	"strings"
)

func (g *gitCLI) Init(ctx context.Context) error {
	if err := os.MkdirAll(g.path, 0o755); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	_, err := g.runGitCommand(ctx, []string{"init", "--quiet"}, false, "git init")
	return err
}

func (g *gitCLI) Add(ctx context.Context, relPath string) error {
	relPath = strings.TrimSpace(relPath)
	if relPath == "" {
		return fmt.Errorf("path not specified")
	}
	_, err := g.runGitCommand(ctx, []string{"add", "--", relPath}, false, "git add")
	return err
}

func (g *gitCLI) Commit(ctx context.Context, messageFile string) error {
	if strings.TrimSpace(messageFile) == "" {
		return fmt.Errorf("commit message file not specified")
	}
	_, err := g.runGitCommand(
		ctx,
		[]string{"commit", "--quiet", "--no-verify", "--cleanup=verbatim", "--file", messageFile},
		false,
		"git commit",
	)
	return err
}

func (g *gitCLI) Checkout(ctx context.Context, branch string, create bool) error {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return fmt.Errorf("branch not specified")
	}
	args := []string{"checkout", "--quiet"}
	if create {
		args = append(args, "-b")
	}
	args = append(args, branch)
	_, err := g.runGitCommand(ctx, args, false, "git checkout")
	return err
}

func (g *gitCLI) Tag(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("tag not specified")
	}
	_, err := g.runGitCommand(ctx, []string{"tag", name}, false, "git tag")
	return err
}

func (g *gitCLI) Fetch(ctx context.Context, remote string) error {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return fmt.Errorf("remote not specified")
	}
	_, err := g.runGitCommand(ctx, []string{"fetch", "--quiet", remote}, false, "git fetch")
	return err
}

func (g *gitCLI) Merge(ctx context.Context, branch string) (string, error) {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return "", fmt.Errorf("branch not specified")
	}
	// git prints progress on a successful merge; check ancestry first so the
	// returned text follows the Backend conventions.
	res, err := g.run(ctx, "merge-base", "--is-ancestor", branch, "HEAD")
	if err != nil {
		return "", err
	}
	switch res.exitCode {
	case 0:
		return AlreadyUpToDate + "\n", nil
	case 1:
	default:
		return "", res.err("git merge-base")
	}
	res, err = g.run(ctx, "merge", "--no-edit", "--no-stat", branch)
	if err != nil {
		return "", err
	}
	if res.exitCode == 0 {
		return "", nil
	}
	return res.output("git merge"), nil
}

func (g *gitCLI) Pull(ctx context.Context, remote, branch string) (string, error) {
	remote = strings.TrimSpace(remote)
	branch = strings.TrimSpace(branch)
	if remote == "" || branch == "" {
		return "", fmt.Errorf("remote and branch must be specified")
	}
	res, err := g.run(ctx, "pull", "--quiet", "--ff-only", "--no-rebase", remote, branch)
	if err != nil {
		return "", err
	}
	if res.exitCode == 0 {
		return "", nil
	}
	return res.output("git pull"), nil
}

func (g *gitCLI) Push(ctx context.Context, remote, branch string) (string, error) {
	remote = strings.TrimSpace(remote)
	branch = strings.TrimSpace(branch)
	if remote == "" || branch == "" {
		return "", fmt.Errorf("remote and branch must be specified")
	}
	res, err := g.run(ctx, "push", "--quiet", remote, branch)
	if err != nil {
		return "", err
	}
	if res.exitCode == 0 {
		return "", nil
	}
	return res.output("git push"), nil
}

func (g *gitCLI) Log(ctx context.Context, opts LogOptions) (string, error) {
	head, err := g.Head(ctx)
	if err != nil {
		return "", err
	}
	if head == "" {
		return "", nil
	}
	args := []string{
		"--no-pager",
		"log",
		"--no-color",
		"--no-decorate",
		"--no-show-signature",
		"--no-merges",
		"--pretty=medium",
		"--date=default",
	}
	if since := strings.TrimSpace(opts.Since); since != "" {
		args = append(args, since+"..HEAD")
	} else {
		args = append(args, "HEAD")
	}
	if path := strings.TrimSpace(opts.Path); path != "" {
		args = append(args, "--", path)
	}
	return g.runGitCommand(ctx, args, false, "git log")
}

func (g *gitCLI) Show(ctx context.Context, sha, path string) (string, error) {
	sha = strings.TrimSpace(sha)
	if sha == "" {
		return "", fmt.Errorf("commit not specified")
	}
	return g.runGitCommand(
		ctx,
		[]string{"--no-pager", "show", "--no-color", sha + ":" + path},
		false,
		"git show",
	)
}

func (g *gitCLI) Head(ctx context.Context) (string, error) {
	out, err := g.runGitCommand(ctx, []string{"rev-parse", "-q", "--verify", "HEAD"}, true, "git rev-parse")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
