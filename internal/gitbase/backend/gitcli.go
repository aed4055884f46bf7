package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type gitCLI struct {
	path   string
	author Signature
}

// NewCLI returns a Backend that runs the git executable with -C repoPath.
// The repository does not need to exist yet; Init creates it.
func NewCLI(repoPath string, opts Options) (Backend, error) {
	if err := ensureMinGitVersion(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	return &gitCLI{path: abs, author: opts.Author.orDefault()}, nil
}

func (g *gitCLI) RepoPath() string {
	if g == nil {
		return ""
	}
	return g.path
}

type gitResult struct {
	stdout   string
	stderr   string
	exitCode int
}

// output returns everything git printed, or a synthetic line when it printed
// nothing, so that a failed command never reads as success.
func (r gitResult) output(op string) string {
	out := strings.TrimSpace(strings.TrimSpace(r.stdout) + "\n" + strings.TrimSpace(r.stderr))
	if out == "" {
		out = fmt.Sprintf("%s: exit status %d", op, r.exitCode)
	}
	return out + "\n"
}

func (r gitResult) err(op string) error {
	if msg := strings.TrimSpace(r.stderr); msg != "" {
		return fmt.Errorf("%s: exit status %d: %s", op, r.exitCode, msg)
	}
	return fmt.Errorf("%s: exit status %d", op, r.exitCode)
}

// run runs git and reports its exit code. The error result is only set when
// git could not be run or was interrupted.
func (g *gitCLI) run(ctx context.Context, args ...string) (gitResult, error) {
	if g == nil || g.path == "" {
		return gitResult{}, fmt.Errorf("repository root not set")
	}
	cmdArgs := []string{
		"-C", g.path,
		"-c", "user.name=" + g.author.Name,
		"-c", "user.email=" + g.author.Email,
		"-c", "commit.gpgsign=false",
		"-c", "tag.gpgsign=false",
	}
	cmdArgs = append(cmdArgs, args...)
	cmd := exec.CommandContext(ctx, "git", cmdArgs...)
	cmd.Env = append(os.Environ(), "LC_ALL=C", "GIT_TERMINAL_PROMPT=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	slog.Debug("git", slog.String("repo", g.path), slog.Any("args", args))
	err := cmd.Run()
	res := gitResult{stdout: stdout.String(), stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			name := "git"
			if len(args) > 0 {
				name += " " + args[0]
			}
			return res, fmt.Errorf("%s: %w", name, err)
		}
		res.exitCode = exitErr.ExitCode()
	}
	return res, nil
}

func (g *gitCLI) runGitCommand(ctx context.Context, args []string, allowExit1 bool, op string) (string, error) {
	res, err := g.run(ctx, args...)
	if err != nil {
		return "", err
	}
	switch {
	case res.exitCode == 0:
	case allowExit1 && res.exitCode == 1 && res.stderr == "":
		// treat as success when git signals "no result" via exit code 1
	default:
		return "", res.err(op)
	}
	return res.stdout, nil
}
