package backend

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Oldest git whose flags the CLI backend relies on ("merge-base --is-ancestor",
// "pull --ff-only --no-rebase", "commit --cleanup=verbatim").
var minGitVersion = gitVersion{major: 2, minor: 23}

type gitVersion struct {
	major, minor, patch int
}

func MinGitVersion() string {
	return minGitVersion.String()
}

func (v gitVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
}

func (v gitVersion) less(other gitVersion) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	return v.patch < other.patch
}

// parseGitVersion accepts "git version 2.44.0", vendor suffixes such as
// "2.39.3 (Apple Git-146)" or "2.39.3.windows.1", and a bare "2.42".
func parseGitVersion(out string) (gitVersion, bool) {
	s := strings.TrimSpace(out)
	s = strings.TrimSpace(strings.TrimPrefix(s, "git version"))
	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return gitVersion{}, false
	}
	s = s[start:]
	if end := strings.IndexFunc(s, func(r rune) bool { return !isDigit(r) && r != '.' }); end >= 0 {
		s = s[:end]
	}
	parts := strings.Split(strings.Trim(s, "."), ".")
	if len(parts) < 2 {
		return gitVersion{}, false
	}
	nums := make([]int, 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			if i < 2 {
				return gitVersion{}, false
			}
			break
		}
		nums[i] = n
	}
	return gitVersion{major: nums[0], minor: nums[1], patch: nums[2]}, true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func checkGitVersion(out string) error {
	got, ok := parseGitVersion(out)
	if !ok {
		return fmt.Errorf("unable to parse git version output: %q", strings.TrimSpace(out))
	}
	if got.less(minGitVersion) {
		return fmt.Errorf("git %s is too old; gitbase requires git >= %s", got, minGitVersion)
	}
	return nil
}

var (
	gitVersionOnce sync.Once
	gitVersionOut  string
	gitVersionErr  error
)

// GitVersion returns the output of "git --version", cached for the process.
func GitVersion() (string, error) {
	gitVersionOnce.Do(func() {
		raw, err := exec.Command("git", "--version").CombinedOutput()
		gitVersionOut = strings.TrimSpace(string(raw))
		if err != nil {
			if gitVersionOut != "" {
				gitVersionErr = fmt.Errorf("git --version: %v: %s", err, gitVersionOut)
			} else {
				gitVersionErr = fmt.Errorf("git --version: %w", err)
			}
		}
	})
	return gitVersionOut, gitVersionErr
}

func ensureMinGitVersion() error {
	out, err := GitVersion()
	if err != nil {
		return err
	}
	return checkGitVersion(out)
}
