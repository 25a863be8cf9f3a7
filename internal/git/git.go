// Package git provides the repository primitives the compose engine
// consumes: a diff-and-stat provider, an index-only apply/stage primitive,
// and commit creation.
//
// Index mutations and commits shell out to the git executable; read-only
// inspection (repository discovery, HEAD resolution, worktree status) goes
// through go-git.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ApplyRejectedError reports that git rejected an assembled patch, e.g.
// because the on-disk state diverged from the baseline assumption.
type ApplyRejectedError struct {
	Stderr string
}

func (e *ApplyRejectedError) Error() string {
	return "git apply --cached rejected patch: " + strings.TrimSpace(e.Stderr)
}

// Repo is an opened git repository rooted at the worktree top level.
type Repo struct {
	root string
	repo *gitlib.Repository
}

// Open discovers the repository containing path. It fails when git is
// missing or older than the minimum supported version.
func Open(path string) (*Repo, error) {
	if err := ensureMinGitVersion(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	tmp := &Repo{root: abs}
	root, err := tmp.runGit([]string{"rev-parse", "--show-toplevel"}, false, "git rev-parse")
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("open repository: git rev-parse returned empty root")
	}
	return &Repo{root: root, repo: repo}, nil
}

func (r *Repo) Root() string {
	if r == nil {
		return ""
	}
	return r.root
}

func (r *Repo) runGit(args []string, allowExit1 bool, context string) (string, error) {
	if r == nil || r.root == "" {
		return "", fmt.Errorf("repository root not set")
	}
	cmdArgs := append([]string{"-C", r.root}, args...)
	cmd := exec.Command("git", cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if allowExit1 && errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && stderr.Len() == 0 {
			// git diff signals "changes present" via exit code 1
		} else {
			if stderr.Len() > 0 {
				return "", fmt.Errorf("%s: %v: %s", context, err, strings.TrimSpace(stderr.String()))
			}
			return "", fmt.Errorf("%s: %w", context, err)
		}
	}
	return stdout.String(), nil
}

// StagedDiff returns the diff of the index against HEAD.
func (r *Repo) StagedDiff() (string, error) {
	return r.runGit([]string{"diff", "--no-color", "--cached"}, true, "git diff --cached")
}

// StagedStatText returns the human-readable stat of the index against HEAD.
func (r *Repo) StagedStatText() (string, error) {
	return r.runGit([]string{"diff", "--no-color", "--cached", "--stat"}, true, "git diff --cached --stat")
}

// HeadStatText returns the human-readable stat of worktree and index
// against HEAD.
func (r *Repo) HeadStatText() (string, error) {
	return r.runGit([]string{"diff", "--no-color", "HEAD", "--stat"}, true, "git diff --stat")
}

// AddFiles stages the listed paths wholesale.
func (r *Repo) AddFiles(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	_, err := r.runGit(args, false, "git add")
	return err
}

// ApplyPatch applies unified-diff text to the index only. A structural
// rejection surfaces as *ApplyRejectedError.
func (r *Repo) ApplyPatch(patchText string) error {
	if strings.TrimSpace(patchText) == "" {
		return nil
	}
	cmd := exec.Command("git", "-C", r.root, "apply", "--cached")
	cmd.Stdin = strings.NewReader(patchText)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ApplyRejectedError{Stderr: stderr.String()}
		}
		return fmt.Errorf("git apply --cached: %w", err)
	}
	return nil
}

// ResetIndex unstages everything, leaving the worktree untouched.
func (r *Repo) ResetIndex() error {
	_, err := r.runGit([]string{"reset", "HEAD"}, true, "git reset")
	return err
}

// Commit creates a commit from the current index.
func (r *Repo) Commit(message string, sign bool) error {
	args := []string{"commit", "-m", message}
	if sign {
		args = append(args, "-S")
	}
	_, err := r.runGit(args, false, "git commit")
	return err
}

// RecentSubjects returns the subject lines of the last n commits, newest
// first. A repository without commits yields an empty slice.
func (r *Repo) RecentSubjects(n int) ([]string, error) {
	out, err := r.runGit([]string{"log", fmt.Sprintf("-%d", n), "--pretty=format:%s"}, false, "git log")
	if err != nil {
		if strings.Contains(err.Error(), "does not have any commits") ||
			strings.Contains(err.Error(), "unknown revision") {
			return nil, nil
		}
		return nil, err
	}
	return splitSubjects(out), nil
}

func splitSubjects(out string) []string {
	var subjects []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			subjects = append(subjects, line)
		}
	}
	return subjects
}

// HeadHash resolves HEAD to a full hash via go-git.
func (r *Repo) HeadHash() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return "", fmt.Errorf("repository has no commits yet")
		}
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}
