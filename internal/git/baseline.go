package git

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/pmezard/go-difflib/difflib"
)

// BaselineDiff captures the full diff of worktree and index against HEAD,
// including synthesized sections for untracked files. Compose callers take
// this exactly once per run, before any staging.
func (r *Repo) BaselineDiff() (string, error) {
	tracked, err := r.runGit([]string{"diff", "--no-color", "HEAD"}, true, "git diff HEAD")
	if err != nil {
		return "", err
	}
	untracked, err := r.untrackedPaths()
	if err != nil {
		return "", err
	}
	if len(untracked) == 0 {
		return tracked, nil
	}
	var b strings.Builder
	b.WriteString(tracked)
	if tracked != "" && !strings.HasSuffix(tracked, "\n") {
		b.WriteByte('\n')
	}
	for _, path := range untracked {
		section, err := r.untrackedFileDiff(path)
		if err != nil {
			return "", fmt.Errorf("diff untracked file %s: %w", path, err)
		}
		b.WriteString(section)
	}
	return b.String(), nil
}

func (r *Repo) untrackedPaths() ([]string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}
	var paths []string
	for path, st := range status {
		if st.Worktree == gitlib.Untracked {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// untrackedFileDiff renders a new-file diff section in standard git format,
// so untracked files parse and stage like any other baseline entry. The
// emitted lines must reproduce the file byte for byte when applied: no
// phantom trailing line, and a no-newline marker when the file lacks one.
func (r *Repo) untrackedFileDiff(path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.root, path))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)
	b.WriteString("new file mode 100644\n")
	b.WriteString("index 0000000..0000000\n")
	if isBinaryData(data) {
		fmt.Fprintf(&b, "Binary files /dev/null and b/%s differ\n", path)
		return b.String(), nil
	}
	if len(data) == 0 {
		// git emits no hunk for an empty new file.
		return b.String(), nil
	}
	b.WriteString("--- /dev/null\n")
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	content := string(data)
	ud := difflib.UnifiedDiff{
		A:       []string{},
		B:       splitLinesKeepEnds(content),
		Context: 3,
	}
	diffText, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", err
	}
	b.WriteString(diffText)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n\\ No newline at end of file\n")
	}
	return b.String(), nil
}

// splitLinesKeepEnds splits s into lines that keep their newline, except
// the last one when s does not end with a newline. Unlike
// difflib.SplitLines it never invents a trailing line.
func splitLinesKeepEnds(s string) []string {
	var lines []string
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

func isBinaryData(data []byte) bool {
	const sniffLen = 8000
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}
