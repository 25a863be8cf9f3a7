// Package diff parses git unified diffs into an addressable file/hunk model.
//
// A parsed Snapshot is immutable: compose staging resolves every later hunk
// reference against the snapshot captured at the start of a run, because
// re-diffing after a group is committed shifts line numbers.
package diff

import (
	"fmt"
	"strings"
)

// Hunk is one contiguous change block of a unified diff. Identity for
// matching purposes is the four range numbers, not the raw header text:
// the context after the second "@@" may differ between renderings.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Header   string   // the raw "@@ ... @@" line
	Lines    []string // content lines, verbatim
}

// OldEnd returns the last line of the original file covered by the hunk.
// Pure insertions (old count 0) cover only their anchor line.
func (h *Hunk) OldEnd() int {
	if h.OldLines == 0 {
		return h.OldStart
	}
	return h.OldStart + h.OldLines - 1
}

// SameRange reports whether the hunk occupies the given old/new ranges.
func (h *Hunk) SameRange(oldStart, oldLines, newStart, newLines int) bool {
	return h.OldStart == oldStart && h.OldLines == oldLines &&
		h.NewStart == newStart && h.NewLines == newLines
}

// Text returns the hunk header followed by its content lines, newline
// terminated, exactly as it appeared in the baseline diff.
func (h *Hunk) Text() string {
	var b strings.Builder
	b.Grow(len(h.Header) + 1 + len(h.Lines)*32)
	b.WriteString(h.Header)
	b.WriteByte('\n')
	for _, line := range h.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// FileDiff is the parsed diff of a single file. It is owned by the Snapshot
// that produced it and never mutated afterwards.
type FileDiff struct {
	Path      string // post-image path, prefix stripped
	OldPath   string // pre-image path; differs from Path on renames
	IsNew     bool
	IsDeleted bool
	IsBinary  bool
	IsRename  bool
	Header    string // raw header block from "diff --git" up to the first hunk
	Hunks     []*Hunk
	Additions int
	Deletions int
}

// Text reassembles the complete file diff from the captured header and hunks.
func (f *FileDiff) Text() string {
	var b strings.Builder
	b.WriteString(f.Header)
	for _, h := range f.Hunks {
		b.WriteString(h.Text())
	}
	return b.String()
}

// Snapshot is the full diff captured once at the start of a compose run.
type Snapshot struct {
	Files []*FileDiff
	Raw   string

	byPath map[string]*FileDiff
}

// File returns the diff for path, if the snapshot contains one.
func (s *Snapshot) File(path string) (*FileDiff, bool) {
	fd, ok := s.byPath[path]
	return fd, ok
}

// Paths returns the post-image paths in diff order.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for _, fd := range s.Files {
		paths = append(paths, fd.Path)
	}
	return paths
}

// MalformedDiffError reports diff text that could not be parsed structurally.
// It is a recoverable parse error, surfaced with the offending line.
type MalformedDiffError struct {
	Line   string
	Reason string
}

func (e *MalformedDiffError) Error() string {
	return fmt.Sprintf("malformed diff: %s: %q", e.Reason, e.Line)
}

// Parse splits raw unified-diff text into per-file diffs. Binary file
// sections are captured with IsBinary set and no hunks. An unparseable hunk
// header, or hunk content outside any file section, fails with
// *MalformedDiffError.
func Parse(text string) (*Snapshot, error) {
	snap := &Snapshot{Raw: text, byPath: make(map[string]*FileDiff)}
	if strings.TrimSpace(text) == "" {
		return snap, nil
	}

	var (
		file     *FileDiff
		hunk     *Hunk
		inHeader bool
		header   strings.Builder
	)
	flushHunk := func() {
		if file != nil && hunk != nil {
			file.Hunks = append(file.Hunks, hunk)
		}
		hunk = nil
	}
	flushFile := func() {
		flushHunk()
		if file != nil {
			file.Header = header.String()
			snap.Files = append(snap.Files, file)
			snap.byPath[file.Path] = file
		}
		file = nil
		header.Reset()
	}

	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			flushFile()
			oldPath, newPath, ok := parseDiffGitLine(line)
			if !ok {
				return nil, &MalformedDiffError{Line: line, Reason: "unparseable file header"}
			}
			file = &FileDiff{Path: newPath, OldPath: oldPath}
			inHeader = true
			header.WriteString(line)
			header.WriteByte('\n')
			continue
		}
		if file == nil {
			if strings.HasPrefix(line, "@@") {
				return nil, &MalformedDiffError{Line: line, Reason: "hunk outside file section"}
			}
			// Leading prose (e.g. a commit header) before the first file
			// section is ignored.
			continue
		}
		if strings.HasPrefix(line, "@@") {
			oldStart, oldLines, newStart, newLines, ok := ParseHunkHeader(line)
			if !ok {
				return nil, &MalformedDiffError{Line: line, Reason: "unparseable hunk header"}
			}
			inHeader = false
			flushHunk()
			hunk = &Hunk{
				OldStart: oldStart,
				OldLines: oldLines,
				NewStart: newStart,
				NewLines: newLines,
				Header:   line,
			}
			continue
		}
		if inHeader {
			header.WriteString(line)
			header.WriteByte('\n')
			switch {
			case strings.HasPrefix(line, "new file mode"):
				file.IsNew = true
			case strings.HasPrefix(line, "deleted file mode"):
				file.IsDeleted = true
			case strings.HasPrefix(line, "rename from "):
				file.IsRename = true
				file.OldPath = strings.TrimPrefix(line, "rename from ")
			case strings.HasPrefix(line, "rename to "):
				file.IsRename = true
				file.Path = strings.TrimPrefix(line, "rename to ")
				snapFixupRenamePath(file)
			case strings.HasPrefix(line, "Binary files ") || line == "GIT binary patch":
				file.IsBinary = true
			case strings.HasPrefix(line, "--- "):
				if p, ok := headerPath(line[4:]); ok {
					file.OldPath = p
				} else {
					file.IsNew = true
				}
			case strings.HasPrefix(line, "+++ "):
				if p, ok := headerPath(line[4:]); ok {
					file.Path = p
				} else {
					file.IsDeleted = true
				}
			}
			continue
		}
		if hunk == nil {
			return nil, &MalformedDiffError{Line: line, Reason: "content outside hunk"}
		}
		hunk.Lines = append(hunk.Lines, line)
		switch {
		case strings.HasPrefix(line, "+"):
			file.Additions++
		case strings.HasPrefix(line, "-"):
			file.Deletions++
		}
	}
	flushFile()
	return snap, nil
}

func snapFixupRenamePath(file *FileDiff) {
	// "rename to" paths carry no a/ b/ prefix; nothing to strip, but guard
	// against diffs produced with --src-prefix/--dst-prefix anyway.
	file.Path = strings.TrimPrefix(strings.TrimPrefix(file.Path, "b/"), "a/")
}

// ParseHunkHeader extracts the four range numbers from an "@@" line.
// Omitted counts imply 1, per the unified diff format.
func ParseHunkHeader(line string) (oldStart, oldLines, newStart, newLines int, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "@@") {
		return 0, 0, 0, 0, false
	}
	rest := trimmed[2:]
	end := strings.Index(rest, "@@")
	if end < 0 {
		return 0, 0, 0, 0, false
	}
	fields := strings.Fields(rest[:end])
	if len(fields) < 2 {
		return 0, 0, 0, 0, false
	}
	oldPart, okOld := strings.CutPrefix(fields[0], "-")
	newPart, okNew := strings.CutPrefix(fields[1], "+")
	if !okOld || !okNew {
		return 0, 0, 0, 0, false
	}
	oldStart, oldLines, ok = parseRange(oldPart)
	if !ok {
		return 0, 0, 0, 0, false
	}
	newStart, newLines, ok = parseRange(newPart)
	if !ok {
		return 0, 0, 0, 0, false
	}
	return oldStart, oldLines, newStart, newLines, true
}

func parseRange(s string) (start, count int, ok bool) {
	count = 1
	if startStr, countStr, found := strings.Cut(s, ","); found {
		if count, ok = atoi(countStr); !ok {
			return 0, 0, false
		}
		s = startStr
	}
	if start, ok = atoi(s); !ok {
		return 0, 0, false
	}
	return start, count, true
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// parseDiffGitLine extracts both paths from a "diff --git a/x b/x" line,
// handling quoted paths with escapes.
func parseDiffGitLine(line string) (oldPath, newPath string, ok bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "diff --git "))
	tokens := diffLineTokens(rest)
	if len(tokens) < 2 {
		return "", "", false
	}
	return stripPathPrefix(tokens[0]), stripPathPrefix(tokens[len(tokens)-1]), true
}

// headerPath normalizes a "---"/"+++" path token. The second return is false
// for /dev/null (new or deleted files).
func headerPath(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if i := strings.IndexByte(token, '\t'); i >= 0 {
		token = token[:i] // git appends a timestamp after a tab in some modes
	}
	if token == "/dev/null" {
		return "", false
	}
	if token != "" && token[0] == '"' {
		if tokens := diffLineTokens(token); len(tokens) > 0 {
			token = tokens[0]
		}
	}
	return stripPathPrefix(token), true
}

func stripPathPrefix(token string) string {
	token = strings.TrimPrefix(token, "a/")
	token = strings.TrimPrefix(token, "b/")
	return token
}

func diffLineTokens(s string) []string {
	var tokens []string
	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			break
		}
		if s[0] == '"' {
			var buf strings.Builder
			escaped := false
			i := 1
			for i < len(s) {
				ch := s[i]
				if escaped {
					buf.WriteByte(ch)
					escaped = false
					i++
					continue
				}
				if ch == '\\' {
					escaped = true
					i++
					continue
				}
				if ch == '"' {
					i++
					break
				}
				buf.WriteByte(ch)
				i++
			}
			tokens = append(tokens, buf.String())
			s = s[i:]
			continue
		}
		j := 0
		for j < len(s) && s[j] != ' ' && s[j] != '\t' {
			j++
		}
		tokens = append(tokens, s[:j])
		s = s[j:]
	}
	return tokens
}
