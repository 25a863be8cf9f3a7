package diff

import (
	"fmt"
	"sort"
	"strings"
)

// TruncateOptions bounds how much diff text is handed to the analysis model.
type TruncateOptions struct {
	MaxBytes              int
	ExcludedFiles         []string // suffix match; dropped from the output entirely
	LowPriorityExtensions []string
}

type truncFile struct {
	path     string
	header   string
	content  string
	isBinary bool
	priority int
}

func (t *truncFile) size() int {
	return len(t.header) + len(t.content)
}

// Truncate renders the snapshot within opts.MaxBytes, preferring to keep
// every file header visible and shrinking content per file, so the model
// still sees the full scope of the change set.
func Truncate(snap *Snapshot, opts TruncateOptions) string {
	files := make([]*truncFile, 0, len(snap.Files))
	for _, fd := range snap.Files {
		if excludedFile(fd.Path, opts.ExcludedFiles) {
			continue
		}
		var content strings.Builder
		for _, h := range fd.Hunks {
			content.WriteString(h.Text())
		}
		files = append(files, &truncFile{
			path:     fd.Path,
			header:   fd.Header,
			content:  content.String(),
			isBinary: fd.IsBinary,
			priority: filePriority(fd, opts.LowPriorityExtensions),
		})
	}
	if len(files) == 0 {
		return "No relevant files to analyze (only lock files or excluded files were changed)"
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].priority > files[j].priority })

	total := 0
	for _, f := range files {
		total += f.size()
	}
	if opts.MaxBytes <= 0 || total <= opts.MaxBytes {
		return renderTruncFiles(files)
	}

	headerOnly := 0
	for _, f := range files {
		headerOnly += len(f.header) + 20
	}
	totalFiles := len(files)
	var included []*truncFile
	if headerOnly <= opts.MaxBytes {
		// All headers fit: split the remaining budget evenly across files.
		perFile := (opts.MaxBytes - headerOnly) / len(files)
		for _, f := range files {
			if f.isBinary {
				f.content = ""
				included = append(included, f)
				continue
			}
			truncateContent(f, len(f.header)+perFile)
			included = append(included, f)
		}
	} else {
		used := 0
		for _, f := range files {
			if f.isBinary {
				continue
			}
			if used+f.size() <= opts.MaxBytes {
				used += f.size()
				included = append(included, f)
				continue
			}
			if used < opts.MaxBytes/2 && f.priority >= 50 {
				truncateContent(f, opts.MaxBytes-used-100)
				included = append(included, f)
				break
			}
		}
	}
	if len(included) == 0 {
		return "Error: could not include any files in the diff"
	}
	out := renderTruncFiles(included)
	if omitted := totalFiles - len(included); omitted > 0 {
		out += fmt.Sprintf("\n\n... (%d files omitted) ...", omitted)
	}
	return out
}

func renderTruncFiles(files []*truncFile) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(f.header)
		if f.content != "" {
			b.WriteString(f.content)
			if !strings.HasSuffix(f.content, "\n") {
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

func truncateContent(f *truncFile, maxSize int) {
	if f.size() <= maxSize {
		return
	}
	available := maxSize - len(f.header) - 50
	if available < 50 {
		f.content = "... (truncated)\n"
		return
	}
	lines := strings.Split(strings.TrimSuffix(f.content, "\n"), "\n")
	if len(lines) > 30 {
		const keepStart, keepEnd = 15, 10
		omitted := len(lines) - keepStart - keepEnd
		var b strings.Builder
		for _, line := range lines[:keepStart] {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "... (truncated %d lines) ...\n", omitted)
		for _, line := range lines[len(lines)-keepEnd:] {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		f.content = b.String()
		return
	}
	f.content = f.content[:available] + "\n... (truncated)\n"
}

func excludedFile(path string, excluded []string) bool {
	for _, suffix := range excluded {
		if suffix != "" && strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// filePriority ranks files for truncation: source code first, dependency
// manifests next, docs and tests late, binary last.
func filePriority(fd *FileDiff, lowPriorityExts []string) int {
	if fd.IsBinary {
		return -100
	}
	lower := strings.ToLower(fd.Path)
	for _, manifest := range []string{
		"cargo.toml", "package.json", "go.mod", "requirements.txt", "pyproject.toml",
	} {
		if strings.HasSuffix(lower, manifest) {
			return 70
		}
	}
	if strings.Contains(fd.Path, "/test") || strings.Contains(fd.Path, "test_") ||
		strings.Contains(fd.Path, "_test.") || strings.Contains(fd.Path, ".test.") {
		return 10
	}
	ext := ""
	if i := strings.LastIndexByte(fd.Path, '.'); i >= 0 {
		ext = fd.Path[i+1:]
	}
	for _, low := range lowPriorityExts {
		if strings.TrimPrefix(low, ".") == ext {
			return 20
		}
	}
	switch ext {
	case "rs", "go", "py", "js", "ts", "java", "c", "cpp", "h", "hpp":
		return 100
	case "sql", "sh", "bash":
		return 80
	}
	return 50
}
