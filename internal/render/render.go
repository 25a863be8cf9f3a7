// Package render prints proposed commit groups and their diffs to a
// terminal, with syntax highlighting when the output supports it.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/vowstar/llm-git/internal/compose"
	"github.com/vowstar/llm-git/internal/diff"
	"github.com/vowstar/llm-git/internal/patch"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiCyan   = "\x1b[36m"
	ansiYellow = "\x1b[33m"
)

type Renderer struct {
	out       io.Writer
	color     bool
	style     *chroma.Style
	formatter chroma.Formatter
}

func New(out io.Writer, color bool) *Renderer {
	style := styles.Get("github")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	return &Renderer{out: out, color: color, style: style, formatter: formatter}
}

// GroupPreview prints every proposed group in application order: the
// commit metadata, then the hunks the group would stage.
func (r *Renderer) GroupPreview(snap *diff.Snapshot, groups []compose.ChangeGroup, order []int) error {
	for n, idx := range order {
		g := groups[idx]
		header := fmt.Sprintf("Commit %d/%d: %s", n+1, len(order), g.Type)
		if g.Scope != "" {
			header = fmt.Sprintf("Commit %d/%d: %s(%s)", n+1, len(order), g.Type, g.Scope)
		}
		r.printf("%s%s%s\n", ansiBold, header, ansiReset)
		if g.Rationale != "" {
			r.printf("  %s\n", g.Rationale)
		}
		if len(g.Dependencies) > 0 {
			r.printf("  %sdepends on groups %v%s\n", ansiYellow, g.Dependencies, ansiReset)
		}
		for _, ch := range g.Changes {
			if err := r.printChange(snap, ch); err != nil {
				return err
			}
		}
		fmt.Fprintln(r.out)
	}
	return nil
}

func (r *Renderer) printChange(snap *diff.Snapshot, ch compose.FileChange) error {
	fd, ok := snap.File(ch.Path)
	if !ok {
		r.printf("  %s%s: not in baseline diff%s\n", ansiRed, ch.Path, ansiReset)
		return nil
	}
	if patch.IsWholeFile(ch.Hunks) {
		r.printf("  %s (whole file, +%d -%d)\n", ch.Path, fd.Additions, fd.Deletions)
		if fd.IsBinary {
			r.printf("    %sbinary file%s\n", ansiYellow, ansiReset)
			return nil
		}
		return r.printHunks(ch.Path, fd.Hunks)
	}
	if fd.IsBinary {
		r.printf("  %s%s: binary file cannot be split%s\n", ansiRed, ch.Path, ansiReset)
		return nil
	}
	hunks, err := patch.Resolve(fd, ch.Hunks)
	if err != nil {
		r.printf("  %s%s: %v%s\n", ansiRed, ch.Path, err, ansiReset)
		return nil
	}
	r.printf("  %s (%d of %d hunks)\n", ch.Path, len(hunks), len(fd.Hunks))
	return r.printHunks(ch.Path, hunks)
}

func (r *Renderer) printHunks(path string, hunks []*diff.Hunk) error {
	lexer := lexerForPath(path)
	for _, h := range hunks {
		r.printf("    %s%s%s\n", ansiCyan, h.Header, ansiReset)
		for _, line := range h.Lines {
			if err := r.printDiffLine(lexer, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) printDiffLine(lexer chroma.Lexer, line string) error {
	if line == "" {
		fmt.Fprintln(r.out)
		return nil
	}
	marker := line[0]
	code := line[1:]
	if !r.color {
		_, err := fmt.Fprintf(r.out, "    %s\n", line)
		return err
	}
	switch marker {
	case '+':
		r.printf("    %s+%s%s\n", ansiGreen, code, ansiReset)
	case '-':
		r.printf("    %s-%s%s\n", ansiRed, code, ansiReset)
	default:
		fmt.Fprintf(r.out, "    %c", marker)
		if err := r.highlightCode(lexer, code); err != nil {
			return err
		}
		fmt.Fprintln(r.out)
	}
	return nil
}

func (r *Renderer) highlightCode(lexer chroma.Lexer, code string) error {
	if code == "" || lexer == nil {
		_, err := io.WriteString(r.out, code)
		return err
	}
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		_, werr := io.WriteString(r.out, code)
		return werr
	}
	return r.formatter.Format(r.out, r.style, iterator)
}

// printf blanks ANSI escape arguments when color is disabled. Escape
// codes are always passed as arguments, never in the format string.
func (r *Renderer) printf(format string, args ...any) {
	if !r.color {
		for i, a := range args {
			if s, ok := a.(string); ok && strings.HasPrefix(s, "\x1b[") {
				args[i] = ""
			}
		}
	}
	fmt.Fprintf(r.out, format, args...)
}

func lexerForPath(path string) chroma.Lexer {
	if path == "" {
		return nil
	}
	lexer := lexers.Match(path)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}
