// Package patch resolves hunk selectors against a baseline snapshot and
// reassembles minimal valid patches for index-only application.
package patch

import (
	"fmt"
	"strings"

	"github.com/vowstar/llm-git/internal/diff"
)

// UnresolvedSelectorError reports a selector that matched no hunk in the
// baseline diff for its path. The group referencing it must not be staged
// partially; the caller decides whether to fall back to whole-file staging.
type UnresolvedSelectorError struct {
	Path     string
	Selector Selector
	Hint     string
}

func (e *UnresolvedSelectorError) Error() string {
	msg := fmt.Sprintf("no hunk in %s matches selector %s", e.Path, e.Selector)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// Resolve maps selectors to the hunks they identify, in baseline order,
// each hunk at most once. Selectors are resolved independently; the first
// one that matches nothing fails the whole resolution.
func Resolve(fd *diff.FileDiff, sels []Selector) ([]*diff.Hunk, error) {
	if fd.IsBinary {
		return nil, fmt.Errorf("binary file %s: hunk selection is not supported, stage the whole file", fd.Path)
	}
	matched := make([]bool, len(fd.Hunks))
	for _, sel := range sels {
		switch sel.Kind {
		case SelectAll:
			for i := range matched {
				matched[i] = true
			}
		case SelectHeader:
			if !matchHeader(fd, sel, matched) {
				return nil, &UnresolvedSelectorError{Path: fd.Path, Selector: sel}
			}
		case SelectLines:
			if !matchLines(fd, sel, matched) {
				return nil, &UnresolvedSelectorError{
					Path:     fd.Path,
					Selector: sel,
					Hint:     nearestHunkHint(fd, sel.Start, sel.End),
				}
			}
		case SelectSearch:
			// A pattern shaped like a hunk header is matched positionally.
			if strings.HasPrefix(strings.TrimSpace(sel.Pattern), "@@") {
				if !matchHeader(fd, Selector{Kind: SelectHeader, Header: sel.Pattern}, matched) {
					return nil, &UnresolvedSelectorError{Path: fd.Path, Selector: sel}
				}
				continue
			}
			if !matchSearch(fd, sel, matched) {
				return nil, &UnresolvedSelectorError{Path: fd.Path, Selector: sel}
			}
		default:
			return nil, &UnresolvedSelectorError{Path: fd.Path, Selector: sel}
		}
	}
	var hunks []*diff.Hunk
	for i, h := range fd.Hunks {
		if matched[i] {
			hunks = append(hunks, h)
		}
	}
	if len(hunks) == 0 {
		return nil, &UnresolvedSelectorError{Path: fd.Path, Selector: Selector{Kind: SelectAll}, Hint: "file diff has no hunks"}
	}
	return hunks, nil
}

func matchHeader(fd *diff.FileDiff, sel Selector, matched []bool) bool {
	oldStart, oldLines, newStart, newLines, ok := diff.ParseHunkHeader(sel.Header)
	if !ok {
		return false
	}
	found := false
	for i, h := range fd.Hunks {
		if h.SameRange(oldStart, oldLines, newStart, newLines) {
			matched[i] = true
			found = true
		}
	}
	return found
}

func matchLines(fd *diff.FileDiff, sel Selector, matched []bool) bool {
	found := false
	for i, h := range fd.Hunks {
		if sel.End < h.OldStart || sel.Start > h.OldEnd() {
			continue
		}
		matched[i] = true
		found = true
	}
	return found
}

func matchSearch(fd *diff.FileDiff, sel Selector, matched []bool) bool {
	found := false
	for i, h := range fd.Hunks {
		for _, line := range h.Lines {
			if strings.Contains(line, sel.Pattern) {
				matched[i] = true
				found = true
				break
			}
		}
	}
	return found
}

// nearestHunkHint suggests the closest hunk when a line range resolves to
// nothing, which usually means the range pointed at context lines.
func nearestHunkHint(fd *diff.FileDiff, start, end int) string {
	const maxDistance = 20
	best := -1
	bestDist := maxDistance
	for i, h := range fd.Hunks {
		var dist int
		switch {
		case end < h.OldStart:
			dist = h.OldStart - end
		case start > h.OldEnd():
			dist = start - h.OldEnd()
		default:
			continue
		}
		if dist > 0 && dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	h := fd.Hunks[best]
	return fmt.Sprintf("nearest hunk: lines %d-%d", h.OldStart, h.OldEnd())
}

// Assemble emits a syntactically valid single-file patch: the captured file
// header block followed by the selected hunks verbatim, in baseline order,
// with no renumbering. Each hunk carries its own absolute line numbers from
// the baseline, so non-overlapping subsets of the same file stay applicable
// as long as the baseline is never re-diffed mid-run.
func Assemble(fd *diff.FileDiff, hunks []*diff.Hunk) (string, error) {
	if fd.IsBinary {
		return "", fmt.Errorf("binary file %s: cannot assemble a partial patch", fd.Path)
	}
	if len(hunks) == 0 {
		return "", fmt.Errorf("no hunks selected for %s", fd.Path)
	}
	position := make(map[*diff.Hunk]int, len(fd.Hunks))
	for i, h := range fd.Hunks {
		position[h] = i
	}
	last := -1
	var b strings.Builder
	b.WriteString(fd.Header)
	for _, h := range hunks {
		pos, ok := position[h]
		if !ok {
			return "", fmt.Errorf("hunk %s does not belong to %s", h.Header, fd.Path)
		}
		if pos <= last {
			return "", fmt.Errorf("hunks for %s must be selected in baseline order", fd.Path)
		}
		last = pos
		b.WriteString(h.Text())
	}
	return b.String(), nil
}
