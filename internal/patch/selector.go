package patch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SelectorKind discriminates the ways a classifier can reference hunks.
type SelectorKind int

const (
	// SelectAll stages the entire file diff.
	SelectAll SelectorKind = iota
	// SelectHeader references a hunk by its "@@" header; only the four
	// range numbers are compared.
	SelectHeader
	// SelectLines references hunks overlapping a 1-indexed, inclusive
	// range of original-file lines.
	SelectLines
	// SelectSearch references hunks containing a substring in any
	// content line.
	SelectSearch
)

// Selector identifies one or more hunks of a file diff. Selectors come from
// an external classifier and are untrusted: they may reference hunks that do
// not exist in the baseline.
type Selector struct {
	Kind    SelectorKind
	Header  string
	Start   int
	End     int
	Pattern string
}

// All returns the whole-file sentinel selector.
func All() Selector {
	return Selector{Kind: SelectAll}
}

// IsWholeFile reports whether sels is exactly the whole-file sentinel.
func IsWholeFile(sels []Selector) bool {
	return len(sels) == 1 && sels[0].Kind == SelectAll
}

func (s Selector) String() string {
	switch s.Kind {
	case SelectAll:
		return "all"
	case SelectHeader:
		return s.Header
	case SelectLines:
		return fmt.Sprintf("lines %d-%d", s.Start, s.End)
	case SelectSearch:
		if len(s.Pattern) > 20 {
			return fmt.Sprintf("search %q...", s.Pattern[:20])
		}
		return fmt.Sprintf("search %q", s.Pattern)
	}
	return "invalid"
}

type linesSelectorJSON struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// UnmarshalJSON accepts the classifier's wire forms: the string "ALL", a
// {start, end} object, a hunk header string, or any other string as a
// search pattern.
func (s *Selector) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		switch {
		case str == "ALL":
			*s = Selector{Kind: SelectAll}
		case strings.HasPrefix(strings.TrimSpace(str), "@@"):
			*s = Selector{Kind: SelectHeader, Header: str}
		default:
			*s = Selector{Kind: SelectSearch, Pattern: str}
		}
		return nil
	}
	var lines linesSelectorJSON
	if err := json.Unmarshal(data, &lines); err == nil {
		if lines.Start == 0 && lines.End == 0 {
			return fmt.Errorf("invalid hunk selector: %s", data)
		}
		*s = Selector{Kind: SelectLines, Start: lines.Start, End: lines.End}
		return nil
	}
	return fmt.Errorf("invalid hunk selector: %s", data)
}

func (s Selector) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SelectAll:
		return json.Marshal("ALL")
	case SelectHeader:
		return json.Marshal(s.Header)
	case SelectLines:
		return json.Marshal(linesSelectorJSON{Start: s.Start, End: s.End})
	case SelectSearch:
		return json.Marshal(s.Pattern)
	}
	return nil, fmt.Errorf("invalid hunk selector kind %d", s.Kind)
}
