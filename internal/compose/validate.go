package compose

import (
	"fmt"

	"github.com/vowstar/llm-git/internal/diff"
	"github.com/vowstar/llm-git/internal/patch"
)

// Validate checks a group list against the baseline before any staging
// begins. Structural problems (empty groups, self-dependencies, files not
// covered by any group) are errors; suspicious but stageable input (odd
// line ranges, files claimed by several groups) comes back as warnings.
func Validate(groups []ChangeGroup, snap *diff.Snapshot) (warnings []string, err error) {
	covered := make(map[string]int)
	for idx, group := range groups {
		if len(group.Changes) == 0 {
			return warnings, fmt.Errorf("group %d has no changes", idx)
		}
		for _, dep := range group.Dependencies {
			if dep == idx {
				return warnings, fmt.Errorf("group %d depends on itself", idx)
			}
			if dep < 0 || dep >= len(groups) {
				return warnings, fmt.Errorf("group %d: invalid dependency index %d (have %d groups)", idx, dep, len(groups))
			}
		}
		for _, change := range group.Changes {
			covered[change.Path]++
			for _, sel := range change.Hunks {
				switch sel.Kind {
				case patch.SelectLines:
					if sel.Start > sel.End {
						warnings = append(warnings, fmt.Sprintf("group %d: invalid line range %d-%d in %s", idx, sel.Start, sel.End, change.Path))
					}
					if sel.Start == 0 {
						warnings = append(warnings, fmt.Sprintf("group %d: line range starts at 0 (ranges are 1-indexed) in %s", idx, change.Path))
					}
				case patch.SelectSearch:
					if sel.Pattern == "" {
						warnings = append(warnings, fmt.Sprintf("group %d: empty search pattern in %s", idx, change.Path))
					}
				}
			}
		}
	}

	var missing []string
	for _, fd := range snap.Files {
		if covered[fd.Path] == 0 {
			missing = append(missing, fd.Path)
		}
	}
	if len(missing) > 0 {
		return warnings, fmt.Errorf("non-exhaustive groups: %d file(s) not covered: %v", len(missing), missing)
	}
	reported := make(map[string]bool)
	for _, group := range groups {
		for _, change := range group.Changes {
			if covered[change.Path] > 1 && !reported[change.Path] {
				reported[change.Path] = true
				warnings = append(warnings, fmt.Sprintf("%s appears in %d groups", change.Path, covered[change.Path]))
			}
		}
	}
	return warnings, nil
}
