// Package compose splits one large changeset into several atomic commits.
//
// The engine consumes a group list produced by an external classifier,
// orders it by declared dependencies, and stages each group against the
// baseline snapshot captured before any staging occurred.
package compose

import "github.com/vowstar/llm-git/internal/patch"

// FileChange is one file's contribution to a group: a path plus hunk
// selectors, or the whole-file sentinel. Selector accuracy is untrusted.
type FileChange struct {
	Path  string           `json:"path"`
	Hunks []patch.Selector `json:"hunks"`
}

// ChangeGroup is one proposed commit. Type, Scope and Rationale are opaque
// to the engine: they are carried through to the commit creator unread.
// Dependencies are indices of other groups in the same batch.
type ChangeGroup struct {
	Changes      []FileChange `json:"changes"`
	Type         string       `json:"type"`
	Scope        string       `json:"scope,omitempty"`
	Rationale    string       `json:"rationale"`
	Dependencies []int        `json:"dependencies"`
}

// Paths returns the file paths touched by the group, in declaration order.
func (g *ChangeGroup) Paths() []string {
	paths := make([]string, 0, len(g.Changes))
	for _, c := range g.Changes {
		paths = append(paths, c.Path)
	}
	return paths
}

// GroupResult is the outcome of staging and committing one group.
type GroupResult struct {
	GroupIndex int
	CommitHash string
	Err        error
}
