// Package commitmsg models conventional commit messages: formatting,
// normalization and validation of model-generated prose.
package commitmsg

import (
	"fmt"
	"sort"
	"strings"
)

// Known conventional commit types, in display order.
var KnownTypes = []string{
	"feat", "fix", "refactor", "docs", "test", "chore",
	"style", "perf", "build", "ci", "revert",
}

// Limits bound the summary line. The guideline is what prompts ask for,
// the soft limit trips a warning, the hard limit fails validation.
type Limits struct {
	SummarySoft int
	SummaryHard int
}

// DefaultLimits matches the common 50/72 convention with headroom.
var DefaultLimits = Limits{SummarySoft: 72, SummaryHard: 100}

// Message is a structured conventional commit.
type Message struct {
	Type    string   `json:"type"`
	Scope   string   `json:"scope,omitempty"`
	Summary string   `json:"summary"`
	Body    string   `json:"body,omitempty"`
	Footers []string `json:"footers,omitempty"`
}

// Format renders the message in conventional commit form.
func (m *Message) Format() string {
	var b strings.Builder
	b.WriteString(m.Type)
	if m.Scope != "" {
		b.WriteString("(" + m.Scope + ")")
	}
	b.WriteString(": ")
	b.WriteString(m.Summary)
	if m.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(strings.TrimRight(m.Body, "\n"))
	}
	if len(m.Footers) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(m.Footers, "\n"))
	}
	return b.String()
}

// Normalize fixes the mechanical slips models make: case, trailing
// punctuation, summaries that repeat the type prefix.
func (m *Message) Normalize() {
	m.Type = strings.ToLower(strings.TrimSpace(m.Type))
	m.Scope = strings.ToLower(strings.TrimSpace(m.Scope))
	m.Summary = strings.TrimSpace(m.Summary)
	// Strip a duplicated "type:" or "type(scope):" prefix from the summary.
	lower := strings.ToLower(m.Summary)
	for _, t := range KnownTypes {
		for _, prefix := range []string{t + ":", t + "("} {
			if strings.HasPrefix(lower, prefix) {
				if i := strings.Index(m.Summary, ":"); i >= 0 && i < len(m.Summary)-1 {
					m.Summary = strings.TrimSpace(m.Summary[i+1:])
					lower = strings.ToLower(m.Summary)
				}
			}
		}
	}
	m.Summary = strings.TrimRight(m.Summary, ".")
	if m.Summary != "" {
		// Conventional summaries start lowercase, but leave the first word
		// alone when it looks like an identifier (ALLCAPS, CamelCase).
		first, _, _ := strings.Cut(m.Summary, " ")
		if first[0] >= 'A' && first[0] <= 'Z' && first[1:] == strings.ToLower(first[1:]) {
			m.Summary = string(first[0]+'a'-'A') + m.Summary[1:]
		}
	}
	m.Body = strings.TrimSpace(m.Body)
}

// Validate checks the message against the conventional commit shape.
func (m *Message) Validate(limits Limits) error {
	if !validType(m.Type) {
		return fmt.Errorf("invalid commit type %q", m.Type)
	}
	if m.Scope != "" && !validScope(m.Scope) {
		return fmt.Errorf("invalid scope format %q", m.Scope)
	}
	if m.Summary == "" {
		return fmt.Errorf("empty summary")
	}
	if n := len(m.Type) + len(m.Summary) + 2; limits.SummaryHard > 0 && n > limits.SummaryHard {
		return fmt.Errorf("summary too long: %d chars (max %d)", n, limits.SummaryHard)
	}
	return nil
}

func validType(t string) bool {
	for _, known := range KnownTypes {
		if t == known {
			return true
		}
	}
	return false
}

func validScope(scope string) bool {
	for _, r := range scope {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '/' || r == '.':
		default:
			return false
		}
	}
	return true
}

// ExtractScopes collects the scopes used by conventional commit subjects,
// most frequent first (ties alphabetical). Subjects without a recognized
// "type(scope):" prefix are ignored.
func ExtractScopes(subjects []string, max int) []string {
	counts := make(map[string]int)
	for _, s := range subjects {
		head, _, ok := strings.Cut(s, ":")
		if !ok {
			continue
		}
		head = strings.TrimSuffix(strings.TrimSpace(head), "!")
		open := strings.IndexByte(head, '(')
		if open < 0 || !strings.HasSuffix(head, ")") {
			continue
		}
		if !validType(strings.ToLower(head[:open])) {
			continue
		}
		scope := strings.ToLower(head[open+1 : len(head)-1])
		if scope != "" && validScope(scope) {
			counts[scope]++
		}
	}
	scopes := make([]string, 0, len(counts))
	for s := range counts {
		scopes = append(scopes, s)
	}
	sort.Slice(scopes, func(i, j int) bool {
		if counts[scopes[i]] != counts[scopes[j]] {
			return counts[scopes[i]] > counts[scopes[j]]
		}
		return scopes[i] < scopes[j]
	})
	if max > 0 && len(scopes) > max {
		scopes = scopes[:max]
	}
	return scopes
}

// IsDependencyManifest reports whether path names a dependency or lock
// file; groups touching only such files are committed as type "build".
func IsDependencyManifest(path string) bool {
	name := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		name = path[i+1:]
	}
	switch name {
	case "Cargo.toml", "Cargo.lock", "package.json", "package-lock.json",
		"pnpm-lock.yaml", "yarn.lock", "bun.lock", "bun.lockb",
		"go.mod", "go.sum", "requirements.txt", "Pipfile", "Pipfile.lock",
		"pyproject.toml", "Gemfile", "Gemfile.lock",
		"composer.json", "composer.lock",
		"build.gradle", "build.gradle.kts", "gradle.properties", "pom.xml":
		return true
	}
	ext := strings.ToLower(name)
	return strings.HasSuffix(ext, ".lock") || strings.HasSuffix(ext, ".lockb")
}
