package render

import (
	"strings"
	"testing"

	"github.com/vowstar/llm-git/internal/compose"
	"github.com/vowstar/llm-git/internal/diff"
	"github.com/vowstar/llm-git/internal/patch"
)

const previewBaseline = `diff --git a/core.go b/core.go
index 1111111..2222222 100644
--- a/core.go
+++ b/core.go
@@ -1,3 +1,4 @@
 package core
+func added() {}
 var a = 1
 var b = 2
@@ -20,2 +21,2 @@
 var c = 3
-var d = 4
+var d = 5
diff --git a/img.png b/img.png
index 3333333..4444444 100644
Binary files a/img.png and b/img.png differ
`

func TestGroupPreviewPlain(t *testing.T) {
	t.Parallel()

	snap, err := diff.Parse(previewBaseline)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	groups := []compose.ChangeGroup{
		{
			Type:      "feat",
			Scope:     "core",
			Rationale: "new helper",
			Changes: []compose.FileChange{
				{Path: "core.go", Hunks: []patch.Selector{{Kind: patch.SelectSearch, Pattern: "added()"}}},
			},
		},
		{
			Type:         "chore",
			Dependencies: []int{0},
			Changes: []compose.FileChange{
				{Path: "img.png", Hunks: []patch.Selector{patch.All()}},
			},
		},
	}

	var buf strings.Builder
	r := New(&buf, false)
	if err := r.GroupPreview(snap, groups, []int{0, 1}); err != nil {
		t.Fatalf("GroupPreview() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Commit 1/2: feat(core)",
		"new helper",
		"core.go (1 of 2 hunks)",
		"@@ -1,3 +1,4 @@",
		"+func added() {}",
		"Commit 2/2: chore",
		"depends on groups [0]",
		"binary file",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "@@ -20,") {
		t.Errorf("unselected hunk rendered:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("ANSI escapes present with color disabled:\n%s", out)
	}
}

func TestGroupPreviewUnknownPath(t *testing.T) {
	t.Parallel()

	snap, err := diff.Parse(previewBaseline)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	groups := []compose.ChangeGroup{
		{Type: "fix", Changes: []compose.FileChange{
			{Path: "gone.go", Hunks: []patch.Selector{patch.All()}},
		}},
	}
	var buf strings.Builder
	if err := New(&buf, false).GroupPreview(snap, groups, []int{0}); err != nil {
		t.Fatalf("GroupPreview() error = %v", err)
	}
	if !strings.Contains(buf.String(), "not in baseline diff") {
		t.Errorf("missing unknown-path notice:\n%s", buf.String())
	}
}
