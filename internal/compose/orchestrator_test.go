package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/vowstar/llm-git/internal/patch"
)

type fakeStager struct {
	addFilesFunc   func(paths []string) error
	applyPatchFunc func(patchText string) error
	resetIndexFunc func() error

	added   [][]string
	patches []string
	resets  int
}

func (f *fakeStager) AddFiles(paths []string) error {
	f.added = append(f.added, paths)
	if f.addFilesFunc != nil {
		return f.addFilesFunc(paths)
	}
	return nil
}

func (f *fakeStager) ApplyPatch(patchText string) error {
	f.patches = append(f.patches, patchText)
	if f.applyPatchFunc != nil {
		return f.applyPatchFunc(patchText)
	}
	return nil
}

func (f *fakeStager) ResetIndex() error {
	f.resets++
	if f.resetIndexFunc != nil {
		return f.resetIndexFunc()
	}
	return nil
}

type fakeCommits struct {
	createFunc func(ctx context.Context, group ChangeGroup, prior []string) (string, error)

	created []ChangeGroup
}

func (f *fakeCommits) CreateCommit(ctx context.Context, group ChangeGroup, prior []string) (string, error) {
	f.created = append(f.created, group)
	if f.createFunc != nil {
		return f.createFunc(ctx, group, prior)
	}
	return fmt.Sprintf("hash%d", len(f.created)), nil
}

const orchestratorBaseline = `diff --git a/core.go b/core.go
index 1111111..2222222 100644
--- a/core.go
+++ b/core.go
@@ -10,3 +10,4 @@ func core() {
 	a := 1
+	b := 2
 	use(a)
 	_ = a
@@ -50,3 +51,4 @@ func tail() {
 	x := 1
+	y := 2
 	_ = x
 	_ = x
diff --git a/util.go b/util.go
index 3333333..4444444 100644
--- a/util.go
+++ b/util.go
@@ -1,2 +1,3 @@
 package util
+func helper() {}
 var _ = 0
`

func wholeFile(path string) FileChange {
	return FileChange{Path: path, Hunks: []patch.Selector{patch.All()}}
}

func TestRunWholeFileGroups(t *testing.T) {
	t.Parallel()

	stager := &fakeStager{}
	commits := &fakeCommits{}
	engine := NewEngine(stager, commits, Options{})

	groups := []ChangeGroup{
		{Type: "feat", Changes: []FileChange{wholeFile("core.go")}},
		{Type: "chore", Changes: []FileChange{wholeFile("util.go")}},
	}
	results, err := engine.Run(context.Background(), orchestratorBaseline, groups)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for i, res := range results {
		if res.Err != nil || res.CommitHash == "" {
			t.Errorf("result %d = %+v, want hash and no error", i, res)
		}
	}
	if stager.resets != 1 {
		t.Errorf("resets = %d, want 1 (initial reset only)", stager.resets)
	}
	if len(stager.added) != 2 || len(stager.patches) != 0 {
		t.Errorf("added=%v patches=%d, want two adds and no patches", stager.added, len(stager.patches))
	}
}

func TestRunPartialHunks(t *testing.T) {
	t.Parallel()

	stager := &fakeStager{}
	commits := &fakeCommits{}
	engine := NewEngine(stager, commits, Options{})

	groups := []ChangeGroup{
		{Type: "feat", Changes: []FileChange{
			{Path: "core.go", Hunks: []patch.Selector{{Kind: patch.SelectLines, Start: 10, End: 13}}},
			wholeFile("util.go"),
		}},
		{Type: "fix", Changes: []FileChange{
			{Path: "core.go", Hunks: []patch.Selector{{Kind: patch.SelectSearch, Pattern: "y := 2"}}},
		}},
	}
	results, err := engine.Run(context.Background(), orchestratorBaseline, groups)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if len(stager.patches) != 2 {
		t.Fatalf("len(patches) = %d, want 2", len(stager.patches))
	}
	first, second := stager.patches[0], stager.patches[1]
	if !strings.Contains(first, "@@ -10,3 +10,4 @@") || strings.Contains(first, "@@ -50,") {
		t.Errorf("first patch has wrong hunks:\n%s", first)
	}
	// The second group's hunk keeps its absolute baseline numbers even
	// though the first group already committed part of the same file.
	if !strings.Contains(second, "@@ -50,3 +51,4 @@") {
		t.Errorf("second patch renumbered or lost its hunk:\n%s", second)
	}
	if len(stager.added) != 1 || stager.added[0][0] != "util.go" {
		t.Errorf("added = %v, want [[util.go]]", stager.added)
	}
}

func TestRunDependencyOrder(t *testing.T) {
	t.Parallel()

	stager := &fakeStager{}
	commits := &fakeCommits{}
	engine := NewEngine(stager, commits, Options{})

	groups := []ChangeGroup{
		{Type: "feat", Changes: []FileChange{wholeFile("core.go")}, Dependencies: []int{1}},
		{Type: "chore", Changes: []FileChange{wholeFile("util.go")}},
	}
	results, err := engine.Run(context.Background(), orchestratorBaseline, groups)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results[0].GroupIndex != 1 || results[1].GroupIndex != 0 {
		t.Errorf("application order = [%d %d], want [1 0]",
			results[0].GroupIndex, results[1].GroupIndex)
	}
}

func TestRunUnresolvedSelectorFailsGroup(t *testing.T) {
	t.Parallel()

	stager := &fakeStager{}
	commits := &fakeCommits{}
	engine := NewEngine(stager, commits, Options{})

	groups := []ChangeGroup{
		{Type: "chore", Changes: []FileChange{wholeFile("util.go")}},
		{Type: "feat", Changes: []FileChange{
			{Path: "core.go", Hunks: []patch.Selector{{Kind: patch.SelectLines, Start: 900, End: 905}}},
		}},
	}
	results, err := engine.Run(context.Background(), orchestratorBaseline, groups)
	var unresolved *patch.UnresolvedSelectorError
	if !errors.As(err, &unresolved) {
		t.Fatalf("Run() error = %v, want *UnresolvedSelectorError", err)
	}
	// First group committed and stays committed; the failing group did not
	// touch the index.
	if len(results) != 2 || results[0].CommitHash == "" || results[1].Err == nil {
		t.Errorf("results = %+v, want first committed, second failed", results)
	}
	if len(stager.patches) != 0 {
		t.Errorf("failing group staged a patch: %v", stager.patches)
	}
	if len(commits.created) != 1 {
		t.Errorf("commits created = %d, want 1", len(commits.created))
	}
}

func TestRunUnknownPathFailsGroup(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&fakeStager{}, &fakeCommits{}, Options{})
	groups := []ChangeGroup{
		{Type: "feat", Changes: []FileChange{wholeFile("missing.go")}},
	}
	_, err := engine.Run(context.Background(), orchestratorBaseline, groups)
	var unresolved *patch.UnresolvedSelectorError
	if !errors.As(err, &unresolved) {
		t.Fatalf("Run() error = %v, want *UnresolvedSelectorError", err)
	}
	if unresolved.Path != "missing.go" {
		t.Errorf("Path = %q, want missing.go", unresolved.Path)
	}
}

func TestRunFallbackWholeFile(t *testing.T) {
	t.Parallel()

	stager := &fakeStager{}
	commits := &fakeCommits{}
	engine := NewEngine(stager, commits, Options{FallbackWholeFile: true})

	groups := []ChangeGroup{
		{Type: "feat", Changes: []FileChange{
			{Path: "core.go", Hunks: []patch.Selector{{Kind: patch.SelectLines, Start: 900, End: 905}}},
			wholeFile("util.go"),
		}},
	}
	results, err := engine.Run(context.Background(), orchestratorBaseline, groups)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results[0].Err != nil {
		t.Errorf("result = %+v, want success via fallback", results[0])
	}
	if len(stager.added) != 1 || !equalStrings(stager.added[0], []string{"core.go", "util.go"}) {
		t.Errorf("added = %v, want [[core.go util.go]]", stager.added)
	}
}

func TestRunApplyRejected(t *testing.T) {
	t.Parallel()

	applyErr := errors.New("patch does not apply")
	stager := &fakeStager{
		applyPatchFunc: func(string) error { return applyErr },
	}
	commits := &fakeCommits{}
	engine := NewEngine(stager, commits, Options{})

	groups := []ChangeGroup{
		{Type: "feat", Changes: []FileChange{
			{Path: "core.go", Hunks: []patch.Selector{{Kind: patch.SelectSearch, Pattern: "b := 2"}}},
			wholeFile("util.go"),
		}},
	}
	results, err := engine.Run(context.Background(), orchestratorBaseline, groups)
	if !errors.Is(err, applyErr) {
		t.Fatalf("Run() error = %v, want wrapped apply error", err)
	}
	if len(results) != 1 || results[0].Err == nil {
		t.Errorf("results = %+v, want one failed result", results)
	}
	if len(commits.created) != 0 {
		t.Error("commit created despite failed apply")
	}
}

func TestRunAddFailureResetsIndex(t *testing.T) {
	t.Parallel()

	addErr := errors.New("add failed")
	stager := &fakeStager{
		addFilesFunc: func([]string) error { return addErr },
	}
	engine := NewEngine(stager, &fakeCommits{}, Options{})

	groups := []ChangeGroup{
		{Type: "feat", Changes: []FileChange{wholeFile("core.go"), wholeFile("util.go")}},
	}
	_, err := engine.Run(context.Background(), orchestratorBaseline, groups)
	if !errors.Is(err, addErr) {
		t.Fatalf("Run() error = %v, want wrapped add error", err)
	}
	// Initial reset plus the cleanup reset after the failed add.
	if stager.resets != 2 {
		t.Errorf("resets = %d, want 2", stager.resets)
	}
}

func TestRunContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := NewEngine(&fakeStager{}, &fakeCommits{}, Options{})
	groups := []ChangeGroup{
		{Type: "feat", Changes: []FileChange{wholeFile("core.go")}},
	}
	_, err := engine.Run(ctx, orchestratorBaseline, groups)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunCommitFailureStops(t *testing.T) {
	t.Parallel()

	commitErr := errors.New("gpg unavailable")
	commits := &fakeCommits{
		createFunc: func(context.Context, ChangeGroup, []string) (string, error) {
			return "", commitErr
		},
	}
	stager := &fakeStager{}
	engine := NewEngine(stager, commits, Options{})
	groups := []ChangeGroup{
		{Type: "feat", Changes: []FileChange{wholeFile("core.go")}},
		{Type: "chore", Changes: []FileChange{wholeFile("util.go")}},
	}
	results, err := engine.Run(context.Background(), orchestratorBaseline, groups)
	if !errors.Is(err, commitErr) {
		t.Fatalf("Run() error = %v, want wrapped commit error", err)
	}
	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1 (second group never attempted)", len(results))
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
