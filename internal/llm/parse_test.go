package llm

import (
	"testing"

	"github.com/vowstar/llm-git/internal/patch"
)

const groupsJSON = `{
  "groups": [
    {
      "changes": [{"path": "core.go", "hunks": ["ALL"]}],
      "type": "feat",
      "scope": "core",
      "rationale": "new staging engine",
      "dependencies": []
    },
    {
      "changes": [{"path": "core_test.go", "hunks": [{"start": 10, "end": 20}, "@@ -40,6 +41,7 @@"]}],
      "type": "test",
      "rationale": "cover the engine",
      "dependencies": [0]
    }
  ]
}`

func TestParseGroupsPayloadWrapper(t *testing.T) {
	t.Parallel()

	groups, err := parseGroupsPayload(groupsJSON)
	if err != nil {
		t.Fatalf("parseGroupsPayload() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if groups[0].Type != "feat" || groups[0].Scope != "core" {
		t.Errorf("groups[0] = %+v, want feat/core", groups[0])
	}
	sels := groups[1].Changes[0].Hunks
	if len(sels) != 2 || sels[0].Kind != patch.SelectLines || sels[1].Kind != patch.SelectHeader {
		t.Errorf("selectors = %+v, want lines then header", sels)
	}
	if len(groups[1].Dependencies) != 1 || groups[1].Dependencies[0] != 0 {
		t.Errorf("Dependencies = %v, want [0]", groups[1].Dependencies)
	}
}

func TestParseGroupsPayloadBareArray(t *testing.T) {
	t.Parallel()

	groups, err := parseGroupsPayload(`[{"changes": [{"path": "a.go", "hunks": ["ALL"]}], "type": "fix", "rationale": "r"}]`)
	if err != nil {
		t.Fatalf("parseGroupsPayload() error = %v", err)
	}
	if len(groups) != 1 || groups[0].Type != "fix" {
		t.Errorf("groups = %+v, want single fix group", groups)
	}
}

func TestParseGroupsPayloadInvalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "not json", `{"groups": []}`, `[]`} {
		if _, err := parseGroupsPayload(in); err == nil {
			t.Errorf("parseGroupsPayload(%q) = nil error, want failure", in)
		}
	}
}

func TestParseGroupsFromContentFenced(t *testing.T) {
	t.Parallel()

	content := "Here is my grouping:\n\n```json\n" + groupsJSON + "\n```\n\nLet me know."
	groups, err := parseGroupsFromContent(content)
	if err != nil {
		t.Fatalf("parseGroupsFromContent() error = %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("len(groups) = %d, want 2", len(groups))
	}
}

func TestParseGroupsFromContentEmbedded(t *testing.T) {
	t.Parallel()

	content := "I propose the following grouping: " + groupsJSON + " which keeps the commits atomic."
	groups, err := parseGroupsFromContent(content)
	if err != nil {
		t.Fatalf("parseGroupsFromContent() error = %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("len(groups) = %d, want 2", len(groups))
	}
}

func TestParseGroupsFromContentProseOnly(t *testing.T) {
	t.Parallel()

	if _, err := parseGroupsFromContent("I could not split these changes."); err == nil {
		t.Error("parseGroupsFromContent() = nil error, want failure")
	}
}

func TestParseMessage(t *testing.T) {
	t.Parallel()

	msg, err := parseMessage(`{"type": "feat", "scope": "llm", "summary": "add message drafting", "body": "Uses the summary model."}`)
	if err != nil {
		t.Fatalf("parseMessage() error = %v", err)
	}
	if msg.Type != "feat" || msg.Summary != "add message drafting" {
		t.Errorf("parseMessage() = %+v", msg)
	}
}

func TestParseMessageFenced(t *testing.T) {
	t.Parallel()

	content := "```json\n{\"type\": \"fix\", \"summary\": \"handle empty diff\"}\n```"
	msg, err := parseMessage(content)
	if err != nil {
		t.Fatalf("parseMessage() error = %v", err)
	}
	if msg.Type != "fix" {
		t.Errorf("Type = %q, want fix", msg.Type)
	}
}

func TestParseMessageInvalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "no json here", `{"type": "fix"}`} {
		if _, err := parseMessage(in); err == nil {
			t.Errorf("parseMessage(%q) = nil error, want failure", in)
		}
	}
}

func TestNormalizeGroups(t *testing.T) {
	t.Parallel()

	groups, err := parseGroupsPayload(`[
	  {"changes": [{"path": "go.mod", "hunks": ["ALL"]}, {"path": "go.sum", "hunks": ["ALL"]}], "type": "chore", "rationale": "deps"},
	  {"changes": [{"path": "main.go", "hunks": ["ALL"]}], "type": " Feat ", "rationale": "r"},
	  {"changes": [{"path": "other.go", "hunks": ["ALL"]}], "type": "", "rationale": "r"}
	]`)
	if err != nil {
		t.Fatalf("parseGroupsPayload() error = %v", err)
	}
	normalized := normalizeGroups(groups)
	if normalized[0].Type != "build" {
		t.Errorf("manifest-only group type = %q, want build", normalized[0].Type)
	}
	if normalized[1].Type != "feat" {
		t.Errorf("type = %q, want feat", normalized[1].Type)
	}
	if normalized[2].Type != "chore" {
		t.Errorf("empty type = %q, want chore", normalized[2].Type)
	}
}
