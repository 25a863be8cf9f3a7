package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vowstar/llm-git/internal/commitmsg"
	"github.com/vowstar/llm-git/internal/compose"
)

const composeSystemPrompt = `You are an expert software engineer splitting a large changeset into small, atomic commits.

You receive a unified diff of all uncommitted changes. Group the changes into logically independent commits. Rules:
- Every changed file must be covered by at least one group.
- A group may take a whole file ("ALL") or individual hunks of it, selected by hunk header, line range in the old file, or a search string that appears in the hunk.
- Groups that depend on changes from another group must list that group's index in "dependencies".
- Prefer few, coherent groups over many tiny ones. Never exceed the requested maximum.
- "type" is a conventional commit type (feat, fix, refactor, docs, test, chore, build, ci, perf, style).`

// createComposeAnalysisSchema is the tool the model must call to return
// its grouping. Keeping it a schema rather than free text makes the
// happy path strict JSON.
var createComposeAnalysisSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "groups": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "changes": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "path": {"type": "string"},
                "hunks": {
                  "type": "array",
                  "items": {
                    "anyOf": [
                      {"type": "string"},
                      {
                        "type": "object",
                        "properties": {
                          "start": {"type": "integer"},
                          "end": {"type": "integer"}
                        },
                        "required": ["start", "end"]
                      }
                    ]
                  }
                }
              },
              "required": ["path", "hunks"]
            }
          },
          "type": {"type": "string"},
          "scope": {"type": "string"},
          "rationale": {"type": "string"},
          "dependencies": {"type": "array", "items": {"type": "integer"}}
        },
        "required": ["changes", "type", "rationale"]
      }
    }
  },
  "required": ["groups"]
}`)

// AnalyzeGroups asks the model to partition the (possibly truncated)
// diff into at most maxCommits groups. stat is a short per-file change
// summary that stays intact even when the diff itself was truncated.
func (c *Client) AnalyzeGroups(ctx context.Context, stat, diffText string, maxCommits int) ([]compose.ChangeGroup, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Split the following changes into at most %d commits. Call create_compose_analysis with your grouping.\n\n", maxCommits)
	if stat != "" {
		fmt.Fprintf(&prompt, "Change summary:\n%s\n\n", strings.TrimRight(stat, "\n"))
	}
	fmt.Fprintf(&prompt, "```diff\n%s\n```", diffText)
	userPrompt := prompt.String()

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.AnalysisModel,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: composeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "create_compose_analysis",
				Description: "Report the proposed commit grouping for the changeset.",
				Parameters:  createComposeAnalysisSchema,
			},
		}},
	}

	resp, err := c.chat(ctx, req)
	if err != nil {
		return nil, err
	}

	msg := resp.Choices[0].Message
	for _, call := range msg.ToolCalls {
		if call.Function.Name != "create_compose_analysis" {
			continue
		}
		groups, err := parseGroupsPayload(call.Function.Arguments)
		if err != nil {
			c.log.Warn("tool call arguments unparsable, falling back to content",
				slog.String("error", err.Error()))
			break
		}
		return normalizeGroups(groups), nil
	}

	// Some backends ignore the tool and answer in prose with embedded
	// JSON. Salvage what we can before giving up.
	groups, err := parseGroupsFromContent(msg.Content)
	if err != nil {
		return nil, fmt.Errorf("analyze groups: %w", err)
	}
	return normalizeGroups(groups), nil
}

// normalizeGroups cleans model output the engine should not have to
// defend against: blank types and manifest-only groups.
func normalizeGroups(groups []compose.ChangeGroup) []compose.ChangeGroup {
	for i := range groups {
		g := &groups[i]
		g.Type = strings.ToLower(strings.TrimSpace(g.Type))
		if g.Type == "" {
			g.Type = "chore"
		}
		if manifestOnly(g) {
			g.Type = "build"
		}
	}
	return groups
}

func manifestOnly(g *compose.ChangeGroup) bool {
	if len(g.Changes) == 0 {
		return false
	}
	for _, ch := range g.Changes {
		if !commitmsg.IsDependencyManifest(ch.Path) {
			return false
		}
	}
	return true
}
