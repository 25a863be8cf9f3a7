package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vowstar/llm-git/internal/commitmsg"
	"github.com/vowstar/llm-git/internal/compose"
)

const messageSystemPrompt = `You write conventional commit messages.

You receive the staged diff for one commit, its intended type and scope, and the summaries of commits already made in this session. Respond with a JSON object:
{"type": "...", "scope": "...", "summary": "...", "body": "..."}
- summary: imperative mood, lower case, no trailing period, at most %d characters.
- body: optional, short prose explaining the why. Empty string if the summary suffices.
- Do not repeat earlier commits' content.`

// GenerateMessage drafts a commit message for one group from its
// staged diff and stat. prior carries the summaries of commits already
// created this run so the model does not re-describe them; recent holds
// subjects from the repository's history so the drafted message matches
// the project's established style and scopes.
func (c *Client) GenerateMessage(ctx context.Context, group compose.ChangeGroup, stat, stagedDiff string, prior, recent []string) (*commitmsg.Message, error) {
	limits := commitmsg.Limits{
		SummarySoft: c.cfg.SummarySoftLimit,
		SummaryHard: c.cfg.SummaryHardLimit,
	}
	if limits.SummarySoft == 0 {
		limits = commitmsg.DefaultLimits
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Intended type: %s\n", group.Type)
	if group.Scope != "" {
		fmt.Fprintf(&sb, "Intended scope: %s\n", group.Scope)
	}
	if group.Rationale != "" {
		fmt.Fprintf(&sb, "Grouping rationale: %s\n", group.Rationale)
	}
	if len(prior) > 0 {
		sb.WriteString("Commits already made this session:\n")
		for _, p := range prior {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}
	if len(recent) > 0 {
		const maxRecent = 10
		shown := recent
		if len(shown) > maxRecent {
			shown = shown[:maxRecent]
		}
		sb.WriteString("Recent commits in this repository (match their style):\n")
		for _, s := range shown {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
		if scopes := commitmsg.ExtractScopes(recent, 5); len(scopes) > 0 {
			fmt.Fprintf(&sb, "Commonly used scopes: %s\n", strings.Join(scopes, ", "))
		}
	}
	if stat != "" {
		fmt.Fprintf(&sb, "\nStaged stat:\n%s\n", strings.TrimRight(stat, "\n"))
	}
	fmt.Fprintf(&sb, "\nStaged diff:\n```diff\n%s\n```", stagedDiff)

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.SummaryModel,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(messageSystemPrompt, limits.SummarySoft)},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	}

	resp, err := c.chat(ctx, req)
	if err != nil {
		return nil, err
	}

	msg, err := parseMessage(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("generate message: %w", err)
	}
	if msg.Type == "" {
		msg.Type = group.Type
	}
	if msg.Scope == "" {
		msg.Scope = group.Scope
	}
	msg.Normalize()
	if err := msg.Validate(limits); err != nil {
		return nil, fmt.Errorf("generate message: %w", err)
	}
	return msg, nil
}

func parseMessage(content string) (*commitmsg.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}
	candidates := []string{content}
	if block, ok := fencedBlock(content); ok {
		candidates = append([]string{block}, candidates...)
	}
	if span, ok := balancedSpan(content, '{'); ok {
		candidates = append(candidates, span)
	}
	var lastErr error
	for _, cand := range candidates {
		var msg commitmsg.Message
		if err := json.Unmarshal([]byte(cand), &msg); err != nil {
			lastErr = err
			continue
		}
		if msg.Summary == "" {
			lastErr = fmt.Errorf("message has empty summary")
			continue
		}
		return &msg, nil
	}
	return nil, fmt.Errorf("no parsable message in response: %w", lastErr)
}
