package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vowstar/llm-git/internal/compose"
)

// parseGroupsPayload decodes a strict JSON payload: either the
// {"groups": [...]} wrapper or a bare array of groups.
func parseGroupsPayload(text string) ([]compose.ChangeGroup, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty payload")
	}

	var wrapper struct {
		Groups []compose.ChangeGroup `json:"groups"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err == nil && len(wrapper.Groups) > 0 {
		return wrapper.Groups, nil
	}

	var groups []compose.ChangeGroup
	if err := json.Unmarshal([]byte(text), &groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("decode groups: empty array")
	}
	return groups, nil
}

// parseGroupsFromContent salvages a grouping from free-form message
// content: a fenced code block first, then the outermost JSON object or
// array in the raw text.
func parseGroupsFromContent(content string) ([]compose.ChangeGroup, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	if block, ok := fencedBlock(content); ok {
		if groups, err := parseGroupsPayload(block); err == nil {
			return groups, nil
		}
	}
	for _, open := range []byte{'{', '['} {
		if span, ok := balancedSpan(content, open); ok {
			if groups, err := parseGroupsPayload(span); err == nil {
				return groups, nil
			}
		}
	}
	return nil, fmt.Errorf("no parsable grouping in response")
}

// fencedBlock returns the body of the first ``` fenced block, tolerating
// a language tag on the opening fence.
func fencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// balancedSpan extracts the first balanced {...} or [...] span,
// skipping brackets inside JSON strings.
func balancedSpan(s string, open byte) (string, bool) {
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
