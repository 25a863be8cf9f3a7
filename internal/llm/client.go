// Package llm talks to an OpenAI-compatible chat endpoint to group a
// baseline diff into commit candidates and to draft commit messages.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vowstar/llm-git/internal/config"
)

// Client wraps one chat-completion backend for both analysis calls and
// message drafting. Models may differ per call.
type Client struct {
	api *openai.Client
	cfg *config.Config
	log *slog.Logger
}

func NewClient(cfg *config.Config, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: missing API key (set api_key or OPENAI_API_KEY)")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBaseURL != "" {
		oc.BaseURL = cfg.APIBaseURL
	}
	return &Client{
		api: openai.NewClientWithConfig(oc),
		cfg: cfg,
		log: log,
	}, nil
}

func (c *Client) chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.log.Debug("chat completion request",
		slog.String("model", req.Model),
		slog.Int("messages", len(req.Messages)),
		slog.Int("tools", len(req.Tools)))
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return resp, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return resp, fmt.Errorf("chat completion: empty response")
	}
	c.log.Debug("chat completion response",
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens))
	return resp, nil
}
