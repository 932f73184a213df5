package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client is a thin wrapper over an OpenAI-compatible chat endpoint, used by
// the LLM reranker. Answer generation itself stays outside this module.
type Client struct {
	llm *openai.LLM
}

func NewClient(baseURL, key, model string) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("llmservice: init client: %w", err)
	}
	return &Client{llm: llm}, nil
}

// Generate sends a single-turn prompt and returns the model's reply text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}
	res, err := c.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("llmservice: generate: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("llmservice: empty response")
	}
	return res.Choices[0].Content, nil
}
