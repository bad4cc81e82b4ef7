package ai

import (
	"context"
	"errors"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"vivareal_scraper/config"
	"vivareal_scraper/models"
)

// OpenAIAdapter answers fallback queries with a chat completion call.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
}

// NewOpenAIAdapter builds an adapter from config, or nil when no API
// key is set. A nil adapter disables fallback without disabling the
// pipeline.
func NewOpenAIAdapter(cfg *config.Config) *OpenAIAdapter {
	if cfg.OpenAI.APIKey == "" {
		return nil
	}
	clientCfg := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAI.BaseURL
	}
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.OpenAI.Model,
	}
}

// Extract sends the query and parses the response against its schema.
// Every failure comes back as an *models.AdapterError.
func (a *OpenAIAdapter) Extract(ctx context.Context, q Query) (*Result, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: q.Prompt},
		},
	})
	if err != nil {
		kind := models.AdapterErrNetwork
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = models.AdapterErrTimeout
		}
		log.Printf("AI fallback for %s failed: %v", q.Field, err)
		return nil, &models.AdapterError{Kind: kind, Field: q.Field, Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, malformed(q.Field, errors.New("no choices in response"))
	}
	return ParseResponse(q, resp.Choices[0].Message.Content)
}
