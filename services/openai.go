package services

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient generates text with the chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	hasKey bool
}

// NewOpenAIClient creates a client; baseURL may be empty for the public API.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		hasKey: apiKey != "",
	}
}

func (o *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if !o.hasKey {
		return "", ErrNotConfigured
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response content from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}
