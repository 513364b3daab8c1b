package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"voice-companion/internal/application"
	"voice-companion/internal/infra"
)

// SuggestClient generates reply suggestions with the chat completions API.
type SuggestClient struct {
	client *openai.Client
	model  string
	hasKey bool
	retry  infra.RetryConfig
}

func NewSuggestClient(apiKey, model string) *SuggestClient {
	return NewSuggestClientWithURL(apiKey, model, "")
}

func NewSuggestClientWithURL(apiKey, model, baseURL string) *SuggestClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &SuggestClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		hasKey: apiKey != "",
		retry:  infra.DefaultRetryConfig(),
	}
}

func (c *SuggestClient) Suggest(ctx context.Context, sr application.SuggestionRequest) ([]string, error) {
	if !c.hasKey {
		return nil, application.ErrMissingCredential
	}

	turns := sr.Turns()
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: sr.SystemInstruction(),
	})
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}

	var resp openai.ChatCompletionResponse
	err := infra.WithRetry(ctx, c.retry, func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.model,
			Messages: messages,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && !infra.IsRetryableHTTPStatus(apiErr.HTTPStatusCode) {
			return infra.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from openai")
	}

	return application.ParseSuggestions(resp.Choices[0].Message.Content, sr.Count)
}
