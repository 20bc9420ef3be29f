package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

// OpenAIClient talks to any OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for apiKey. baseURL overrides the API
// root when set.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAIClient) Complete(ctx context.Context, turns []domain.Turn) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAIMessages(turns),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(turns []domain.Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		if t.IsPlaceholder() {
			continue
		}
		msg := openai.ChatCompletionMessage{Role: openAIRole(t.Role)}
		if !t.Content.IsParts() {
			msg.Content = t.Content.Text()
			msgs = append(msgs, msg)
			continue
		}
		for _, p := range t.Content.Parts() {
			switch p.Kind {
			case domain.PartText:
				msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			case domain.PartImage:
				msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    p.URL,
						Detail: openai.ImageURLDetailAuto,
					},
				})
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func openAIRole(r domain.Role) string {
	switch r {
	case domain.RoleSystem:
		return openai.ChatMessageRoleSystem
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
