package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

type VertexClient struct {
	client    *genai.Client
	modelName string
}

// NewVertexClient creates a ChatModel based on Vertex AI (Gemini).
func NewVertexClient(ctx context.Context, projectID, location, modelName string) (*VertexClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("vertex needs a project and a location")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// Complete implements domain.ChatModel using Vertex AI.
func (v *VertexClient) Complete(ctx context.Context, turns []domain.Turn) (string, error) {
	prompt := BuildPrompt(turns)

	temp := float32(0.7)
	topP := float32(0.9)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: int32(8192),
	}
	if prompt.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, toGenaiContents(prompt.Dialog), cfg)
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("vertex returned empty text")
	}
	return text, nil
}

func toGenaiContents(turns []domain.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}

		if !t.Content.IsParts() {
			contents = append(contents, genai.NewContentFromText(t.Content.Text(), role))
			continue
		}

		var parts []*genai.Part
		for _, p := range t.Content.Parts() {
			switch p.Kind {
			case domain.PartText:
				parts = append(parts, genai.NewPartFromText(p.Text))
			case domain.PartImage:
				parts = append(parts, genai.NewPartFromURI(p.URL, imageMIME(p.URL)))
			}
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}
