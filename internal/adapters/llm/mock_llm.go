package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Complete echoes the last user message.
func (m *MockLLM) Complete(_ context.Context, turns []domain.Turn) (string, error) {
	text, hasImage := lastUserText(turns)
	if text == "" && !hasImage {
		return "Hi! What would you like to talk about?", nil
	}
	if hasImage {
		return fmt.Sprintf("You said %q and shared an image.", text), nil
	}
	return fmt.Sprintf("You said %q. Tell me more.", text), nil
}
