package llm

import (
	"path"
	"strings"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

// Prompt is a transcript split the way most providers want it: one system
// instruction plus the user/assistant dialog.
type Prompt struct {
	System string
	Dialog []domain.Turn
}

// BuildPrompt joins every system turn into System and keeps the rest in order.
// Loading sentinels are dropped.
func BuildPrompt(turns []domain.Turn) Prompt {
	var system []string
	dialog := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		switch {
		case t.IsPlaceholder():
			continue
		case t.Role == domain.RoleSystem:
			if text, ok := t.Content.FirstText(); ok && strings.TrimSpace(text) != "" {
				system = append(system, text)
			}
		default:
			dialog = append(dialog, t)
		}
	}
	return Prompt{
		System: strings.Join(system, "\n\n"),
		Dialog: dialog,
	}
}

// lastUserText returns the most recent user text in turns and whether that
// turn carries an image.
func lastUserText(turns []domain.Turn) (text string, hasImage bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != domain.RoleUser {
			continue
		}
		for _, p := range turns[i].Content.Parts() {
			if p.Kind == domain.PartImage {
				hasImage = true
				break
			}
		}
		text, _ = turns[i].Content.FirstText()
		return text, hasImage
	}
	return "", false
}

// imageMIME guesses an image MIME type from a URL's extension.
func imageMIME(url string) string {
	url, _, _ = strings.Cut(url, "?")
	switch strings.ToLower(strings.TrimPrefix(path.Ext(url), ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
