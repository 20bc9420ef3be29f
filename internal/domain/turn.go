package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PartKind tags a ContentPart.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image_url"
)

// ContentPart is one element of a multi-part message: text or an image reference.
type ContentPart struct {
	Kind PartKind
	Text string // set when Kind == PartText
	URL  string // set when Kind == PartImage
}

func TextPart(text string) ContentPart { return ContentPart{Kind: PartText, Text: text} }
func ImagePart(url string) ContentPart { return ContentPart{Kind: PartImage, URL: url} }

// Content is either plain text or an ordered list of parts. The zero value is
// empty text.
type Content struct {
	text    string
	parts   []ContentPart
	isParts bool
}

func TextContent(text string) Content { return Content{text: text} }

func PartsContent(parts ...ContentPart) Content {
	cp := make([]ContentPart, len(parts))
	copy(cp, parts)
	return Content{parts: cp, isParts: true}
}

func (c Content) IsParts() bool { return c.isParts }

// Text returns the plain text. It is empty for part lists.
func (c Content) Text() string { return c.text }

// Parts returns a copy of the part list, nil for plain text.
func (c Content) Parts() []ContentPart {
	if !c.isParts {
		return nil
	}
	out := make([]ContentPart, len(c.parts))
	copy(out, c.parts)
	return out
}

// IsEmpty is true for blank text and for part lists without a usable part.
func (c Content) IsEmpty() bool {
	if !c.isParts {
		return strings.TrimSpace(c.text) == ""
	}
	for _, p := range c.parts {
		switch p.Kind {
		case PartText:
			if strings.TrimSpace(p.Text) != "" {
				return false
			}
		case PartImage:
			if p.URL != "" {
				return false
			}
		}
	}
	return true
}

// FirstText returns the text content, or the first text part of a part list.
func (c Content) FirstText() (string, bool) {
	if !c.isParts {
		return c.text, true
	}
	for _, p := range c.parts {
		if p.Kind == PartText {
			return p.Text, true
		}
	}
	return "", false
}

func (c Content) Equal(o Content) bool {
	if c.isParts != o.isParts || c.text != o.text || len(c.parts) != len(o.parts) {
		return false
	}
	for i := range c.parts {
		if c.parts[i] != o.parts[i] {
			return false
		}
	}
	return true
}

// Turn is one message of a transcript.
type Turn struct {
	Role    Role
	Content Content
}

func NewTextTurn(role Role, text string) Turn {
	return Turn{Role: role, Content: TextContent(text)}
}

// PlaceholderTurn is the assistant sentinel pushed while awaiting a reply.
func PlaceholderTurn() Turn {
	return NewTextTurn(RoleAssistant, LoadingSentinel)
}

// IsPlaceholder reports whether t is the loading sentinel.
func (t Turn) IsPlaceholder() bool {
	return t.Role == RoleAssistant && !t.Content.IsParts() && t.Content.Text() == LoadingSentinel
}

func (t Turn) Equal(o Turn) bool {
	return t.Role == o.Role && t.Content.Equal(o.Content)
}

// DisplayText is the text a list or search shows for the turn. System turns and
// the sentinel have none.
func (t Turn) DisplayText() (string, bool) {
	if t.Role == RoleSystem || t.IsPlaceholder() {
		return "", false
	}
	return t.Content.FirstText()
}

// ─────────────────────────────────────────────
// Wire form: "content" is a JSON string or an array of typed parts.
// ─────────────────────────────────────────────

type wirePart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

type wireTurn struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (c Content) MarshalJSON() ([]byte, error) {
	if !c.isParts {
		return json.Marshal(c.text)
	}
	parts := make([]wirePart, 0, len(c.parts))
	for _, p := range c.parts {
		switch p.Kind {
		case PartText:
			parts = append(parts, wirePart{Type: string(PartText), Text: p.Text})
		case PartImage:
			parts = append(parts, wirePart{Type: string(PartImage), ImageURL: &wireImageURL{URL: p.URL}})
		default:
			return nil, fmt.Errorf("unknown content part kind %q", p.Kind)
		}
	}
	return json.Marshal(parts)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Content{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextContent(s)
		return nil
	}

	var raw []wirePart
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("content: expected string or part list: %w", err)
	}
	parts := make([]ContentPart, 0, len(raw))
	for _, p := range raw {
		switch PartKind(p.Type) {
		case PartText:
			parts = append(parts, TextPart(p.Text))
		case PartImage:
			if p.ImageURL == nil {
				return fmt.Errorf("content: image_url part without url")
			}
			parts = append(parts, ImagePart(p.ImageURL.URL))
		default:
			return fmt.Errorf("content: unknown part type %q", p.Type)
		}
	}
	*c = Content{parts: parts, isParts: true}
	return nil
}

func (t Turn) MarshalJSON() ([]byte, error) {
	content, err := t.Content.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireTurn{Role: t.Role, Content: content})
}

func (t *Turn) UnmarshalJSON(data []byte) error {
	var w wireTurn
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var c Content
	if err := c.UnmarshalJSON(w.Content); err != nil {
		return err
	}
	*t = Turn{Role: w.Role, Content: c}
	return nil
}

// ─────────────────────────────────────────────
// Value form, for document stores that take maps (Firestore).
// ─────────────────────────────────────────────

// TurnToValue converts t into plain maps and slices.
func TurnToValue(t Turn) map[string]any {
	var content any
	if t.Content.IsParts() {
		parts := make([]any, 0, len(t.Content.parts))
		for _, p := range t.Content.parts {
			switch p.Kind {
			case PartText:
				parts = append(parts, map[string]any{"type": string(PartText), "text": p.Text})
			case PartImage:
				parts = append(parts, map[string]any{
					"type":      string(PartImage),
					"image_url": map[string]any{"url": p.URL},
				})
			}
		}
		content = parts
	} else {
		content = t.Content.Text()
	}
	return map[string]any{"role": string(t.Role), "content": content}
}

// TurnFromValue is the inverse of TurnToValue. Unknown part shapes are skipped.
func TurnFromValue(v map[string]any) (Turn, error) {
	role, _ := v["role"].(string)
	if !Role(role).Valid() {
		return Turn{}, fmt.Errorf("turn: invalid role %q", role)
	}

	switch c := v["content"].(type) {
	case string:
		return NewTextTurn(Role(role), c), nil
	case []any:
		var parts []ContentPart
		for _, raw := range c {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			switch m["type"] {
			case string(PartText):
				s, _ := m["text"].(string)
				parts = append(parts, TextPart(s))
			case string(PartImage):
				img, _ := m["image_url"].(map[string]any)
				url, _ := img["url"].(string)
				parts = append(parts, ImagePart(url))
			}
		}
		return Turn{Role: Role(role), Content: PartsContent(parts...)}, nil
	case nil:
		return NewTextTurn(Role(role), ""), nil
	default:
		return Turn{}, fmt.Errorf("turn: unsupported content type %T", c)
	}
}
