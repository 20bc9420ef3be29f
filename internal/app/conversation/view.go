package conversation

import (
	"time"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

// ViewOptions control how a transcript is projected for display.
type ViewOptions struct {
	LoadingLabel   string
	TypingDots     int
	TypingInterval time.Duration
}

func DefaultViewOptions() ViewOptions {
	return ViewOptions{
		LoadingLabel:   "typing",
		TypingDots:     4,
		TypingInterval: 500 * time.Millisecond,
	}
}

// TypingIndicator is the cycling dot state shown in place of the sentinel.
type TypingIndicator struct {
	Since    time.Time
	Dots     int
	Interval time.Duration
}

// Frame returns the active dot for now, in [0, Dots).
func (ti TypingIndicator) Frame(now time.Time) int {
	if ti.Dots <= 0 || ti.Interval <= 0 {
		return 0
	}
	elapsed := now.Sub(ti.Since)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed/ti.Interval) % ti.Dots
}

// RenderedTurn is one visible row.
type RenderedTurn struct {
	Index       int                  `json:"index"`
	Role        domain.Role          `json:"role"`
	Text        string               `json:"text,omitempty"`
	Parts       []domain.ContentPart `json:"-"`
	ImageURLs   []string             `json:"image_urls,omitempty"`
	Typing      bool                 `json:"typing,omitempty"`
	TypingLabel string               `json:"typing_label,omitempty"`
	TypingFrame int                  `json:"typing_frame,omitempty"`
}

// Render skips system turns and turns every sentinel into a typing row. ind
// drives the typing frame.
func Render(turns []domain.Turn, opts ViewOptions, ind TypingIndicator, now time.Time) []RenderedTurn {
	out := make([]RenderedTurn, 0, len(turns))
	for i, t := range turns {
		if t.Role == domain.RoleSystem {
			continue
		}
		row := RenderedTurn{Index: i, Role: t.Role}

		switch {
		case t.IsPlaceholder():
			row.Typing = true
			row.TypingLabel = opts.LoadingLabel
			row.TypingFrame = ind.Frame(now)
		case t.Content.IsParts():
			row.Parts = t.Content.Parts()
			for _, p := range row.Parts {
				switch p.Kind {
				case domain.PartText:
					if row.Text == "" {
						row.Text = p.Text
					}
				case domain.PartImage:
					row.ImageURLs = append(row.ImageURLs, p.URL)
				}
			}
		default:
			row.Text = t.Content.Text()
		}
		out = append(out, row)
	}
	return out
}
