package conversation

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

func TestTranscriptAppendAndReplace(t *testing.T) {
	tr := NewTranscript(domain.NewTextTurn(domain.RoleSystem, "persona"))

	var changes []Change
	tr.OnChange(func(c Change) { changes = append(changes, c) })

	idx, err := tr.Append(domain.NewTextTurn(domain.RoleUser, "hello"))
	if err != nil || idx != 1 {
		t.Fatalf("Append: idx=%d err=%v", idx, err)
	}
	if _, err := tr.Append(domain.Turn{Role: domain.RoleUser}); !errors.Is(err, domain.ErrEmptyTurn) {
		t.Fatalf("expected ErrEmptyTurn, got %v", err)
	}

	tr.Append(domain.PlaceholderTurn())
	reply := domain.NewTextTurn(domain.RoleAssistant, "hi")
	tr.ReplaceLast(reply)
	tr.ReplaceLast(reply)

	if tr.Len() != 3 {
		t.Fatalf("ReplaceLast must not grow the transcript, len=%d", tr.Len())
	}
	last, _ := tr.At(2)
	if !last.Equal(reply) {
		t.Fatalf("unexpected last turn %+v", last)
	}
	if len(changes) != 4 || changes[3].Kind != ChangeReplace || changes[3].Index != 2 {
		t.Fatalf("unexpected changes %+v", changes)
	}
}

func TestTranscriptReplaceLastOnEmpty(t *testing.T) {
	tr := NewTranscript()
	tr.ReplaceLast(domain.NewTextTurn(domain.RoleAssistant, "x"))
	if tr.Len() != 0 {
		t.Fatalf("expected empty transcript")
	}
}

func TestTranscriptDiscard(t *testing.T) {
	tr := NewTranscript()
	tr.Append(domain.NewTextTurn(domain.RoleUser, "a"))
	tr.Discard()

	idx, err := tr.Append(domain.NewTextTurn(domain.RoleUser, "b"))
	if idx != -1 || err != nil {
		t.Fatalf("Append after discard: idx=%d err=%v", idx, err)
	}
	if tr.ReplaceAt(0, domain.NewTextTurn(domain.RoleUser, "c")) {
		t.Fatalf("ReplaceAt after discard should report false")
	}
	if got := tr.Snapshot(); len(got) != 1 || got[0].Content.Text() != "a" {
		t.Fatalf("discarded transcript changed: %+v", got)
	}
}

func TestContextForSkipsSentinels(t *testing.T) {
	tr := NewTranscript(
		domain.NewTextTurn(domain.RoleSystem, "p"),
		domain.NewTextTurn(domain.RoleUser, "a"),
		domain.PlaceholderTurn(),
		domain.NewTextTurn(domain.RoleUser, "b"),
		domain.PlaceholderTurn(),
	)

	got := tr.contextFor(3)
	if len(got) != 3 || got[2].Content.Text() != "b" {
		t.Fatalf("unexpected context %+v", got)
	}
	if n := len(persistable(tr.Snapshot())); n != 3 {
		t.Fatalf("expected 3 persistable turns, got %d", n)
	}
}

func TestRenderHidesSystemAndAnimatesSentinel(t *testing.T) {
	turns := []domain.Turn{
		domain.NewTextTurn(domain.RoleSystem, "persona"),
		{Role: domain.RoleUser, Content: domain.PartsContent(domain.TextPart("look"), domain.ImagePart("https://cdn/a.png"))},
		domain.PlaceholderTurn(),
	}
	since := time.Unix(100, 0)
	opts := DefaultViewOptions()
	ind := TypingIndicator{Since: since, Dots: opts.TypingDots, Interval: opts.TypingInterval}

	rows := Render(turns, opts, ind, since.Add(1600*time.Millisecond))
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Index != 1 || rows[0].Text != "look" || len(rows[0].ImageURLs) != 1 {
		t.Fatalf("unexpected user row %+v", rows[0])
	}
	if !rows[1].Typing || rows[1].TypingLabel != "typing" || rows[1].TypingFrame != 3 {
		t.Fatalf("unexpected typing row %+v", rows[1])
	}
	if rows[1].Text != "" {
		t.Fatalf("sentinel text must not be rendered")
	}
}

func TestTypingIndicatorWraps(t *testing.T) {
	ind := TypingIndicator{Since: time.Unix(0, 0), Dots: 4, Interval: time.Second}
	cases := map[time.Duration]int{0: 0, time.Second: 1, 3 * time.Second: 3, 4 * time.Second: 0, 9 * time.Second: 1}
	for d, want := range cases {
		if got := ind.Frame(time.Unix(0, 0).Add(d)); got != want {
			t.Fatalf("Frame(+%s) = %d, want %d", d, got, want)
		}
	}
	if (TypingIndicator{}).Frame(time.Now()) != 0 {
		t.Fatalf("zero indicator should stay on frame 0")
	}
}

func TestTranscriptReplaceLastConcurrentWithAppend(t *testing.T) {
	tr := NewTranscript(domain.NewTextTurn(domain.RoleSystem, "persona"))

	var mu sync.Mutex
	var replaced []int
	tr.OnChange(func(c Change) {
		if c.Kind != ChangeReplace {
			return
		}
		mu.Lock()
		replaced = append(replaced, c.Index)
		mu.Unlock()
	})

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Append(domain.PlaceholderTurn())
			tr.ReplaceLast(domain.NewTextTurn(domain.RoleAssistant, "reply"))
		}()
	}
	wg.Wait()

	if tr.Len() != writers+1 {
		t.Fatalf("expected %d turns, got %d", writers+1, tr.Len())
	}
	if len(replaced) != writers {
		t.Fatalf("expected %d replacements, got %d", writers, len(replaced))
	}
	for _, idx := range replaced {
		if idx < 1 || idx > writers {
			t.Fatalf("replacement landed on index %d", idx)
		}
	}
	if first, _ := tr.At(0); first.Role != domain.RoleSystem {
		t.Fatalf("persona turn was overwritten: %+v", first)
	}
}

func TestTranscriptReplaceLastAfterDiscard(t *testing.T) {
	tr := NewTranscript(domain.NewTextTurn(domain.RoleUser, "a"))
	tr.Discard()
	tr.ReplaceLast(domain.NewTextTurn(domain.RoleAssistant, "b"))

	if got, _ := tr.At(0); got.Content.Text() != "a" {
		t.Fatalf("discarded transcript changed: %+v", got)
	}
}
