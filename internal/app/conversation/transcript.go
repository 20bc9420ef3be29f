package conversation

import (
	"sync"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

// ChangeKind says what happened to a transcript index.
type ChangeKind string

const (
	ChangeAppend  ChangeKind = "append"
	ChangeReplace ChangeKind = "replace"
)

// Change is emitted after every mutation. Clients use it as the scroll cue.
type Change struct {
	Kind  ChangeKind
	Index int
	Turn  domain.Turn
}

// Transcript is the ordered, in-memory turn list of one conversation. It only
// grows or replaces in place. Once discarded every mutation is a no-op.
type Transcript struct {
	mu        sync.RWMutex
	turns     []domain.Turn
	discarded bool

	onChange func(Change)
}

// NewTranscript seeds a transcript with existing turns (e.g. a resumed chat).
func NewTranscript(seed ...domain.Turn) *Transcript {
	t := &Transcript{turns: make([]domain.Turn, 0, len(seed)+4)}
	t.turns = append(t.turns, seed...)
	return t
}

// OnChange registers the mutation hook. It runs outside the lock.
func (t *Transcript) OnChange(fn func(Change)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Append pushes turn and returns its index. Empty content is rejected. On a
// discarded transcript it returns -1 and no error.
func (t *Transcript) Append(turn domain.Turn) (int, error) {
	if turn.Content.IsEmpty() {
		return -1, domain.ErrEmptyTurn
	}

	t.mu.Lock()
	if t.discarded {
		t.mu.Unlock()
		return -1, nil
	}
	t.turns = append(t.turns, turn)
	idx := len(t.turns) - 1
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(Change{Kind: ChangeAppend, Index: idx, Turn: turn})
	}
	return idx, nil
}

// ReplaceLast replaces the final entry. It does nothing on an empty or
// discarded transcript.
func (t *Transcript) ReplaceLast(turn domain.Turn) {
	t.mu.Lock()
	if t.discarded || len(t.turns) == 0 {
		t.mu.Unlock()
		return
	}
	idx := len(t.turns) - 1
	t.turns[idx] = turn
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(Change{Kind: ChangeReplace, Index: idx, Turn: turn})
	}
}

// ReplaceAt replaces the entry at idx and reports whether it did.
func (t *Transcript) ReplaceAt(idx int, turn domain.Turn) bool {
	t.mu.Lock()
	if t.discarded || idx < 0 || idx >= len(t.turns) {
		t.mu.Unlock()
		return false
	}
	t.turns[idx] = turn
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(Change{Kind: ChangeReplace, Index: idx, Turn: turn})
	}
	return true
}

// Snapshot returns a copy of the current turns.
func (t *Transcript) Snapshot() []domain.Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// At returns the turn at idx.
func (t *Transcript) At(idx int) (domain.Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if idx < 0 || idx >= len(t.turns) {
		return domain.Turn{}, false
	}
	return t.turns[idx], true
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Discard detaches the transcript from its owner. Late completions become no-ops.
func (t *Transcript) Discard() {
	t.mu.Lock()
	t.discarded = true
	t.onChange = nil
	t.mu.Unlock()
}

func (t *Transcript) Discarded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.discarded
}

// contextFor returns the turns up to and including idx, without any sentinel.
// That is what the completion endpoint sees for the send that pushed idx.
func (t *Transcript) contextFor(idx int) []domain.Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if idx >= len(t.turns) {
		idx = len(t.turns) - 1
	}
	out := make([]domain.Turn, 0, idx+1)
	for i := 0; i <= idx; i++ {
		if t.turns[i].IsPlaceholder() {
			continue
		}
		out = append(out, t.turns[i])
	}
	return out
}

// persistable drops sentinels, which never belong in a stored record.
func persistable(turns []domain.Turn) []domain.Turn {
	out := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		if t.IsPlaceholder() {
			continue
		}
		out = append(out, t)
	}
	return out
}
