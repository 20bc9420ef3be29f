package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/PabloGalante/anima-agent/internal/domain"
	"github.com/PabloGalante/anima-agent/internal/observability"
)

// Uploader turns a staged local reference into a public URL. ok=false means
// "send text only"; notify receives user-visible notices. Release drops a
// staged reference that will never be uploaded.
type Uploader interface {
	Upload(ctx context.Context, ref string, notify func(string)) (url string, ok bool)
	Release(ref string)
}

// EventKind classifies what a Notifier receives.
type EventKind string

const (
	EventTurn   EventKind = "turn"
	EventNotice EventKind = "notice"
	EventClosed EventKind = "closed"
)

// Event is pushed to clients watching a conversation.
type Event struct {
	ChatID   domain.ChatID
	Kind     EventKind
	Change   *Change
	Notice   string
	ScrollTo int
}

// Notifier fans conversation events out to clients.
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, Event) {}

// State is a step of one Send invocation.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateUploading
	StateAppendedUser
	StateAppendedPlaceholder
	StateAwaitingResponse
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateUploading:
		return "uploading"
	case StateAppendedUser:
		return "appended_user"
	case StateAppendedPlaceholder:
		return "appended_placeholder"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome describes what one Send did.
type Outcome struct {
	State      State
	UserIndex  int
	ReplyIndex int
	UserTurn   domain.Turn
	Reply      domain.Turn
	Notices    []string
	// Discarded is set when the conversation closed while the reply was in flight.
	Discarded bool
}

// Conversation is one open chat: the server-side equivalent of a chat screen.
// It owns its transcript exclusively.
type Conversation struct {
	id    domain.ChatID
	owner domain.Identity
	agent domain.Agent

	transcript *Transcript

	model    domain.ChatModel
	uploader Uploader
	chats    domain.ChatStore
	notifier Notifier
	now      func() time.Time

	mu          sync.Mutex
	staged      string
	typingSince time.Time
	lastActive  time.Time
	inFlight    int

	persistMu sync.Mutex
}

func (c *Conversation) ID() domain.ChatID      { return c.id }
func (c *Conversation) Owner() domain.Identity { return c.owner }
func (c *Conversation) Agent() domain.Agent    { return c.agent }

// Transcript exposes the turn list, mainly for rendering.
func (c *Conversation) Transcript() *Transcript { return c.transcript }

// Stage puts ref into the single attachment slot, replacing any previous one.
func (c *Conversation) Stage(ref string) {
	if c.transcript.Discarded() {
		c.release(ref)
		return
	}
	c.mu.Lock()
	prev := c.staged
	c.staged = ref
	c.lastActive = c.now()
	c.mu.Unlock()

	if prev != "" && prev != ref {
		c.release(prev)
	}
}

func (c *Conversation) release(ref string) {
	if c.uploader != nil {
		c.uploader.Release(ref)
	}
}

// idleSince reports when the conversation was last used. busy is true while a
// send is running.
func (c *Conversation) idleSince() (since time.Time, busy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive, c.inFlight > 0
}

func (c *Conversation) begin() {
	c.mu.Lock()
	c.inFlight++
	c.lastActive = c.now()
	c.mu.Unlock()
}

func (c *Conversation) end() {
	c.mu.Lock()
	c.inFlight--
	c.lastActive = c.now()
	c.mu.Unlock()
}

// Staged returns the staged reference, if any.
func (c *Conversation) Staged() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staged, c.staged != ""
}

func (c *Conversation) takeStaged() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref := c.staged
	c.staged = ""
	return ref
}

// View renders the transcript for display.
func (c *Conversation) View(opts ViewOptions) []RenderedTurn {
	c.mu.Lock()
	since := c.typingSince
	now := c.now()
	c.lastActive = now
	c.mu.Unlock()

	ind := TypingIndicator{Since: since, Dots: opts.TypingDots, Interval: opts.TypingInterval}
	return Render(c.transcript.Snapshot(), opts, ind, now)
}

// Send runs the send pipeline for input. Only validation and a closed
// conversation produce an error; upload and completion failures are absorbed
// into the outcome.
func (c *Conversation) Send(ctx context.Context, input string) (Outcome, error) {
	log := observability.LoggerFromContext(ctx).With(
		"chat_id", c.id,
		"agent_id", c.agent.ID,
	)
	out := Outcome{State: StateValidating, UserIndex: -1, ReplyIndex: -1}

	text := strings.TrimSpace(input)
	if text == "" {
		out.State = StateIdle
		return out, domain.ErrEmptyInput
	}
	if c.transcript.Discarded() {
		out.State = StateIdle
		return out, domain.ErrClosed
	}

	c.begin()
	defer c.end()

	notify := func(msg string) {
		out.Notices = append(out.Notices, msg)
		c.notifier.Publish(ctx, Event{ChatID: c.id, Kind: EventNotice, Notice: msg, ScrollTo: -1})
	}

	userTurn := domain.NewTextTurn(domain.RoleUser, text)
	if ref := c.takeStaged(); ref != "" && c.uploader != nil {
		out.State = StateUploading
		start := time.Now()
		url, ok := c.uploader.Upload(ctx, ref, notify)
		log.Info("attachment upload finished", "ok", ok, "elapsed_ms", time.Since(start).Milliseconds())
		if ok {
			userTurn = domain.Turn{
				Role:    domain.RoleUser,
				Content: domain.PartsContent(domain.TextPart(text), domain.ImagePart(url)),
			}
		}
	}
	out.UserTurn = userTurn

	userIdx, err := c.transcript.Append(userTurn)
	if err != nil {
		log.Error("failed to append user turn", "error", err)
		out.State = StateIdle
		return out, err
	}
	if userIdx < 0 {
		out.State = StateIdle
		return out, domain.ErrClosed
	}
	out.UserIndex = userIdx
	out.State = StateAppendedUser

	c.mu.Lock()
	c.typingSince = c.now()
	c.mu.Unlock()

	placeholderIdx, _ := c.transcript.Append(domain.PlaceholderTurn())
	if placeholderIdx < 0 {
		out.Discarded = true
		return out, nil
	}
	out.ReplyIndex = placeholderIdx
	out.State = StateAppendedPlaceholder

	history := c.transcript.contextFor(userIdx)
	out.State = StateAwaitingResponse
	log.Info("awaiting completion", "turns", len(history))

	start := time.Now()
	reply, err := c.model.Complete(context.WithoutCancel(ctx), history)
	elapsed := time.Since(start).Milliseconds()

	if err == nil && strings.TrimSpace(reply) != "" {
		out.Reply = domain.NewTextTurn(domain.RoleAssistant, reply)
		out.State = StateResolved
		log.Info("completion resolved", "elapsed_ms", elapsed)
	} else {
		if err == nil {
			err = errEmptyReply
		}
		out.Reply = domain.NewTextTurn(domain.RoleAssistant, domain.ApologyText)
		out.State = StateFailed
		log.Error("completion failed", "error", err, "elapsed_ms", elapsed)
	}

	if !c.transcript.ReplaceAt(placeholderIdx, out.Reply) {
		log.Info("conversation closed before completion settled")
		out.Discarded = true
		return out, nil
	}

	c.persist(ctx)
	return out, nil
}

// Close persists the transcript and discards it. Sends still in flight become
// no-ops against the discarded transcript.
func (c *Conversation) Close(ctx context.Context) {
	c.persistMu.Lock()
	if c.transcript.Discarded() {
		c.persistMu.Unlock()
		return
	}
	turns := c.transcript.Snapshot()
	c.transcript.Discard()
	c.save(ctx, turns)
	c.persistMu.Unlock()

	if ref := c.takeStaged(); ref != "" {
		c.release(ref)
	}
	c.notifier.Publish(ctx, Event{ChatID: c.id, Kind: EventClosed, ScrollTo: -1})
}

func (c *Conversation) persist(ctx context.Context) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	if c.transcript.Discarded() {
		return
	}
	c.save(ctx, c.transcript.Snapshot())
}

// save writes turns as the conversation's history record. Failures are logged only.
func (c *Conversation) save(ctx context.Context, turns []domain.Turn) {
	if c.chats == nil || c.owner.EmailAddress == "" {
		return
	}
	turns = persistable(turns)
	if !hasUserTurn(turns) {
		return
	}

	rec := &domain.HistoryRecord{
		ID:           c.id,
		AgentID:      c.agent.ID,
		AgentName:    c.agent.Name,
		AgentPrompt:  c.agent.PersonaPrompt,
		Emoji:        c.agent.Emoji,
		Messages:     turns,
		LastModified: c.now().UnixMilli(),
		UserEmail:    c.owner.EmailAddress,
	}
	if err := c.chats.SaveChat(context.WithoutCancel(ctx), rec); err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to persist transcript",
			"chat_id", c.id,
			"error", err)
	}
}

func hasUserTurn(turns []domain.Turn) bool {
	for _, t := range turns {
		if t.Role == domain.RoleUser {
			return true
		}
	}
	return false
}

var errEmptyReply = errors.New("completion returned empty text")
