package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tmaxmax/go-sse"

	"github.com/PabloGalante/anima-agent/internal/app/conversation"
	"github.com/PabloGalante/anima-agent/internal/domain"
	"github.com/PabloGalante/anima-agent/internal/observability"
)

// Notifier publishes conversation events as Server-Sent Events, one topic per
// chat.
type Notifier struct {
	srv  *sse.Server
	opts conversation.ViewOptions
}

func NewNotifier(opts conversation.ViewOptions) *Notifier {
	return &Notifier{
		srv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				id := chi.URLParam(s.Req, "id")
				if id == "" {
					return sse.Subscription{}, false
				}
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, chatTopic(domain.ChatID(id))},
				}, true
			},
		},
		opts: opts,
	}
}

func chatTopic(id domain.ChatID) string {
	return fmt.Sprintf("chat-%s", id)
}

type turnEvent struct {
	Change   conversation.ChangeKind   `json:"change"`
	Turn     conversation.RenderedTurn `json:"turn"`
	ScrollTo int                       `json:"scroll_to"`
}

type noticeEvent struct {
	Notice string `json:"notice"`
}

// Publish implements conversation.Notifier. Delivery is best effort.
func (n *Notifier) Publish(ctx context.Context, ev conversation.Event) {
	var payload any
	switch ev.Kind {
	case conversation.EventTurn:
		if ev.Change == nil {
			return
		}
		rows := conversation.Render([]domain.Turn{ev.Change.Turn}, n.opts,
			conversation.TypingIndicator{Since: time.Now()}, time.Now())
		if len(rows) == 0 {
			return
		}
		row := rows[0]
		row.Index = ev.Change.Index
		payload = turnEvent{Change: ev.Change.Kind, Turn: row, ScrollTo: ev.ScrollTo}
	case conversation.EventNotice:
		payload = noticeEvent{Notice: ev.Notice}
	case conversation.EventClosed:
		payload = map[string]string{"chat_id": string(ev.ChatID)}
	default:
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := sse.Message{Type: sse.Type(string(ev.Kind))}
	msg.AppendData(string(data))

	if err := n.srv.Publish(&msg, chatTopic(ev.ChatID)); err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to publish event",
			"chat_id", ev.ChatID,
			"kind", ev.Kind,
			"error", err)
	}
}

// Shutdown tells every client goodbye and closes their streams.
func (n *Notifier) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("shutdown")}
	e.AppendData("bye")
	_ = n.srv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return n.srv.Shutdown(ctx)
}
