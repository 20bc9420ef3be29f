package httpadapter

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PabloGalante/anima-agent/internal/app/account"
	"github.com/PabloGalante/anima-agent/internal/app/catalog"
	"github.com/PabloGalante/anima-agent/internal/app/conversation"
	"github.com/PabloGalante/anima-agent/internal/app/history"
)

// Stager writes an uploaded file into local staging and returns its reference.
type Stager interface {
	Stage(r io.Reader, filename string) (string, error)
}

type Deps struct {
	Conversations *conversation.Service
	Catalog       *catalog.Service
	History       *history.Service
	Accounts      *account.Service
	Notifier      *Notifier
	Stager        Stager
	View          conversation.ViewOptions
}

type Server struct {
	conversations *conversation.Service
	catalog       *catalog.Service
	history       *history.Service
	accounts      *account.Service
	notifier      *Notifier
	stager        Stager
	view          conversation.ViewOptions
}

func NewServer(d Deps) http.Handler {
	s := &Server{
		conversations: d.Conversations,
		catalog:       d.Catalog,
		history:       d.History,
		accounts:      d.Accounts,
		notifier:      d.Notifier,
		stager:        d.Stager,
		view:          d.View,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(withRequestID)
	r.Use(withLogging)
	r.Use(withCORS)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/auth/session", s.handleSignIn)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Delete("/auth/session", s.handleSignOut)
		r.Get("/me", s.handleMe)

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", s.handleListPresets)
			r.Post("/", s.handleCreateAgent)
			r.Get("/mine", s.handleListMine)
		})

		r.Route("/chats", func(r chi.Router) {
			r.Post("/", s.handleOpenChat)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetChat)
				r.Delete("/", s.handleCloseChat)
				r.Post("/attachment", s.handleStage)
				r.Post("/messages", s.handleSend)
				r.Get("/events", s.handleEvents)
			})
		})

		r.Get("/history", s.handleHistory)
		r.Post("/history/{id}/resume", s.handleResume)
	})

	return r
}
