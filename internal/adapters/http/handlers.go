package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/PabloGalante/anima-agent/internal/app/account"
	"github.com/PabloGalante/anima-agent/internal/app/catalog"
	"github.com/PabloGalante/anima-agent/internal/app/conversation"
	"github.com/PabloGalante/anima-agent/internal/app/history"
	"github.com/PabloGalante/anima-agent/internal/domain"
	"github.com/PabloGalante/anima-agent/internal/observability"
)

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type signInRequest struct {
	Token string `json:"token"`
}

type meResponse struct {
	Identity domain.Identity     `json:"identity"`
	Profile  *domain.UserProfile `json:"profile,omitempty"`
}

type createAgentRequest struct {
	Name   string `json:"name"`
	Emoji  string `json:"emoji"`
	Prompt string `json:"prompt"`
}

type openChatRequest struct {
	AgentID string `json:"agent_id"`
}

type chatResponse struct {
	ID     string                      `json:"id"`
	Agent  domain.Agent                `json:"agent"`
	Turns  []conversation.RenderedTurn `json:"turns"`
	Staged bool                        `json:"staged"`
}

type stageRequest struct {
	Ref string `json:"ref"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	State      string       `json:"state"`
	UserIndex  int          `json:"user_index"`
	ReplyIndex int          `json:"reply_index"`
	UserTurn   *domain.Turn `json:"user_turn,omitempty"`
	Reply      *domain.Turn `json:"reply,omitempty"`
	Notices    []string     `json:"notices"`
	Discarded  bool         `json:"discarded"`
}

type historyResponse struct {
	Items []history.Item `json:"items"`
}

// ─────────────────────────────────────────────
// Account
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		var req signInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		token = req.Token
	}

	out, err := s.accounts.SignIn(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	id, _ := account.CurrentUser(r.Context())
	n := s.accounts.SignOut(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]int{"closed": n})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := account.CurrentUser(r.Context())

	resp := meResponse{Identity: id}
	profile, err := s.accounts.Profile(r.Context(), id)
	switch {
	case err == nil:
		resp.Profile = profile
	case errors.Is(err, domain.ErrNotFound):
	default:
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─────────────────────────────────────────────
// Agents
// ─────────────────────────────────────────────

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	var featured *bool
	if v := r.URL.Query().Get("featured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "featured must be true or false")
			return
		}
		featured = &b
	}
	writeJSON(w, http.StatusOK, s.catalog.ListPresets(featured))
}

func (s *Server) handleListMine(w http.ResponseWriter, r *http.Request) {
	id, _ := account.CurrentUser(r.Context())
	agents, err := s.catalog.ListUserAgents(r.Context(), id.EmailAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if agents == nil {
		agents = []*domain.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	id, _ := account.CurrentUser(r.Context())
	agentID, err := s.catalog.CreateAgent(r.Context(), catalog.CreateAgentInput{
		Name:   req.Name,
		Emoji:  req.Emoji,
		Prompt: req.Prompt,
		Owner:  id.EmailAddress,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(agentID)})
}

// ─────────────────────────────────────────────
// Chats
// ─────────────────────────────────────────────

func (s *Server) handleOpenChat(w http.ResponseWriter, r *http.Request) {
	var req openChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.AgentID) == "" {
		badRequest(w, "agent_id is required")
		return
	}

	id, _ := account.CurrentUser(r.Context())
	c, err := s.conversations.Open(r.Context(), conversation.OpenInput{
		Owner:   id,
		AgentID: domain.AgentID(req.AgentID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.toChatResponse(c))
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chatFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.toChatResponse(c))
}

func (s *Server) handleCloseChat(w http.ResponseWriter, r *http.Request) {
	id, _ := account.CurrentUser(r.Context())
	if err := s.conversations.Close(r.Context(), domain.ChatID(chi.URLParam(r, "id")), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStage accepts a multipart "file" or a JSON {"ref"} naming a data: or
// http(s): reference. Local paths are never taken from clients.
func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chatFromPath(w, r)
	if !ok {
		return
	}

	var ref string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if s.stager == nil {
			badRequest(w, "file uploads are not enabled")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			badRequest(w, "file is required")
			return
		}
		defer file.Close()

		ref, err = s.stager.Stage(file, header.Filename)
		if err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		var req stageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		ref = strings.TrimSpace(req.Ref)
		if !isRemoteRef(ref) {
			badRequest(w, "ref must be a data:, http: or https: URI")
			return
		}
	}

	c.Stage(ref)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chatFromPath(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	out, err := c.Send(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSendResponse(out))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.chatFromPath(w, r); !ok {
		return
	}
	s.notifier.srv.ServeHTTP(w, r)
}

// ─────────────────────────────────────────────
// History
// ─────────────────────────────────────────────

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := account.CurrentUser(r.Context())
	items := s.history.List(r.Context(), id.EmailAddress, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, historyResponse{Items: items})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id, _ := account.CurrentUser(r.Context())
	c, err := s.conversations.Resume(r.Context(), id, domain.ChatID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toChatResponse(c))
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func (s *Server) chatFromPath(w http.ResponseWriter, r *http.Request) (*conversation.Conversation, bool) {
	id, _ := account.CurrentUser(r.Context())
	c, err := s.conversations.Get(domain.ChatID(chi.URLParam(r, "id")), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return c, true
}

func (s *Server) toChatResponse(c *conversation.Conversation) chatResponse {
	_, staged := c.Staged()
	return chatResponse{
		ID:     string(c.ID()),
		Agent:  c.Agent(),
		Turns:  c.View(s.view),
		Staged: staged,
	}
}

func toSendResponse(out conversation.Outcome) sendMessageResponse {
	resp := sendMessageResponse{
		State:      out.State.String(),
		UserIndex:  out.UserIndex,
		ReplyIndex: out.ReplyIndex,
		Notices:    out.Notices,
		Discarded:  out.Discarded,
	}
	if resp.Notices == nil {
		resp.Notices = []string{}
	}
	if out.UserIndex >= 0 {
		resp.UserTurn = &out.UserTurn
	}
	if out.State == conversation.StateResolved || out.State == conversation.StateFailed {
		resp.Reply = &out.Reply
	}
	return resp
}

func isRemoteRef(ref string) bool {
	for _, p := range []string{"data:", "http://", "https://"} {
		if strings.HasPrefix(ref, p) {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

// writeError maps domain sentinels to status codes. Anything else is a 500
// with a generic body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrMissingFields),
		errors.Is(err, domain.ErrEmptyTurn):
		badRequest(w, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrClosed):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		observability.LoggerFromContext(r.Context()).Error("request failed",
			"path", r.URL.Path,
			"error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}
