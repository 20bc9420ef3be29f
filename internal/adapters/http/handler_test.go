package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/PabloGalante/anima-agent/internal/adapters/http"
	"github.com/PabloGalante/anima-agent/internal/adapters/identity/dev"
	"github.com/PabloGalante/anima-agent/internal/adapters/llm"
	objmem "github.com/PabloGalante/anima-agent/internal/adapters/objectstore/memory"
	"github.com/PabloGalante/anima-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/anima-agent/internal/app/account"
	"github.com/PabloGalante/anima-agent/internal/app/catalog"
	"github.com/PabloGalante/anima-agent/internal/app/conversation"
	"github.com/PabloGalante/anima-agent/internal/app/history"
	"github.com/PabloGalante/anima-agent/internal/app/upload"
)

const token = "ana@example.com"

type testEnv struct {
	handler http.Handler
	chats   *memory.ChatStore
	objects *objmem.Store
}

func newTestServer(t *testing.T) testEnv {
	t.Helper()

	presets, err := catalog.DefaultPresets()
	if err != nil {
		t.Fatalf("presets: %v", err)
	}

	agents := memory.NewAgentStore()
	chats := memory.NewChatStore()
	users := memory.NewUserStore()
	objects := objmem.NewStore("https://cdn.test")

	view := conversation.DefaultViewOptions()
	notifier := httpadapter.NewNotifier(view)
	uploader := upload.New(objects, upload.WithCacheDir(t.TempDir()))

	catalogSvc := catalog.NewService(presets, agents)
	convSvc := conversation.NewService(catalogSvc, llm.NewMockLLM(), uploader, chats, notifier)

	h := httpadapter.NewServer(httpadapter.Deps{
		Conversations: convSvc,
		Catalog:       catalogSvc,
		History:       history.NewService(chats),
		Accounts:      account.NewService(dev.New(), users, convSvc),
		Notifier:      notifier,
		Stager:        uploader,
		View:          view,
	})
	return testEnv{handler: h, chats: chats, objects: objects}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(context.Background())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

type chatBody struct {
	ID    string `json:"id"`
	Turns []struct {
		Index     int      `json:"index"`
		Role      string   `json:"role"`
		Text      string   `json:"text"`
		ImageURLs []string `json:"image_urls"`
	} `json:"turns"`
	Staged bool `json:"staged"`
}

func openChat(t *testing.T, e testEnv) chatBody {
	t.Helper()
	w := e.do(t, http.MethodPost, "/chats", map[string]string{"agent_id": "1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}
	return decode[chatBody](t, w)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	w := httptest.NewRecorder()

	srv.handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSignInAndMe(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/auth/session", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	out := decode[map[string]any](t, w)
	if out["new_user"] != true {
		t.Fatalf("expected new user, got %v", out)
	}

	w = srv.do(t, http.MethodGet, "/me", nil)
	me := decode[struct {
		Profile struct {
			Credits int `json:"credits"`
		} `json:"profile"`
	}](t, w)
	if me.Profile.Credits != 20 {
		t.Fatalf("expected 20 credits, got %d", me.Profile.Credits)
	}
}

func TestCreateAgentValidation(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/agents", map[string]string{"name": "Chef", "emoji": "🍝"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = srv.do(t, http.MethodPost, "/agents", map[string]string{"name": "Chef", "emoji": "🍝", "prompt": "cook"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}
	id := decode[map[string]string](t, w)["id"]

	w = srv.do(t, http.MethodGet, "/agents/mine", nil)
	mine := decode[[]map[string]any](t, w)
	if len(mine) != 1 || mine[0]["id"] != id {
		t.Fatalf("unexpected agents %v", mine)
	}

	w = srv.do(t, http.MethodPost, "/chats", map[string]string{"agent_id": id})
	if w.Code != http.StatusCreated {
		t.Fatalf("user agent should open a chat, got %d", w.Code)
	}
}

func TestListPresetsFeatured(t *testing.T) {
	srv := newTestServer(t)

	all := decode[[]map[string]any](t, srv.do(t, http.MethodGet, "/agents", nil))
	featured := decode[[]map[string]any](t, srv.do(t, http.MethodGet, "/agents?featured=true", nil))
	if len(featured) == 0 || len(featured) >= len(all) {
		t.Fatalf("unexpected featured split %d/%d", len(featured), len(all))
	}

	if w := srv.do(t, http.MethodGet, "/agents?featured=maybe", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestChatSendAndHistory(t *testing.T) {
	srv := newTestServer(t)
	chat := openChat(t, srv)
	if len(chat.Turns) != 0 {
		t.Fatalf("system persona must not be rendered, got %+v", chat.Turns)
	}

	w := srv.do(t, http.MethodPost, "/chats/"+chat.ID+"/messages", map[string]string{"text": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty input, got %d", w.Code)
	}

	w = srv.do(t, http.MethodPost, "/chats/"+chat.ID+"/messages", map[string]string{"text": "best pizza dough?"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	sent := decode[map[string]any](t, w)
	if sent["state"] != "resolved" || sent["reply_index"] != float64(2) {
		t.Fatalf("unexpected send response %v", sent)
	}

	view := decode[chatBody](t, srv.do(t, http.MethodGet, "/chats/"+chat.ID, nil))
	if len(view.Turns) != 2 || view.Turns[0].Text != "best pizza dough?" || view.Turns[1].Role != "assistant" {
		t.Fatalf("unexpected view %+v", view.Turns)
	}

	items := decode[struct {
		Items []map[string]any `json:"items"`
	}](t, srv.do(t, http.MethodGet, "/history?q=DOUGH", nil)).Items
	if len(items) != 1 || items[0]["id"] != chat.ID {
		t.Fatalf("unexpected history %v", items)
	}

	if w := srv.do(t, http.MethodDelete, "/chats/"+chat.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/chats/"+chat.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", w.Code)
	}

	w = srv.do(t, http.MethodPost, "/history/"+chat.ID+"/resume", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on resume, got %d, body=%s", w.Code, w.Body.String())
	}
	resumed := decode[chatBody](t, w)
	if resumed.ID != chat.ID || len(resumed.Turns) != 2 {
		t.Fatalf("unexpected resumed chat %+v", resumed)
	}
}

func TestStageMultipartAttachment(t *testing.T) {
	srv := newTestServer(t)
	chat := openChat(t, srv)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "cat.png")
	_, _ = fw.Write([]byte("png-bytes"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/chats/"+chat.ID+"/attachment", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d, body=%s", w.Code, w.Body.String())
	}

	w = srv.do(t, http.MethodPost, "/chats/"+chat.ID+"/messages", map[string]string{"text": "look at this"})
	sent := decode[struct {
		UserTurn struct {
			Content []map[string]any `json:"content"`
		} `json:"user_turn"`
	}](t, w)
	if len(sent.UserTurn.Content) != 2 || sent.UserTurn.Content[1]["type"] != "image_url" {
		t.Fatalf("expected text + image parts, got %v", sent.UserTurn.Content)
	}
	if srv.objects.Len() != 1 {
		t.Fatalf("expected one stored object, got %d", srv.objects.Len())
	}
}

func TestStageRejectsLocalPaths(t *testing.T) {
	srv := newTestServer(t)
	chat := openChat(t, srv)

	w := srv.do(t, http.MethodPost, "/chats/"+chat.ID+"/attachment", map[string]string{"ref": "/etc/passwd"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	data := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("tiny"))
	w = srv.do(t, http.MethodPost, "/chats/"+chat.ID+"/attachment", map[string]string{"ref": data})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	view := decode[chatBody](t, srv.do(t, http.MethodGet, "/chats/"+chat.ID, nil))
	if !view.Staged {
		t.Fatalf("expected staged attachment")
	}
}

func TestSignOutPersistsOpenChats(t *testing.T) {
	srv := newTestServer(t)
	chat := openChat(t, srv)
	srv.do(t, http.MethodPost, "/chats/"+chat.ID+"/messages", map[string]string{"text": "hello"})

	w := srv.do(t, http.MethodDelete, "/auth/session", nil)
	if w.Code != http.StatusOK || decode[map[string]int](t, w)["closed"] != 1 {
		t.Fatalf("unexpected sign-out response %d %s", w.Code, w.Body.String())
	}
	if srv.chats.Len() != 1 {
		t.Fatalf("expected persisted record")
	}
	if w := srv.do(t, http.MethodGet, "/chats/"+chat.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestOtherUserCannotSeeChat(t *testing.T) {
	srv := newTestServer(t)
	chat := openChat(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/chats/"+chat.ID, nil)
	req.Header.Set("Authorization", "Bearer bob@example.com")
	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
