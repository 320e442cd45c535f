package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/schardosin/bpmnbot/pkg/chatbot"
	"github.com/schardosin/bpmnbot/pkg/config"
	"github.com/schardosin/bpmnbot/pkg/provider"
	"github.com/schardosin/bpmnbot/pkg/session"
	"github.com/schardosin/bpmnbot/pkg/transcript"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const testDiagram = `<?xml version="1.0" encoding="UTF-8"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI" xmlns:dc="http://www.omg.org/spec/DD/20100524/DC" xmlns:di="http://www.omg.org/spec/DD/20100524/DI" id="d1">
  <process id="p1">
    <startEvent id="start"/>
    <task id="t1" name="Review"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="t1"/>
  </process>
  <bpmndi:BPMNDiagram id="dia">
    <bpmndi:BPMNPlane id="plane" bpmnElement="p1">
      <bpmndi:BPMNShape id="s_start" bpmnElement="start"><dc:Bounds x="100" y="100" width="36" height="36"/></bpmndi:BPMNShape>
      <bpmndi:BPMNShape id="s_t1" bpmnElement="t1"><dc:Bounds x="200" y="80" width="100" height="80"/></bpmndi:BPMNShape>
      <bpmndi:BPMNEdge id="e_f1" bpmnElement="f1"><di:waypoint x="136" y="118"/><di:waypoint x="200" y="118"/></bpmndi:BPMNEdge>
    </bpmndi:BPMNPlane>
  </bpmndi:BPMNDiagram>
</definitions>`

// fakeLLM answers chat turns with a fixed question and generation requests
// with testDiagram. When hold is set, calls block until their context ends.
type fakeLLM struct {
	mu    sync.Mutex
	calls int

	hold      chan struct{}
	cancelled chan struct{}
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		f.mu.Lock()
		f.calls++
		f.mu.Unlock()

		if f.hold != nil {
			f.hold <- struct{}{}
			<-ctx.Done()
			close(f.cancelled)
			yield(nil, ctx.Err())
			return
		}

		text := "Who approves the request?"
		if req.Config != nil && req.Config.SystemInstruction == nil {
			text = testDiagram
		}
		if stream {
			for _, word := range strings.SplitAfter(text, " ") {
				if !yield(&model.LLMResponse{Content: genai.NewContentFromText(word, genai.RoleModel), Partial: true}, nil) {
					return
				}
			}
			return
		}
		yield(&model.LLMResponse{Content: genai.NewContentFromText(text, genai.RoleModel), TurnComplete: true}, nil)
	}
}

type testEnv struct {
	server *Server
	router *mux.Router
	llm    *fakeLLM
	outDir string
}

func testSetup(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("COHERE_API_KEY", "")
	config.SetConfigDir(t.TempDir())
	t.Cleanup(func() { config.SetConfigDir("") })

	outDir := t.TempDir()
	cfg := &config.AppConfig{Output: config.OutputConfig{Dir: outDir}}
	cfg.ApplyDefaults()
	cfg.General.Language = "en"
	cfg.Studio.RatePerMinute = 0

	llm := &fakeLLM{}
	bot := chatbot.New(cfg, chatbot.WithProviderFunc(func(ctx context.Context, name, modelName string, c *config.AppConfig, opts provider.Options) (model.LLM, error) {
		if opts.APIKey == "" {
			return nil, provider.ErrNoAPIKey
		}
		return llm, nil
	}))

	server := NewServer(bot, session.NewMemoryStore(), nil, nil, nil)
	router := mux.NewRouter()
	server.RegisterRoutes(router)
	return &testEnv{server: server, router: router, llm: llm, outDir: outDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) createSession(t *testing.T) SessionResponse {
	t.Helper()
	rr := e.do(t, "POST", "/api/sessions", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create session: got %d: %s", rr.Code, rr.Body.String())
	}
	var resp SessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestCreateAndGetSession(t *testing.T) {
	env := testSetup(t)
	created := env.createSession(t)

	if created.Language != "en" {
		t.Errorf("expected language en, got %q", created.Language)
	}
	if len(created.Messages) != 3 {
		t.Errorf("expected three greeting messages, got %d", len(created.Messages))
	}
	if !created.NeedsKey || created.HasKey {
		t.Errorf("a fresh session without env key must need a key: %+v", created)
	}

	rr := env.do(t, "GET", "/api/sessions/"+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get session: got %d", rr.Code)
	}

	rr = env.do(t, "GET", "/api/sessions", nil)
	var list SessionListResponse
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list.Sessions) != 1 || list.Sessions[0].ID != created.ID {
		t.Errorf("unexpected session list: %+v", list.Sessions)
	}

	rr = env.do(t, "GET", "/api/sessions/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", rr.Code)
	}
}

func TestCreateSessionWithLanguage(t *testing.T) {
	env := testSetup(t)
	rr := env.do(t, "POST", "/api/sessions", map[string]string{"language": "ES"})
	var resp SessionResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Language != "es" {
		t.Errorf("expected es, got %q", resp.Language)
	}
}

func TestCreateSessionUsesConfiguredKeyword(t *testing.T) {
	env := testSetup(t)
	cfg := *env.server.bot.Config()
	cfg.Chat.Keyword = "done"
	env.server.bot.SetConfig(&cfg)

	sess := env.createSession(t)
	if !strings.Contains(sess.Messages[2].Text, "type DONE in the chat") {
		t.Errorf("greeting must name the keyword, got %q", sess.Messages[2].Text)
	}
	if sess.KeyNotice != "Don't forget to add your API KEY" {
		t.Errorf("key notice must follow the session language, got %q", sess.KeyNotice)
	}
}

func TestMessageWithoutKey(t *testing.T) {
	env := testSetup(t)
	sess := env.createSession(t)

	rr := env.do(t, "POST", "/api/sessions/"+sess.ID+"/messages", MessageRequest{Message: "hello"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var resp TurnResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Notice != "Don't forget to add your API KEY" {
		t.Errorf("unexpected notice %q", resp.Notice)
	}
	if len(resp.Messages) != 0 {
		t.Errorf("nothing must be appended, got %d messages", len(resp.Messages))
	}
	if env.llm.calls != 0 {
		t.Errorf("model must not be called without a key")
	}
}

func TestConversationToDiagram(t *testing.T) {
	env := testSetup(t)
	sess := env.createSession(t)
	base := "/api/sessions/" + sess.ID

	rr := env.do(t, "PUT", base+"/key", map[string]string{"api_key": "secret"})
	if rr.Code != http.StatusOK {
		t.Fatalf("set key: got %d", rr.Code)
	}

	rr = env.do(t, "POST", base+"/messages", MessageRequest{Message: "A customer sends a request"})
	if rr.Code != http.StatusOK {
		t.Fatalf("chat turn: got %d: %s", rr.Code, rr.Body.String())
	}
	var chat TurnResponse
	json.NewDecoder(rr.Body).Decode(&chat)
	if chat.Kind != "chat" || len(chat.Messages) != 2 {
		t.Fatalf("unexpected chat reply: %+v", chat)
	}

	rr = env.do(t, "GET", base+"/bpmn", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 before generation, got %d", rr.Code)
	}

	rr = env.do(t, "POST", base+"/messages", MessageRequest{Message: " TERMINAR "})
	if rr.Code != http.StatusOK {
		t.Fatalf("generate turn: got %d: %s", rr.Code, rr.Body.String())
	}
	var gen TurnResponse
	json.NewDecoder(rr.Body).Decode(&gen)
	if gen.Kind != "generate" || gen.Result == nil {
		t.Fatalf("expected a diagram, got %+v", gen)
	}
	if gen.Result.FileName != "bpmn_output.xml" {
		t.Errorf("unexpected file name %q", gen.Result.FileName)
	}
	if gen.Result.ViewerURL != base+"/viewer" {
		t.Errorf("unexpected viewer url %q", gen.Result.ViewerURL)
	}

	rr = env.do(t, "GET", base+"/bpmn", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != gen.Result.XML {
		t.Errorf("download must return the stored XML, got %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "bpmn_output.xml") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}

	rr = env.do(t, "GET", base+"/viewer", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "bpmn-viewer.development.js") {
		t.Errorf("viewer page not rendered: %d", rr.Code)
	}

	rr = env.do(t, "GET", base+"/transcript?format=md&download=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("transcript: got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "A customer sends a request") {
		t.Errorf("transcript misses the user message")
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Errorf("expected attachment, got %q", cd)
	}

	rr = env.do(t, "GET", base, nil)
	var stored SessionResponse
	json.NewDecoder(rr.Body).Decode(&stored)
	if stored.Result == nil || !stored.HasKey {
		t.Errorf("session must keep the result and the key: %+v", stored)
	}
	if stored.Title != "A customer sends a request" {
		t.Errorf("unexpected title %q", stored.Title)
	}
}

func TestTerminationWithoutContext(t *testing.T) {
	env := testSetup(t)
	sess := env.createSession(t)

	rr := env.do(t, "POST", "/api/sessions/"+sess.ID+"/messages", MessageRequest{Message: "terminar", APIKey: "secret"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestTranscriptBadFormat(t *testing.T) {
	env := testSetup(t)
	sess := env.createSession(t)
	rr := env.do(t, "GET", "/api/sessions/"+sess.ID+"/transcript?format=docx", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestTranscriptDownloadShortID(t *testing.T) {
	env := testSetup(t)
	sess := session.New("en", "")
	sess.ID = "tg-5"
	if err := env.server.store.Create(context.Background(), sess); err != nil {
		t.Fatal(err)
	}

	rr := env.do(t, "GET", "/api/sessions/tg-5/transcript?format=md&download=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="transcript_tg5.md"` {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestTranscriptFileName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"3f2b9c1e-8d7a-4e5f-9a0b-1c2d3e4f5a6b", "transcript_3f2b9c1e.md"},
		{"tg-5", "transcript_tg5.md"},
		{"console", "transcript_console.md"},
		{"--", "transcript_session.md"},
	}
	for _, tt := range tests {
		if got := transcriptFileName(tt.id, transcript.FormatMarkdown); got != tt.want {
			t.Errorf("transcriptFileName(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	env := testSetup(t)
	sess := env.createSession(t)
	env.server.Keys().Set(sess.ID, "secret")

	rr := env.do(t, "DELETE", "/api/sessions/"+sess.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: got %d", rr.Code)
	}
	if env.server.Keys().Has(sess.ID) {
		t.Errorf("key must be forgotten with the session")
	}
	rr = env.do(t, "DELETE", "/api/sessions/"+sess.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rr.Code)
	}
}

func TestForgetWaitsForTurnInFlight(t *testing.T) {
	env := testSetup(t)
	ctx := context.Background()
	sess := session.New("en", "")
	if err := env.server.store.Create(ctx, sess); err != nil {
		t.Fatal(err)
	}

	// a turn holds the session while cleanup deletes it
	unlock := env.server.lock(sess.ID)
	if err := env.server.store.Delete(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		env.server.Forget([]string{sess.ID})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Forget returned while the turn still held the session")
	case <-time.After(50 * time.Millisecond):
	}

	// the turn finishes and saves what it appended
	if err := env.server.store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}
	unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Forget did not return after the turn finished")
	}
	if _, err := env.server.store.Get(ctx, sess.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expired session came back: err = %v", err)
	}
}

func TestImportTextFile(t *testing.T) {
	env := testSetup(t)
	sess := env.createSession(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "process.txt")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("Orders are checked by the warehouse."))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/sessions/"+sess.ID+"/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("import: got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ImportResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Source != "process.txt" || resp.Chars == 0 {
		t.Errorf("unexpected import response: %+v", resp)
	}
	if !strings.Contains(resp.Message.Text, "warehouse") {
		t.Errorf("document text must be added to the conversation")
	}
}

func TestImportRequiresURL(t *testing.T) {
	env := testSetup(t)
	sess := env.createSession(t)
	rr := env.do(t, "POST", "/api/sessions/"+sess.ID+"/import", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestWebSocketStreamsChunks(t *testing.T) {
	env := testSetup(t)
	sess := env.createSession(t)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + sess.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(MessageRequest{Message: "Orders arrive by mail", APIKey: "secret"}); err != nil {
		t.Fatal(err)
	}

	var chunks []string
	for {
		var frame struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			Kind     string `json:"kind"`
			Messages []struct {
				Text string `json:"message"`
			} `json:"messages"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read: %v", err)
		}
		if frame.Type == "chunk" {
			chunks = append(chunks, frame.Text)
			continue
		}
		if frame.Type != "reply" {
			t.Fatalf("unexpected frame type %q", frame.Type)
		}
		if strings.Join(chunks, "") != "Who approves the request?" {
			t.Errorf("unexpected chunks %q", chunks)
		}
		if len(frame.Messages) != 2 || frame.Messages[1].Text != "Who approves the request?" {
			t.Errorf("unexpected reply messages %+v", frame.Messages)
		}
		break
	}
}

func TestWebSocketDisconnectCancelsTurn(t *testing.T) {
	env := testSetup(t)
	env.llm.hold = make(chan struct{}, 1)
	env.llm.cancelled = make(chan struct{})
	sess := env.createSession(t)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + sess.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.WriteJSON(MessageRequest{Message: "Orders arrive by mail", APIKey: "secret"}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-env.llm.hold:
	case <-time.After(2 * time.Second):
		t.Fatal("turn never reached the model")
	}
	conn.Close()

	select {
	case <-env.llm.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("model call was not cancelled after the client disconnected")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	env := testSetup(t)
	t.Setenv("OPENAI_API_KEY", "")

	update := UpdateAppSettingsRequest{
		General: &GeneralSettings{DefaultProvider: "openai", DefaultModel: "gpt-4o", Keyword: "FIN"},
		Providers: map[string]map[string]string{
			"openai": {"api_key": "sk-test-1234"},
		},
	}
	rr := env.do(t, "PUT", "/api/settings", update)
	if rr.Code != http.StatusOK {
		t.Fatalf("update settings: got %d: %s", rr.Code, rr.Body.String())
	}
	if got := env.server.bot.Config().Chat.Keyword; got != "fin" {
		t.Errorf("running bot must see the new keyword, got %q", got)
	}

	rr = env.do(t, "GET", "/api/settings", nil)
	var resp AppSettingsResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.General.DefaultProvider != "openai" || resp.General.DefaultProviderDisplayName != "OpenAI" {
		t.Errorf("unexpected general settings %+v", resp.General)
	}
	for _, p := range resp.Providers {
		if p.Name != "openai" {
			continue
		}
		if !p.Configured || p.Fields["api_key"] != "****1234" {
			t.Errorf("openai key must be masked, got %+v", p)
		}
	}

	// masked values are not written back
	update.Providers["openai"]["api_key"] = "****1234"
	env.do(t, "PUT", "/api/settings", update)
	cfg, _ := config.LoadAppConfig()
	if cfg.Providers["openai"]["api_key"] != "sk-test-1234" {
		t.Errorf("masked value overwrote the key: %q", cfg.Providers["openai"]["api_key"])
	}
}

func TestSettingsUnknownProvider(t *testing.T) {
	env := testSetup(t)
	rr := env.do(t, "PUT", "/api/settings", UpdateAppSettingsRequest{General: &GeneralSettings{DefaultProvider: "nope"}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestListModelsWithoutKey(t *testing.T) {
	env := testSetup(t)
	t.Setenv("ANTHROPIC_API_KEY", "")
	rr := env.do(t, "GET", "/api/providers/anthropic/models", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := testSetup(t)
	if rr := env.do(t, "GET", "/healthz", nil); rr.Code != http.StatusOK {
		t.Errorf("healthz: got %d", rr.Code)
	}
	env.createSession(t)
	rr := env.do(t, "GET", "/metrics", nil)
	if !strings.Contains(rr.Body.String(), "bpmnbot_http_requests_total") {
		t.Errorf("metrics must expose HTTP counters")
	}
}

func TestTurnStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{chatbot.ErrEmptyInput, http.StatusBadRequest},
		{chatbot.ErrMissingAPIKey, http.StatusUnauthorized},
		{chatbot.ErrEmptyContext, http.StatusUnprocessableEntity},
		{chatbot.ErrRateLimited, http.StatusTooManyRequests},
		{session.ErrNotFound, http.StatusNotFound},
		{context.Canceled, 499},
		{context.DeadlineExceeded, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := turnStatus(tt.err); got != tt.want {
			t.Errorf("turnStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
