package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeCompletion records the last request and returns a canned response.
type fakeCompletion struct {
	mu    sync.Mutex
	reqs  []openai.ChatCompletionRequest
	reply string
	err   error
}

func (f *fakeCompletion) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.reply == "" {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply},
		}},
	}, nil
}

func (f *fakeCompletion) last() openai.ChatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

type fakeMailer struct {
	mu    sync.Mutex
	forms []ContactForm
	err   error
}

func (f *fakeMailer) Send(ctx context.Context, form ContactForm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forms = append(f.forms, form)
	return f.err
}

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func testChatConfig() ChatConfig {
	return ChatConfig{
		Model:         defaultChatModel,
		Temperature:   0.7,
		MaxTokens:     1024,
		TopP:          0.9,
		HistoryWindow: 6,
		Timeout:       5 * time.Second,
	}
}

func testDSN(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(context.Background(), testDSN(t))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

type testServerOptions struct {
	completion CompletionClient
	mailer     Mailer
}

func newTestServer(t *testing.T, opts testServerOptions) (*Server, *gin.Engine) {
	t.Helper()
	log := testLogger()

	content, err := NewContentStore("", log)
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	store := newTestStore(t)
	metrics := NewMetrics()

	cfg := &Config{
		Port:          "0",
		Chat:          testChatConfig(),
		Admin:         AdminConfig{Username: "admin", Password: "s3cret", Secret: "test-secret"},
		RetentionDays: 365,
	}

	srv := &Server{
		cfg:       cfg,
		log:       log,
		content:   content,
		assistant: newAssistantWithClient(opts.completion, cfg.Chat, content, metrics),
		mailer:    opts.mailer,
		store:     store,
		metrics:   metrics,
		admin:     NewAdminAuth(cfg.Admin, log),
		retention: NewRetentionScheduler(store, cfg.RetentionDays, "0 3 * * *", log),
	}
	router, err := srv.Router()
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return srv, router
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// testContext mirrors testing.T.Context (Go 1.24+): a context canceled
// when the test finishes.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
