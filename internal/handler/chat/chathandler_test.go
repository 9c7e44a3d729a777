package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lifeos/lifeosd/internal/ai"
	"github.com/lifeos/lifeosd/internal/config"
	"github.com/lifeos/lifeosd/internal/httputil"
	"github.com/lifeos/lifeosd/internal/logging"
	"github.com/lifeos/lifeosd/internal/server"
	"github.com/lifeos/lifeosd/internal/svc"
	"github.com/lifeos/lifeosd/internal/types"
)

const testPassword = "hunter2"

// fakeProvider answers every dispatch with one fixed text turn, or fails to
// open a stream when openErr is set.
type fakeProvider struct {
	id      string
	text    string
	openErr error
	calls   int
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) Stream(ctx context.Context, req *ai.ChatRequest) (<-chan ai.StreamEvent, error) {
	p.calls++
	if p.openErr != nil {
		return nil, p.openErr
	}
	ch := make(chan ai.StreamEvent, 2)
	ch <- ai.StreamEvent{Type: ai.EventTypeText, Text: p.text}
	ch <- ai.StreamEvent{Type: ai.EventTypeDone, StopReason: "end_turn"}
	close(ch)
	return ch, nil
}

// newTestEnv stands up a full service context against a temp database and a
// routing config whose FREE chain is just the fake provider.
func newTestEnv(t *testing.T, provider ai.Provider) (*svc.ServiceContext, http.Handler) {
	t.Helper()
	logging.Disable()
	t.Cleanup(logging.Enable)

	dir := t.TempDir()
	routingPath := filepath.Join(dir, "routing.yaml")
	routing := "default_tier: FREE\nchains:\n  FREE: [\"test/model\", \"ollama/unreachable\"]\n" +
		"credentials:\n  ollama:\n    base_url: http://127.0.0.1:1\n"
	require.NoError(t, os.WriteFile(routingPath, []byte(routing), 0644))

	cfgYAML := fmt.Sprintf(`
auth:
  password: %s
  access_secret: test-secret
database:
  sqlite_path: %s
routing:
  config_path: %s
agents:
  dir: %s
`, testPassword, filepath.Join(dir, "lifeos.db"), routingPath, filepath.Join(dir, "agents"))

	c, err := config.LoadFromBytes([]byte(cfgYAML))
	require.NoError(t, err)

	svcCtx, err := svc.NewServiceContext(c)
	require.NoError(t, err)
	t.Cleanup(svcCtx.Close)

	svcCtx.Dispatcher.Register(provider)
	return svcCtx, server.Router(svcCtx, true)
}

func postChat(router http.Handler, req types.ChatRequest, authed bool) *httptest.ResponseRecorder {
	body, _ := json.Marshal(req)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if authed {
		r.Header.Set("X-Api-Password", testPassword)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestChatRequiresAuth(t *testing.T) {
	_, router := newTestEnv(t, &fakeProvider{id: "test", text: "hi"})

	w := postChat(router, types.ChatRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: "hello"}},
	}, false)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatRejectsEmptyMessages(t *testing.T) {
	_, router := newTestEnv(t, &fakeProvider{id: "test", text: "hi"})

	w := postChat(router, types.ChatRequest{SessionId: "s1"}, true)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var errResp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	require.Contains(t, errResp.Message, "messages")
}

func TestChatRejectsInvalidRole(t *testing.T) {
	_, router := newTestEnv(t, &fakeProvider{id: "test", text: "hi"})

	w := postChat(router, types.ChatRequest{
		Messages: []types.ChatMessage{{Role: "system", Content: "hello"}},
	}, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatTurnPersistsConversation(t *testing.T) {
	svcCtx, router := newTestEnv(t, &fakeProvider{id: "test", text: "hello back"})

	w := postChat(router, types.ChatRequest{
		SessionId: "sess-1",
		Messages:  []types.ChatMessage{{Role: "user", Content: "hello"}},
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "sess-1", resp.SessionId)
	require.Equal(t, "test/model", resp.ProviderUsed)
	require.Equal(t, "FREE", resp.Tier)
	require.Len(t, resp.ContentBlocks, 1)
	require.Equal(t, "hello back", resp.ContentBlocks[0].Text)

	// Persistence runs in the background after the response is written.
	require.Eventually(t, func() bool {
		records, err := svcCtx.Conversations.List(context.Background(), 10)
		return err == nil && len(records) == 1 && records[0].MessageCount == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestChatGeneratesSessionID(t *testing.T) {
	_, router := newTestEnv(t, &fakeProvider{id: "test", text: "hi"})

	w := postChat(router, types.ChatRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: "hello"}},
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionId)
}

func TestChatExhaustedChainPersistsNothing(t *testing.T) {
	svcCtx, router := newTestEnv(t, &fakeProvider{id: "test", openErr: fmt.Errorf("billing hard stop")})

	w := postChat(router, types.ChatRequest{
		SessionId: "sess-dead",
		Messages:  []types.ChatMessage{{Role: "user", Content: "hello"}},
	}, true)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	records, err := svcCtx.Conversations.List(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, records, "a turn with no response must not persist")
}

func TestChatStoreFailureIsInternalError(t *testing.T) {
	svcCtx, router := newTestEnv(t, &fakeProvider{id: "test", text: "hi"})

	// Loading the stored transcript fails once the database is gone; that is
	// a service fault, not a bad request.
	require.NoError(t, svcCtx.Store.Close())

	w := postChat(router, types.ChatRequest{
		SessionId: "sess-broken",
		Messages:  []types.ChatMessage{{Role: "user", Content: "hello"}},
	}, true)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestChatContinuesStoredSession(t *testing.T) {
	svcCtx, router := newTestEnv(t, &fakeProvider{id: "test", text: "again"})

	w := postChat(router, types.ChatRequest{
		SessionId: "sess-cont",
		Messages:  []types.ChatMessage{{Role: "user", Content: "first"}},
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		msgs, err := svcCtx.Conversations.Messages(context.Background(), "sess-cont", 0)
		return err == nil && len(msgs) == 2
	}, 2*time.Second, 20*time.Millisecond)

	// A single-user-message request continues the stored transcript.
	w = postChat(router, types.ChatRequest{
		SessionId: "sess-cont",
		Messages:  []types.ChatMessage{{Role: "user", Content: "second"}},
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		msgs, err := svcCtx.Conversations.Messages(context.Background(), "sess-cont", 0)
		return err == nil && len(msgs) == 4
	}, 2*time.Second, 20*time.Millisecond)
}
