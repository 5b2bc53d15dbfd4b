package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"nephro-assistant/internal/core"
	"nephro-assistant/internal/metrics"
	"nephro-assistant/internal/session"
	"nephro-assistant/pkg"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeEngine greets the session and echoes the message.
type fakeEngine struct {
	err      error
	delay    time.Duration
	allowWeb []bool

	mu        sync.Mutex
	active    int32
	maxActive int32
}

func (f *fakeEngine) HandleMessage(ctx context.Context, sess *core.Session, message string) (*core.Turn, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)

	f.mu.Lock()
	if n > f.maxActive {
		f.maxActive = n
	}
	f.allowWeb = append(f.allowWeb, sess.AllowWeb)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	sess.ConversationStage++
	sess.Greeted = true
	if f.err != nil {
		return nil, f.err
	}
	return &core.Turn{Reply: "echo: " + message, Agent: core.AgentReceptionist}, nil
}

func newTestServer(engine Responder) (*Server, *session.MemoryStore) {
	store := session.NewMemoryStore(true)
	return NewServer(store, engine, nil, time.Second, nil), store
}

func postChat(t *testing.T, srv http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestChat_PersistsTurn(t *testing.T) {
	srv, store := newTestServer(&fakeEngine{})

	rec := postChat(t, srv, `{"session_id":"s1","message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp pkg.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, pkg.ChatResponse{SessionID: "s1", Reply: "echo: hello", Agent: "receptionist"}, resp)

	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, sess.Greeted)
	assert.Equal(t, 1, sess.ConversationStage)
}

func TestChat_AllowWebAppliedBeforeTurn(t *testing.T) {
	engine := &fakeEngine{}
	srv, store := newTestServer(engine)

	require.Equal(t, http.StatusOK, postChat(t, srv, `{"session_id":"s1","message":"a","allow_web":false}`).Code)
	require.Equal(t, http.StatusOK, postChat(t, srv, `{"session_id":"s1","message":"b"}`).Code)

	assert.Equal(t, []bool{false, false}, engine.allowWeb)
	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, sess.AllowWeb)
}

func TestChat_GeneratesSessionID(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})
	rec := postChat(t, srv, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp pkg.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.SessionID, "session-"))
}

func TestChat_BadRequests(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"message":`},
		{"empty message", `{"session_id":"s1","message":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestChat_FailedTurnNotPersisted(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"upstream failure", errors.New("completion service: 500"), http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestServer(&fakeEngine{err: tt.err})

			rec := postChat(t, srv, `{"session_id":"s1","message":"hello"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")

			assert.Zero(t, store.Len())
			sess, err := store.Load(context.Background(), "s1")
			require.NoError(t, err)
			assert.False(t, sess.Greeted)
		})
	}
}

func TestChat_SerializesSameSession(t *testing.T) {
	engine := &fakeEngine{delay: 5 * time.Millisecond}
	srv, store := newTestServer(engine)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/chat",
				bytes.NewBufferString(`{"session_id":"shared","message":"hi"}`))
			srv.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, engine.maxActive)
	sess, err := store.Load(context.Background(), "shared")
	require.NoError(t, err)
	// No turn was lost to a concurrent overwrite.
	assert.Equal(t, 8, sess.ConversationStage)
}

func TestSessions_CreateAndSnapshot(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created pkg.SessionCreated
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, strings.HasPrefix(created.SessionID, "session-"))

	require.Equal(t, http.StatusOK,
		postChat(t, srv, `{"session_id":"`+created.SessionID+`","message":"hello"}`).Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+created.SessionID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, created.SessionID, snap.SessionID)
	assert.Equal(t, "no_identity", snap.Identity)
	assert.True(t, snap.Greeted)
	assert.True(t, snap.AllowWeb)
}

func TestNewSnapshot_ResolvedSession(t *testing.T) {
	sess := core.NewSession("s1")
	rec := pkg.PatientRecord{PatientName: "John Carter", DischargeDate: "2024-01-10"}
	sess.Identity = core.IdentityResolved
	sess.PatientName = rec.PatientName
	sess.PatientRecord = &rec
	sess.Mode = core.AgentClinical

	snap := NewSnapshot(sess)
	assert.Equal(t, "resolved", snap.Identity)
	assert.Equal(t, "John Carter", snap.PatientName)
	assert.Equal(t, core.AgentClinical, snap.Mode)
	assert.NotNil(t, snap.History)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)
	recorder.ObserveRoute("clinical", "classifier")

	store := session.NewMemoryStore(true)
	srv := NewServer(store, &fakeEngine{}, nil, time.Second, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "assistant_routes_total")
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})
	for _, target := range []string{"/metrics", "/api/sessions/", "/api/sessions/a/b", "/nope"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}
