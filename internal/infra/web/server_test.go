package web_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-assistant/internal/application"
	"voice-assistant/internal/domain"
	"voice-assistant/internal/infra/web"
)

type fakeConversation struct {
	mu        sync.Mutex
	state     domain.State
	toggles   int
	submitted []string
	submitErr error
	cleared   int
	profile   domain.UserProfile
	turns     []domain.Turn
	restored  []string
	stopped   bool
}

func (f *fakeConversation) Capabilities() domain.Capabilities {
	return domain.Capabilities{SpeechRecognition: true}
}

func (f *fakeConversation) Toggle(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
	f.state = domain.StateListening
	return nil
}

func (f *fakeConversation) Submit(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, text)
	return nil
}

func (f *fakeConversation) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

func (f *fakeConversation) UpdateProfile(_ context.Context, update domain.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = f.profile.Merge(update)
	return nil
}

func (f *fakeConversation) ShareCode(_ context.Context) (string, error) {
	return "eyJtZXNzYWdlQ291bnQiOjB9", nil
}

func (f *fakeConversation) Restore(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, code)
	return true, nil
}

func (f *fakeConversation) State(_ context.Context) (domain.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return "", application.ErrStopped
	}
	if f.state == "" {
		return domain.StateIdle, nil
	}
	return f.state, nil
}

func (f *fakeConversation) Turns(_ context.Context) ([]domain.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.turns, nil
}

func (f *fakeConversation) Profile(_ context.Context) (domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, nil
}

type memoryCredentials struct {
	mu    sync.Mutex
	value string
}

func (m *memoryCredentials) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *memoryCredentials) Save(v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = v
	return nil
}

func (m *memoryCredentials) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ""
	return nil
}

type fixture struct {
	conv   *fakeConversation
	creds  *memoryCredentials
	hub    *web.Hub
	server *web.Server
}

func newFixture(opts web.Options) *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		conv:  &fakeConversation{},
		creds: &memoryCredentials{},
		hub:   web.NewHub(logger),
	}
	f.server = web.NewServer(opts, f.conv, f.creds, f.hub, logger)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Toggle(t *testing.T) {
	f := newFixture(web.Options{})

	rec := f.do(http.MethodPost, "/toggle", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"state":"listening"}`, rec.Body.String())
	assert.Equal(t, 1, f.conv.toggles)
}

func TestServer_AuthToken(t *testing.T) {
	authToken := "test-secret-token-123"
	f := newFixture(web.Options{AuthToken: authToken})

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{name: "valid token in header", header: authToken, wantStatus: http.StatusAccepted},
		{name: "valid token in query", query: authToken, wantStatus: http.StatusAccepted},
		{name: "invalid token", header: "wrong-token", wantStatus: http.StatusUnauthorized},
		{name: "missing token", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/toggle"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodPost, target, nil)
			if tt.header != "" {
				req.Header.Set("X-Auth-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			f.server.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health needs no token")
}

func TestServer_Text(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		f := newFixture(web.Options{})

		rec := f.do(http.MethodPost, "/text", "  What's the weather?  ")

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, []string{"What's the weather?"}, f.conv.submitted)
	})

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "empty", body: "   ", wantStatus: http.StatusBadRequest},
		{name: "busy", body: "hi", err: domain.ErrBusy, wantStatus: http.StatusConflict},
		{name: "missing credential", body: "hi", err: domain.ErrMissingCredential, wantStatus: http.StatusPreconditionFailed},
		{name: "stopped", body: "hi", err: application.ErrStopped, wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(web.Options{})
			f.conv.submitErr = tt.err

			rec := f.do(http.MethodPost, "/text", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestServer_Share(t *testing.T) {
	f := newFixture(web.Options{ShareBaseURL: "http://localhost:8080/"})

	rec := f.do(http.MethodGet, "/share", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"code": "eyJtZXNzYWdlQ291bnQiOjB9",
		"url": "http://localhost:8080/?share=eyJtZXNzYWdlQ291bnQiOjB9"
	}`, rec.Body.String())

	// {"messageCount":0}
	code := "eyJtZXNzYWdlQ291bnQiOjB9"

	rec = f.do(http.MethodPost, "/share?share="+code, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"loaded":true}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/share", " "+code+"\n")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"loaded":true}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/share", " garbage\n")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"loaded":false}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/share", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []string{code, code}, f.conv.restored, "malformed codes never reach the conversation")
}

func TestServer_ShareWithoutBaseURL(t *testing.T) {
	f := newFixture(web.Options{})

	rec := f.do(http.MethodGet, "/share", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":"eyJtZXNzYWdlQ291bnQiOjB9"}`, rec.Body.String())
}

func TestServer_Profile(t *testing.T) {
	f := newFixture(web.Options{})

	rec := f.do(http.MethodPut, "/profile", `{"name":"Ana","preferences":["short answers"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"Ana","preferences":["short answers"]}`, rec.Body.String())

	rec = f.do(http.MethodPut, "/profile", `{"context":"planning a trip"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"Ana","preferences":["short answers"],"context":"planning a trip"}`, rec.Body.String())

	rec = f.do(http.MethodPut, "/profile", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "planning a trip")
}

func TestServer_Credential(t *testing.T) {
	f := newFixture(web.Options{})

	rec := f.do(http.MethodPut, "/credential", "sk-test\n")
	require.Equal(t, http.StatusNoContent, rec.Code)
	value, _ := f.creds.Load()
	assert.Equal(t, "sk-test", value)

	rec = f.do(http.MethodPut, "/credential", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodDelete, "/credential", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	value, _ = f.creds.Load()
	assert.Empty(t, value)
}

func TestServer_ReadEndpoints(t *testing.T) {
	f := newFixture(web.Options{})

	rec := f.do(http.MethodGet, "/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())

	f.conv.turns = []domain.Turn{{Role: domain.RoleUser, Content: "hi"}}
	rec = f.do(http.MethodGet, "/messages", "")
	assert.JSONEq(t, `{"messages":[{"role":"user","content":"hi"}]}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/capabilities", "")
	assert.JSONEq(t, `{"speech_recognition_supported":true,"speech_synthesis_supported":false}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/state", "")
	assert.JSONEq(t, `{"state":"idle"}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/clear", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, f.conv.cleared)
}

func TestServer_Health(t *testing.T) {
	f := newFixture(web.Options{})

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","subscribers":0}`, rec.Body.String())

	f.conv.stopped = true
	rec = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	f := newFixture(web.Options{RateLimit: 2})

	assert.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/toggle", "").Code)
	assert.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/toggle", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, "/toggle", "").Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/state", "").Code, "reads are not limited")
}

func TestServer_Events(t *testing.T) {
	f := newFixture(web.Options{AuthToken: "secret"})
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events?token=secret"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.hub.StateChanged(domain.StateThinking)
	f.hub.Message(domain.DisplayMessage{ID: "m1", Text: "hello", IsUser: true})
	f.hub.Notify(domain.Notification{Kind: domain.NotificationChatCleared, Title: "Chat Cleared"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var frames []web.Frame
	for i := 0; i < 3; i++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame web.Frame
		require.NoError(t, sonic.Unmarshal(data, &frame))
		frames = append(frames, frame)
	}

	assert.Equal(t, web.FrameState, frames[0].Type)
	assert.Equal(t, domain.StateThinking, frames[0].State)
	require.NotNil(t, frames[1].Message)
	assert.Equal(t, "hello", frames[1].Message.Text)
	assert.True(t, frames[1].Message.IsUser)
	require.NotNil(t, frames[2].Notification)
	assert.Equal(t, domain.NotificationChatCleared, frames[2].Notification.Kind)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/events", nil)
	assert.Error(t, err, "subscribing needs the token")
}

func TestServer_CrossOriginWithoutToken(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		origin     string
		wantStatus int
	}{
		{name: "no origin header", wantStatus: http.StatusAccepted},
		{name: "same origin", origin: "http://example.com", wantStatus: http.StatusAccepted},
		{name: "loopback page", origin: "http://localhost:5173", wantStatus: http.StatusAccepted},
		{name: "loopback ip", origin: "http://127.0.0.1:3000", wantStatus: http.StatusAccepted},
		{name: "foreign page", origin: "https://evil.example", wantStatus: http.StatusForbidden},
		{name: "opaque origin", origin: "null", wantStatus: http.StatusForbidden},
		{name: "foreign page with token", token: "secret", origin: "https://evil.example", wantStatus: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(web.Options{AuthToken: tt.token})

			req := httptest.NewRequest(http.MethodPost, "/text", strings.NewReader("spend my key"))
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.token != "" {
				req.Header.Set("X-Auth-Token", tt.token)
			}
			rec := httptest.NewRecorder()
			f.server.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Empty(t, f.conv.submitted)
			}
		})
	}
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := web.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(hub)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example"}})
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, hub.Clients())

	conn, _, err = websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {ts.URL}})
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Message(domain.DisplayMessage{ID: "m1", Text: "my secret question", IsUser: true})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "my secret question")
}
