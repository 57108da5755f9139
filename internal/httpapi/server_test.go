package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmorelli/aria/internal/archive"
	"github.com/gmorelli/aria/internal/auth"
	"github.com/gmorelli/aria/internal/broadcast"
	"github.com/gmorelli/aria/internal/calendar"
	"github.com/gmorelli/aria/internal/config"
	"github.com/gmorelli/aria/internal/session"
	"github.com/gmorelli/aria/internal/speech"
)

type testEnv struct {
	srv   *httptest.Server
	cal   *calendar.MockService
	synth *speech.MockSynthesizer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	synth := speech.NewMockSynthesizer()
	adapter := speech.NewAdapter(synth, nil, speech.AdapterConfig{MaxAttempts: 1, AttemptTimeout: time.Second}, zerolog.Nop())
	table := session.NewTable(0, 0)
	hub := broadcast.NewHub(64, zerolog.Nop())
	cal := calendar.NewMockService()
	store := archive.NewInMemoryStore()
	ctrl := session.NewController(table, adapter, cal, store, hub, nil, speech.VoiceProfile{}, zerolog.Nop())

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	cfg := config.Config{AllowAnyOrigin: true}
	server := New(cfg, ctrl, hub, cal, store, issuer, nil, zerolog.Nop())
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &testEnv{srv: ts, cal: cal, synth: synth}
}

func (e *testEnv) token(t *testing.T, owner string) string {
	t.Helper()
	res, err := http.Post(e.srv.URL+"/v1/auth/token", "application/json",
		strings.NewReader(`{"owner":"`+owner+`"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body tokenResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(res.Body).Decode(&decoded)
	return res, decoded
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(e.srv.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
	}
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)
	res, body := e.do(t, http.MethodPost, "/v1/assistant/start", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", body["code"])
}

func TestTokenRequiresOwner(t *testing.T) {
	e := newTestEnv(t)
	res, err := http.Post(e.srv.URL+"/v1/auth/token", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	tok := e.token(t, "gm")

	// No session yet.
	res, body := e.do(t, http.MethodGet, "/v1/assistant/status", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "inactive", body["state"])
	assert.Equal(t, false, body["is_active"])

	// Start.
	res, body = e.do(t, http.MethodPost, "/v1/assistant/start", tok, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "listening", body["state"])

	// Second start conflicts.
	res, body = e.do(t, http.MethodPost, "/v1/assistant/start", tok, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "session_exists", body["code"])

	// Input.
	res, body = e.do(t, http.MethodPost, "/v1/assistant/input", tok, inputRequest{Text: "tell me a joke"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "joke", body["action"])
	assert.Contains(t, body["reply"], "atoms")

	// History has the user line and the reply.
	res, body = e.do(t, http.MethodGet, "/v1/assistant/history", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	entries, ok := body["entries"].([]any)
	require.True(t, ok)
	assert.Len(t, entries, 2)

	// Stop, then input is rejected.
	res, body = e.do(t, http.MethodPost, "/v1/assistant/stop", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "stopped", body["state"])

	res, body = e.do(t, http.MethodPost, "/v1/assistant/input", tok, inputRequest{Text: "hello"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "no_session", body["code"])
}

func TestInputValidation(t *testing.T) {
	e := newTestEnv(t)
	tok := e.token(t, "gm")

	res, body := e.do(t, http.MethodPost, "/v1/assistant/input", tok, inputRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "invalid_request", body["code"])
}

func TestCalendarEndpoints(t *testing.T) {
	e := newTestEnv(t)
	tok := e.token(t, "gm")

	res, body := e.do(t, http.MethodGet, "/v1/calendar/today", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, e.cal.TodayReply, body["reply"])

	e.cal.Err = calendar.ErrUnavailable
	res, body = e.do(t, http.MethodGet, "/v1/calendar/free-time", tok, nil)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, "calendar_unavailable", body["code"])
}

func TestWebsocketStreamsEvents(t *testing.T) {
	e := newTestEnv(t)
	tok := e.token(t, "gm")

	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/v1/assistant/ws?access_token=" + tok
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if res != nil {
		res.Body.Close()
	}
	defer conn.Close()

	startRes, _ := e.do(t, http.MethodPost, "/v1/assistant/start", tok, nil)
	require.Equal(t, http.StatusCreated, startRes.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var sawListening bool
	for i := 0; i < 10 && !sawListening; i++ {
		var ev map[string]any
		require.NoError(t, conn.ReadJSON(&ev))
		if ev["type"] == "state_change" && ev["state"] == "listening" {
			sawListening = true
		}
	}
	assert.True(t, sawListening, "listening transition reached the panel")
}

func TestWebsocketRejectsMissingToken(t *testing.T) {
	e := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/v1/assistant/ws"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if res != nil {
		defer res.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	}
}
