package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austinkregel/local-media/mediasessiond/internal/auth"
	"github.com/austinkregel/local-media/mediasessiond/internal/bridge"
	"github.com/austinkregel/local-media/mediasessiond/internal/ipc"
	"github.com/austinkregel/local-media/mediasessiond/internal/media"
	"github.com/austinkregel/local-media/mediasessiond/internal/media/mediatest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedOpener bool

func (o fixedOpener) Open() bool { return bool(o) }

type fixture struct {
	srv     *httptest.Server
	authMgr *auth.Manager
	session *mediatest.Session
}

func setupTestServer(t *testing.T, opts Options) *fixture {
	t.Helper()

	store, err := auth.NewStore(filepath.Join(t.TempDir(), "clients.json"))
	require.NoError(t, err)
	authMgr := auth.NewManager(store, true)

	a := mediatest.NewSession("A", "com.example.a").SetState(media.StatePlaying)
	c := media.NewController(mediatest.NewPlatform(a), media.EntitlementFunc(func() bool { return true }), media.Options{})
	c.Attach()
	t.Cleanup(c.Detach)

	handler := bridge.NewHandler(c, fixedOpener(true))
	s := NewServer(opts, authMgr, handler, ipc.NewDispatcher(authMgr, handler, opts.RequireAuth))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, authMgr: authMgr, session: a}
}

func (f *fixture) pair(t *testing.T) string {
	t.Helper()
	p, err := f.authMgr.Pair("test")
	require.NoError(t, err)
	return p.Token
}

func (f *fixture) call(t *testing.T, method, token, body string) (int, ipc.Response) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/methods/"+method, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var resp ipc.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	return res.StatusCode, resp
}

func TestHealthEndpoint(t *testing.T) {
	f := setupTestServer(t, Options{RequireAuth: true})

	res, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestPairEndpoint(t *testing.T) {
	f := setupTestServer(t, Options{RequireAuth: true})

	res, err := http.Post(f.srv.URL+"/api/pair", "application/json", bytes.NewBufferString(`{"clientName":"browser"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp ipc.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	require.True(t, resp.Success)

	var pairing auth.Pairing
	require.NoError(t, json.Unmarshal(resp.Data, &pairing))
	assert.NotEmpty(t, pairing.Token)
	assert.True(t, f.authMgr.ValidateToken(pairing.Token))

	status, call := f.call(t, bridge.MethodIsNotificationListenerEnabled, pairing.Token, "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `true`, string(call.Data))
}

func TestAuthRequired(t *testing.T) {
	f := setupTestServer(t, Options{RequireAuth: true})

	status, resp := f.call(t, bridge.MethodPlay, "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, ipc.CodeUnauthorized, resp.Code)

	status, resp = f.call(t, bridge.MethodPlay, "bogus", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	// Three more failures lock the address out.
	for i := 0; i < 3; i++ {
		f.call(t, bridge.MethodPlay, "bogus", "")
	}
	status, resp = f.call(t, bridge.MethodPlay, f.pair(t), "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, ipc.CodeLockedOut, resp.Code)
}

func TestAuthDisabled(t *testing.T) {
	f := setupTestServer(t, Options{RequireAuth: false})

	status, resp := f.call(t, bridge.MethodIsNotificationListenerEnabled, "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
}

func TestMethodsEndpoint(t *testing.T) {
	f := setupTestServer(t, Options{RequireAuth: true})

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/methods?token="+f.pair(t), nil)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var body struct {
		Methods []string `json:"methods"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Contains(t, body.Methods, bridge.MethodSetCurrentMediaSession)
	assert.Len(t, body.Methods, 9)
}

func TestCallStatusCodes(t *testing.T) {
	f := setupTestServer(t, Options{RequireAuth: true})
	token := f.pair(t)

	tests := []struct {
		method string
		body   string
		status int
		code   string
	}{
		{bridge.MethodPlay, "", http.StatusConflict, "NO_SESSION_SELECTED"},
		{bridge.MethodSetCurrentMediaSession, `{"sessionToken":"missing"}`, http.StatusNotFound, "INVALID_TOKEN"},
		{bridge.MethodSetCurrentMediaSession, `["A"]`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"seekTo", "", http.StatusNotImplemented, "NOT_IMPLEMENTED"},
	}

	for _, tt := range tests {
		t.Run(tt.method+tt.body, func(t *testing.T) {
			status, resp := f.call(t, tt.method, token, tt.body)
			assert.Equal(t, tt.status, status)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Code)
		})
	}

	status, resp := f.call(t, bridge.MethodSetCurrentMediaSession, token, `{"sessionToken":"A"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `"A"`, string(resp.Data))

	status, _ = f.call(t, bridge.MethodNext, token, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Next"}, f.session.Calls())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, statusFor(media.ErrPermissionDenied))
	assert.Equal(t, http.StatusBadGateway, statusFor(media.NewError(media.CodeTransportError, "call failed", nil)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func dialEvents(t *testing.T, f *fixture, token string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/events?token=" + token
	return websocket.DefaultDialer.Dial(u, header)
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(msg, &frame))
	return frame
}

func TestEventsWebsocket(t *testing.T) {
	f := setupTestServer(t, Options{RequireAuth: true})
	token := f.pair(t)

	conn, _, err := dialEvents(t, f, token, nil)
	require.NoError(t, err)
	defer conn.Close()

	// listen acknowledgement
	frame := readFrame(t, conn)
	assert.JSONEq(t, `true`, string(frame["success"]))

	status, _ := f.call(t, bridge.MethodSetCurrentMediaSession, token, `{"sessionToken":"A"}`)
	require.Equal(t, http.StatusOK, status)

	frame = readFrame(t, conn)
	assert.JSONEq(t, `"playbackState"`, string(frame["type"]))
	assert.JSONEq(t, `{"PlaybackState":"STATE_PLAYING","Package":"com.example.a"}`, string(frame["data"]))

	frame = readFrame(t, conn)
	assert.JSONEq(t, `"mediaInfo"`, string(frame["type"]))

	// Request frames inherit the connection's token.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"cmd":"pause"}`)))
	frame = readFrame(t, conn)
	assert.JSONEq(t, `true`, string(frame["success"]))
	assert.Equal(t, []string{"Pause"}, f.session.Calls())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	frame = readFrame(t, conn)
	assert.JSONEq(t, `"INVALID_REQUEST"`, string(frame["code"]))
}

func TestEventsRejectsForeignOrigin(t *testing.T) {
	f := setupTestServer(t, Options{RequireAuth: true})

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, res, err := dialEvents(t, f, f.pair(t), header)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestEventsRequiresToken(t *testing.T) {
	f := setupTestServer(t, Options{RequireAuth: true})

	_, res, err := dialEvents(t, f, "", nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	open := NewServer(Options{}, nil, nil, nil)
	restricted := NewServer(Options{AllowedOrigins: []string{"https://app.example.com", " "}}, nil, nil, nil)

	tests := []struct {
		name   string
		srv    *Server
		origin string
		want   bool
	}{
		{"no origin", open, "", true},
		{"same host", open, "http://daemon.local:7797", true},
		{"localhost", open, "http://localhost:3000", true},
		{"loopback v6", open, "http://[::1]:3000", true},
		{"foreign", open, "https://evil.example", false},
		{"garbage", open, "::::", false},
		{"allowed", restricted, "https://app.example.com", true},
		{"allowed host other scheme", restricted, "http://app.example.com", true},
		{"localhost not listed", restricted, "http://localhost:3000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://daemon.local:7797/api/events", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, tt.srv.checkOrigin(r))
		})
	}
}
