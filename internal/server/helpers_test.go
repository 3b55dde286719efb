package server_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/server"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:3000"

type testEnv struct {
	hub     *chat.Hub
	srv     *server.Server
	http    *httptest.Server
	stopHub context.CancelFunc
}

// newTestEnv runs a hub and serves its routes from an httptest server.
func newTestEnv(t *testing.T, customize func(cfg *server.Config)) *testEnv {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)

	cfg := server.NewConfig()
	if customize != nil {
		customize(cfg)
	}

	hub := chat.NewHub(chat.WithLogger(log), chat.WithSendBuffer(cfg.SendBuffer))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := server.New(cfg, hub, log)
	ts := httptest.NewServer(srv.SetupRoutes())

	env := &testEnv{hub: hub, srv: srv, http: ts, stopHub: cancel}
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		ts.Close()
	})
	return env
}

func (e *testEnv) wsURL(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(e.http.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ws"
	return u.String()
}

func newOriginHeader(origin string) http.Header {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return header
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(e.wsURL(t), newOriginHeader(testOrigin))
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame{Event: event, Data: raw}))
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// expectEvent reads the next frame, checks its name and decodes its data into out.
func expectEvent(t *testing.T, conn *websocket.Conn, event string, out any) {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, event, f.Event, "unexpected event with data %s", string(f.Data))
	if out != nil {
		require.NoError(t, json.Unmarshal(f.Data, out))
	}
}

func expectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "expected no message, got %s", string(data))
	netErr, ok := err.(net.Error)
	require.True(t, ok && netErr.Timeout(), "unexpected error while waiting for absence of message: %v", err)
}

// joinAs joins conn under name and consumes the three join events addressed to it.
func joinAs(t *testing.T, conn *websocket.Conn, name string) []chat.UserSummary {
	t.Helper()
	emit(t, conn, server.EventJoin, server.JoinPayload{FullName: name})
	expectEvent(t, conn, "messages", nil)
	var joined chat.Message
	expectEvent(t, conn, "message", &joined)
	require.Equal(t, name+" joined the chat", joined.Content)
	var users []chat.UserSummary
	expectEvent(t, conn, "users", &users)
	return users
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}
