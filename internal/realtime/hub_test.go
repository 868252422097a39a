// internal/realtime/hub_test.go
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"internship-portal/internal/common/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_SendReachesEveryConnectionOfUser(t *testing.T) {
	hub := NewHub(logger.NewTestLogger(t), nil)
	srv := newTestServer(t, hub)

	first := dial(t, srv, "student-1")
	second := dial(t, srv, "student-1")
	bystander := dial(t, srv, "student-2")
	require.Eventually(t, func() bool {
		return hub.Connections("student-1") == 2 && hub.Connections("student-2") == 1
	}, 2*time.Second, 10*time.Millisecond)

	n, err := hub.Send(context.Background(), "student-1", Message{Type: "payment.verified", Data: map[string]string{"applicationId": "app-1"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var got struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "payment.verified", got.Type)
		assert.Equal(t, "app-1", got.Data["applicationId"])
	}

	require.NoError(t, bystander.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = bystander.ReadMessage()
	assert.Error(t, err, "other users receive nothing")
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := NewHub(logger.NewTestLogger(t), nil)
	srv := newTestServer(t, hub)

	conn := dial(t, srv, "student-1")
	require.Eventually(t, func() bool { return hub.Connections("student-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_ = conn.Close()

	require.Eventually(t, func() bool { return hub.Connections("student-1") == 0 }, 2*time.Second, 10*time.Millisecond)

	n, err := hub.Send(context.Background(), "student-1", Message{Type: "noop"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegistry_RegisterSendUnregister(t *testing.T) {
	hub := NewHub(logger.NewTestLogger(t), nil)
	var reg Registry = hub

	registered := make(chan *Client, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		registered <- reg.Register("admin-1", conn)
	}))
	t.Cleanup(srv.Close)

	conn := dial(t, srv, "")
	var c *Client
	select {
	case c = <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}
	assert.Equal(t, "admin-1", c.UserID())
	assert.Equal(t, 1, hub.Connections("admin-1"))

	n, err := reg.Send(context.Background(), "admin-1", Message{Type: "payment.submitted"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"payment.submitted"`)

	reg.Unregister(c)
	reg.Unregister(c)
	assert.Zero(t, hub.Connections("admin-1"))

	n, err = reg.Send(context.Background(), "admin-1", Message{Type: "payment.verified"})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "unregistering closes the connection")
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no list allows all", nil, "https://evil.example", true},
		{"listed origin", []string{"https://portal.example"}, "https://portal.example", true},
		{"unlisted origin", []string{"https://portal.example"}, "https://evil.example", false},
		{"wildcard", []string{"*"}, "https://any.example", true},
		{"missing header", []string{"https://portal.example"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(r))
		})
	}
}
