package server_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/momentics/hioload-wsmsg/control"
	"github.com/momentics/hioload-wsmsg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func start(t *testing.T, cfg *control.Config) (*server.Server, string) {
	t.Helper()
	s, err := server.New(cfg, server.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		ts.Close()
	})
	return s, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, base, action string) *websocket.Conn {
	t.Helper()
	c, resp, err := websocket.DefaultDialer.Dial(base+"/"+action, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.SetReadDeadline(time.Now().Add(10*time.Second)))
	return c
}

func expectClose(t *testing.T, c *websocket.Conn, code int, reason string) {
	t.Helper()
	_, _, err := c.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, code, ce.Code)
	assert.Equal(t, reason, ce.Text)
}

func closeFromClient(t *testing.T, c *websocket.Conn) {
	t.Helper()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	expectClose(t, c, websocket.CloseNormalClosure, "")
}

func TestEcho(t *testing.T) {
	s, base := start(t, nil)
	c := dial(t, base, "basic-echo")

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("hello")))
	typ, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.Equal(t, "hello", string(data))

	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, payload))
	typ, data, err = c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)
	assert.Equal(t, payload, data)

	closeFromClient(t, c)
	assert.Eventually(t, func() bool {
		return s.Metrics().Counter("connections.orderly") == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return s.Registry().Len() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestEchoRefusesOversizedMessage(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.MaxMessageSize = 16
	_, base := start(t, cfg)
	c := dial(t, base, "basic-echo")

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("0123456789")))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 32))))
	expectClose(t, c, websocket.CloseMessageTooBig, "message too big")
}

func TestLengthReport(t *testing.T) {
	_, base := start(t, nil)
	c := dial(t, base, "basic-len")

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("hello world")))
	typ, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.Equal(t, "{type: 1, last: 1, length: 11, data: \"hello worl\"}\n", string(data))
	closeFromClient(t, c)
}

func TestBulk(t *testing.T) {
	_, base := start(t, nil)
	c := dial(t, base, "basic-big")

	typ, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 10000)
	assert.Equal(t, fmt.Sprintf("%8d:01234567890123456789012345678901234567890", 1234), lines[1234])

	expectClose(t, c, websocket.CloseNormalClosure, "OK")
}

func TestFrames(t *testing.T) {
	_, base := start(t, nil)
	c := dial(t, base, "basic-frames")

	var want strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&want, "%8d: Hello\n", i)
	}
	typ, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.Equal(t, want.String(), string(data))

	expectClose(t, c, websocket.CloseNormalClosure, "OK")
}

func TestEmpty(t *testing.T) {
	s, base := start(t, nil)
	c := dial(t, base, "basic-empty")

	typ, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.Empty(t, data)

	expectClose(t, c, websocket.CloseNormalClosure, "OK")
	assert.Eventually(t, func() bool {
		return s.Metrics().Counter("connections.orderly") == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDiscardActions(t *testing.T) {
	_, base := start(t, nil)
	for _, name := range []string{"basic-construct", "basic-open", "basic-send"} {
		t.Run(name, func(t *testing.T) {
			c := dial(t, base, name)
			require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("ignored")))
			closeFromClient(t, c)
		})
	}
}

func TestUnknownAction(t *testing.T) {
	s, base := start(t, nil)
	_, resp, err := websocket.DefaultDialer.Dial(base+"/basic-nope", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int64(1), s.Metrics().Counter("requests.unknown_action"))
}

func TestPathPrefix(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.PathPrefix = "/ws"
	_, base := start(t, cfg)

	c := dial(t, base+"/ws", "basic-echo")
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("x")))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	_, resp, err := websocket.DefaultDialer.Dial(base+"/basic-echo", nil)
	require.Error(t, err)
	if resp != nil {
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestShutdownClosesConnections(t *testing.T) {
	s, base := start(t, nil)
	c := dial(t, base, "basic-echo")

	require.Eventually(t, func() bool {
		return s.Registry().Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	errc := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errc <- s.Shutdown(ctx)
	}()

	expectClose(t, c, websocket.CloseGoingAway, server.ShutdownReason)
	require.NoError(t, <-errc)
	assert.Equal(t, 0, s.Registry().Len())

	_, resp, err := websocket.DefaultDialer.Dial(base+"/basic-echo", nil)
	require.Error(t, err)
	if resp != nil {
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
}

func TestShutdownAbandonsStalledConnections(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.WriteTimeout = 0
	cfg.BulkLines = 1000000
	s, base := start(t, cfg)

	// The peer never reads, so the bulk write stalls on a full socket.
	dial(t, base, "basic-big")
	require.Eventually(t, func() bool {
		return s.Registry().Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- s.Shutdown(ctx) }()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown ignored its deadline")
	}
	assert.Equal(t, 0, s.Registry().Len())
}

func TestUpgradeRateLimit(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.UpgradeRate = 0.001
	s, base := start(t, cfg)

	dial(t, base, "basic-open")
	_, resp, err := websocket.DefaultDialer.Dial(base+"/basic-open", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int64(1), s.Metrics().Counter("upgrades.throttled"))
}

func TestProbes(t *testing.T) {
	s, base := start(t, nil)
	dial(t, base, "basic-open")

	assert.Eventually(t, func() bool {
		return s.Probes().DumpState()["connections.active"] == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, s.Actions(), "basic-frames")
}

func TestDebugState(t *testing.T) {
	s, base := start(t, nil)
	dial(t, base, "basic-open")
	require.Eventually(t, func() bool {
		return s.Registry().Len() == 1 && s.Metrics().Counter("connections.accepted") == 1
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http" + strings.TrimPrefix(base, "ws") + "/debug/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var state map[string]any
	require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&state))
	assert.EqualValues(t, 1, state["connections.active"])
	assert.Contains(t, state, "platform.cpus")
	metrics, ok := state["metrics"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, metrics["connections.accepted"])
}
