package gameserver

import (
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"boardgo/internal/protocol"
	"boardgo/internal/rulespack/cardgame"
)

// testServer wraps an httptest.Server fronting a *GameServer, adapted from
// the teacher's internal/websocket/testutil_test.go TestServer/TestClient
// harness to this package's JOIN/SET_READY/ACTION/PING/LEAVE protocol in
// place of the teacher's authenticate/battle protocol.
type testServer struct {
	httpServer *httptest.Server
	gameServer *GameServer
}

func newTestServer(t *testing.T, seed int64) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, Config{
		SessionID:   "test-session",
		DefaultPack: &cardgame.Pack{Seed: &seed},
	})
}

// newRateLimitedTestServer is newTestServer with a token bucket tight enough
// to exercise allowFrame's throttling path deterministically.
func newRateLimitedTestServer(t *testing.T, seed int64, rps float64, burst int) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, Config{
		SessionID:   "test-session",
		DefaultPack: &cardgame.Pack{Seed: &seed},
		RateRPS:     rps,
		RateBurst:   burst,
	})
}

func newTestServerWithConfig(t *testing.T, cfg Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(testWriter{t})
	cfg.Logger = logger

	gs := New(cfg)

	router := gin.New()
	router.GET("/ws", gs.HandleConnection)
	httpServer := httptest.NewServer(router)

	t.Cleanup(httpServer.Close)
	return &testServer{httpServer: httpServer, gameServer: gs}
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.httpServer.URL, "http") + "/ws"
}

// testWriter adapts testing.T into an io.Writer for logrus, so log output
// interleaves with test output instead of going to stderr unconditionally.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// testClient wraps one raw websocket connection with a buffered inbound
// channel and a background read loop, mirroring the teacher's TestClient.
type testClient struct {
	t        *testing.T
	conn     *websocket.Conn
	received chan *protocol.Envelope
}

func dialTestClient(t *testing.T, ts *testServer) *testClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	c := &testClient{t: t, conn: conn, received: make(chan *protocol.Envelope, 64)}
	go c.readLoop()
	t.Cleanup(func() { conn.Close() })
	return c
}

func (c *testClient) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			close(c.received)
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		select {
		case c.received <- env:
		default:
			// Drop rather than block; tests that need every frame drain
			// promptly.
		}
	}
}

func (c *testClient) send(env *protocol.Envelope) {
	c.t.Helper()
	frame, err := protocol.Encode(env)
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) sendJoin(playerID, displayName, reconnectToken string) {
	env, err := protocol.NewEnvelope(protocol.TypeJoin, protocol.JoinPayload{
		PlayerID:       playerID,
		Event:          "join",
		DisplayName:    displayName,
		ReconnectToken: reconnectToken,
	})
	if err != nil {
		c.t.Fatalf("build join envelope: %v", err)
	}
	c.send(env)
}

func (c *testClient) sendSetReady(playerID string, ready bool) {
	env, _ := protocol.NewEnvelope(protocol.TypeSetReady, protocol.SetReadyPayload{PlayerID: playerID, IsReady: ready})
	c.send(env)
}

func (c *testClient) sendAction(playerID, actionType string, data []byte, clientActionID string) {
	env, _ := protocol.NewEnvelope(protocol.TypeAction, protocol.ActionPayload{
		PlayerID:       playerID,
		ActionType:     actionType,
		Data:           data,
		ClientActionID: clientActionID,
	})
	c.send(env)
}

func (c *testClient) sendPing(timestamp int64) {
	env, _ := protocol.NewEnvelope(protocol.TypePing, protocol.PingPayload{Timestamp: timestamp})
	c.send(env)
}

// expectType blocks until a frame of the given type arrives or the timeout
// elapses, discarding any frames of other types it sees along the way.
func (c *testClient) expectType(msgType protocol.MessageType, timeout time.Duration) *protocol.Envelope {
	c.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case env, ok := <-c.received:
			if !ok {
				c.t.Fatalf("connection closed while waiting for %s", msgType)
			}
			if env.Type == msgType {
				return env
			}
		case <-deadline:
			c.t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

// waitFor polls condition with cooperative yielding instead of a fixed
// sleep, matching the teacher's waitFor helper.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
	return condition()
}

func rawJSON(s string) []byte { return []byte(s) }
