package gameserver

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardgo/internal/protocol"
	"boardgo/internal/rulespack/cardgame"
)

const testTimeout = 2 * time.Second

// Scenario 1: two-player lobby -> canStart (spec §8).
func TestTwoPlayerLobbyReachesCanStart(t *testing.T) {
	ts := newTestServer(t, 1)
	c1 := dialTestClient(t, ts)
	c2 := dialTestClient(t, ts)

	c1.sendJoin("p1", "Alice", "")
	ack1 := c1.expectType(protocol.TypeJoinRoomAck, testTimeout)
	var ackPayload1 protocol.JoinRoomAckPayload
	require.NoError(t, ack1.ParsePayload(&ackPayload1))
	assert.True(t, ackPayload1.Success)
	assert.NotEmpty(t, ackPayload1.ReconnectToken)

	c2.sendJoin("p2", "Bob", "")
	ack2 := c2.expectType(protocol.TypeJoinRoomAck, testTimeout)
	var ackPayload2 protocol.JoinRoomAckPayload
	require.NoError(t, ack2.ParsePayload(&ackPayload2))
	assert.True(t, ackPayload2.Success)
	assert.NotEqual(t, ackPayload1.ReconnectToken, ackPayload2.ReconnectToken)

	c1.sendSetReady("p1", true)
	c2.sendSetReady("p2", true)

	var lobby protocol.LobbyStatePayload
	require.True(t, waitFor(t, testTimeout, func() bool {
		select {
		case env := <-c2.received:
			if env.Type == protocol.TypeLobbyState {
				_ = env.ParsePayload(&lobby)
				return lobby.CanStart && len(lobby.Players) == 2
			}
		default:
		}
		return false
	}))
	assert.True(t, lobby.CanStart)
	assert.Len(t, lobby.Players, 2)
}

// Scenario 2: reconnect preserves seat.
func TestReconnectPreservesSeat(t *testing.T) {
	ts := newTestServer(t, 1)
	c1 := dialTestClient(t, ts)

	c1.sendJoin("p1", "Alice", "")
	ack1 := c1.expectType(protocol.TypeJoinRoomAck, testTimeout)
	var ackPayload1 protocol.JoinRoomAckPayload
	require.NoError(t, ack1.ParsePayload(&ackPayload1))
	token := ackPayload1.ReconnectToken
	require.NotEmpty(t, token)

	c1.conn.Close()

	c3 := dialTestClient(t, ts)
	c3.sendJoin("ignored-id", "Alice", token)
	ack3 := c3.expectType(protocol.TypeJoinRoomAck, testTimeout)
	var ackPayload3 protocol.JoinRoomAckPayload
	require.NoError(t, ack3.ParsePayload(&ackPayload3))

	assert.True(t, ackPayload3.Success)
	assert.Equal(t, "p1", ackPayload3.PlayerID)
	assert.Equal(t, token, ackPayload3.ReconnectToken)
}

// startTwoPlayerGame gets p1 and p2 joined, ready, and the game started,
// returning both clients with p1 active (round 1, turnIndex 0).
func startTwoPlayerGame(t *testing.T, ts *testServer) (c1, c2 *testClient) {
	t.Helper()
	c1 = dialTestClient(t, ts)
	c2 = dialTestClient(t, ts)

	c1.sendJoin("p1", "Alice", "")
	c1.expectType(protocol.TypeJoinRoomAck, testTimeout)
	c2.sendJoin("p2", "Bob", "")
	c2.expectType(protocol.TypeJoinRoomAck, testTimeout)

	require.NoError(t, ts.gameServer.StartGame("cardgame.reference"))

	c1.expectType(protocol.TypeBoardView, testTimeout)
	c1.expectType(protocol.TypePlayerView, testTimeout)
	c2.expectType(protocol.TypeBoardView, testTimeout)
	c2.expectType(protocol.TypePlayerView, testTimeout)
	return c1, c2
}

// Scenario 3: duplicate action rejected.
func TestDuplicateActionRejected(t *testing.T) {
	ts := newTestServer(t, 1)
	c1, _ := startTwoPlayerGame(t, ts)

	c1.sendAction("p1", cardgame.ActionEndTurn, rawJSON("{}"), "u-001")
	c1.expectType(protocol.TypePlayerView, testTimeout)

	var versionBefore int64
	ts.gameServer.enqueueAndWait(func() { versionBefore = ts.gameServer.state.Version })

	c1.sendAction("p1", cardgame.ActionEndTurn, rawJSON("{}"), "u-001")
	rej := c1.expectType(protocol.TypeActionRejected, testTimeout)

	var payload protocol.ActionRejectedPayload
	require.NoError(t, rej.ParsePayload(&payload))
	assert.Equal(t, protocol.CodeDuplicateAction, payload.Code)
	assert.Equal(t, "u-001", payload.ClientActionID)

	ts.gameServer.enqueueAndWait(func() {
		assert.Equal(t, versionBefore, ts.gameServer.state.Version)
	})
}

// Scenario 4: not-your-turn rejected.
func TestNotYourTurnRejected(t *testing.T) {
	ts := newTestServer(t, 1)
	_, c2 := startTwoPlayerGame(t, ts)

	var versionBefore int64
	ts.gameServer.enqueueAndWait(func() { versionBefore = ts.gameServer.state.Version })

	c2.sendAction("p2", cardgame.ActionEndTurn, rawJSON("{}"), "p2-001")
	rej := c2.expectType(protocol.TypeActionRejected, testTimeout)

	var payload protocol.ActionRejectedPayload
	require.NoError(t, rej.ParsePayload(&payload))
	assert.Equal(t, protocol.CodeNotYourTurn, payload.Code)

	ts.gameServer.enqueueAndWait(func() {
		assert.Equal(t, versionBefore, ts.gameServer.state.Version)
	})
}

// Scenario 5: private hands stay private.
func TestPrivateHandsStayPrivate(t *testing.T) {
	ts := newTestServer(t, 1)
	c1, _ := startTwoPlayerGame(t, ts)

	var initialData cardgame.Data
	ts.gameServer.enqueueAndWait(func() {
		gs := ts.gameServer.state.GameState
		_ = json.Unmarshal(gs.Data, &initialData)
	})
	card := initialData.Hands["p1"][0]

	payload, err := json.Marshal(struct {
		CardID string `json:"cardId"`
	}{CardID: card})
	require.NoError(t, err)

	c1.sendAction("p1", cardgame.ActionPlayCard, payload, "play-1")

	board := c1.expectType(protocol.TypeBoardView, testTimeout)
	var boardPayload protocol.BoardViewPayload
	require.NoError(t, board.ParsePayload(&boardPayload))
	assert.NotContains(t, string(boardPayload.BoardView), `"hands"`)
	assert.NotContains(t, string(boardPayload.BoardView), `"hand"`)

	pv1 := c1.expectType(protocol.TypePlayerView, testTimeout)
	var playerView1 protocol.PlayerViewPayload
	require.NoError(t, pv1.ParsePayload(&playerView1))

	assert.Contains(t, string(playerView1.PlayerView), `"hand"`)
}

// Phase check (pipeline step 2): an ACTION sent before StartGame has run
// is rejected with PHASE_MISMATCH rather than silently dropped.
func TestPhaseMismatchRejected(t *testing.T) {
	ts := newTestServer(t, 1)
	c1 := dialTestClient(t, ts)

	c1.sendJoin("p1", "Alice", "")
	c1.expectType(protocol.TypeJoinRoomAck, testTimeout)
	c1.expectType(protocol.TypeLobbyState, testTimeout)

	c1.sendAction("p1", cardgame.ActionEndTurn, rawJSON("{}"), "u-001")
	rej := c1.expectType(protocol.TypeActionRejected, testTimeout)

	var payload protocol.ActionRejectedPayload
	require.NoError(t, rej.ParsePayload(&payload))
	assert.Equal(t, protocol.CodePhaseMismatch, payload.Code)
}

// Allowed-action check (pipeline step 4): an action type the active pack
// never offers is rejected with INVALID_ACTION.
func TestInvalidActionRejected(t *testing.T) {
	ts := newTestServer(t, 1)
	c1, _ := startTwoPlayerGame(t, ts)

	c1.sendAction("p1", "NOT_A_REAL_ACTION", rawJSON("{}"), "u-001")
	rej := c1.expectType(protocol.TypeActionRejected, testTimeout)

	var payload protocol.ActionRejectedPayload
	require.NoError(t, rej.ParsePayload(&payload))
	assert.Equal(t, protocol.CodeInvalidAction, payload.Code)
}

// Scenario 7: a seat that floods actions past its token bucket is
// throttled at the transport layer (spec §4.11): the offending frame never
// reaches the action pipeline, and the client sees an ERROR frame rather
// than an ACTION_REJECTED of any kind.
func TestRateLimitExceeded(t *testing.T) {
	ts := newRateLimitedTestServer(t, 1, 1, 1)
	c1, c2 := startTwoPlayerGame(t, ts)
	_ = c2

	c1.sendAction("p1", cardgame.ActionEndTurn, rawJSON("{}"), "u-001")
	c1.expectType(protocol.TypePlayerView, testTimeout)

	for i := 0; i < 10; i++ {
		c1.sendAction("p1", cardgame.ActionDrawCard, rawJSON("{}"), fmt.Sprintf("flood-%d", i))
	}

	errFrame := c1.expectType(protocol.TypeError, testTimeout)
	var errPayload protocol.ErrorPayload
	require.NoError(t, errFrame.ParsePayload(&errPayload))
	assert.Equal(t, "rate limit exceeded", errPayload.Reason)
}

// Scenario 6: ping echo.
func TestPingEcho(t *testing.T) {
	ts := newTestServer(t, 1)
	c1 := dialTestClient(t, ts)
	c1.sendJoin("p1", "Alice", "")
	c1.expectType(protocol.TypeJoinRoomAck, testTimeout)
	c1.expectType(protocol.TypeLobbyState, testTimeout)

	c1.sendPing(1234567890)
	pong := c1.expectType(protocol.TypePong, testTimeout)

	var payload protocol.PongPayload
	require.NoError(t, pong.ParsePayload(&payload))
	assert.EqualValues(t, 1234567890, payload.Timestamp)
}

func TestLeaveBroadcastsToRemainingPlayers(t *testing.T) {
	ts := newTestServer(t, 1)
	c1 := dialTestClient(t, ts)
	c2 := dialTestClient(t, ts)

	c1.sendJoin("p1", "Alice", "")
	c1.expectType(protocol.TypeJoinRoomAck, testTimeout)
	c2.sendJoin("p2", "Bob", "")
	c2.expectType(protocol.TypeJoinRoomAck, testTimeout)
	c1.expectType(protocol.TypeLobbyState, testTimeout)

	env, _ := protocol.NewEnvelope(protocol.TypeLeave, protocol.LeavePayload{PlayerID: "p1", Event: "leave"})
	c1.send(env)

	leave := c2.expectType(protocol.TypeLeave, testTimeout)
	var payload protocol.LeavePayload
	require.NoError(t, leave.ParsePayload(&payload))
	assert.Equal(t, "p1", payload.PlayerID)
}

func TestDisconnectMarksSeatDisconnectedAndBroadcastsLobbyState(t *testing.T) {
	ts := newTestServer(t, 1)
	c1 := dialTestClient(t, ts)
	c2 := dialTestClient(t, ts)

	c1.sendJoin("p1", "Alice", "")
	c1.expectType(protocol.TypeJoinRoomAck, testTimeout)
	c2.sendJoin("p2", "Bob", "")
	c2.expectType(protocol.TypeJoinRoomAck, testTimeout)
	c1.expectType(protocol.TypeLobbyState, testTimeout)

	c1.conn.Close()

	require.True(t, waitFor(t, testTimeout, func() bool {
		return !ts.gameServer.sessions.IsConnected("p1")
	}))

	require.True(t, waitFor(t, testTimeout, func() bool {
		select {
		case env := <-c2.received:
			if env.Type == protocol.TypeLobbyState {
				var lobby protocol.LobbyStatePayload
				_ = env.ParsePayload(&lobby)
				for _, p := range lobby.Players {
					if p.PlayerID == "p1" && !p.IsConnected {
						return true
					}
				}
			}
		default:
		}
		return false
	}))
}
