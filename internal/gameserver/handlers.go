package gameserver

import (
	"encoding/json"
	"fmt"

	"boardgo/internal/protocol"
	"boardgo/internal/session"
)

// handleJoin implements spec §4.7.2.
func (gs *GameServer) handleJoin(conn *Connection, env *protocol.Envelope) {
	var payload protocol.JoinPayload
	if err := env.ParsePayload(&payload); err != nil {
		gs.sendError(conn, "malformed JOIN payload")
		return
	}

	resolvedID := payload.PlayerID
	if payload.ReconnectToken != "" {
		if owner, ok := gs.sessions.FindPlayerByReconnectToken(payload.ReconnectToken); ok {
			resolvedID = owner
			gs.sessions.Reconnect(resolvedID, conn)
		} else {
			// An unknown token is not a hard error — reference behavior
			// treats it as a fresh join (spec §9 open question 1).
			gs.registerFresh(resolvedID, payload.DisplayName, conn)
		}
	} else {
		gs.registerFresh(resolvedID, payload.DisplayName, conn)
	}

	gs.connPlayer[conn] = resolvedID
	conn.SetPlayerID(resolvedID)
	token := gs.sessions.GetReconnectToken(resolvedID)

	gs.sendTo(resolvedID, protocol.TypeJoinRoomAck, protocol.JoinRoomAckPayload{
		Success:        true,
		PlayerID:       resolvedID,
		ReconnectToken: token,
	})

	if gs.state.Phase == session.PhaseInGame {
		gs.sendPlayerView(resolvedID)
	}

	gs.broadcastLobbyState()
}

func (gs *GameServer) registerFresh(playerID, displayName string, conn *Connection) {
	nickname := displayName
	if nickname == "" {
		nickname = playerID
	}
	gs.sessions.Register(playerID, nickname, conn)
}

// handleSetReady implements spec §4.7.3.
func (gs *GameServer) handleSetReady(conn *Connection, env *protocol.Envelope) {
	var payload protocol.SetReadyPayload
	if err := env.ParsePayload(&payload); err != nil {
		gs.sendError(conn, "malformed SET_READY payload")
		return
	}
	gs.sessions.SetReady(payload.PlayerID, payload.IsReady)
	gs.broadcastLobbyState()
}

// handlePing implements spec §4.7.4: reply to the sender only, echoing the
// timestamp verbatim. The server never originates pings.
func (gs *GameServer) handlePing(conn *Connection, env *protocol.Envelope) {
	var payload protocol.PingPayload
	if err := env.ParsePayload(&payload); err != nil {
		gs.sendError(conn, "malformed PING payload")
		return
	}
	gs.sendFrame(conn, protocol.TypePong, protocol.PongPayload{Timestamp: payload.Timestamp})
}

// handleLeave implements spec §4.7.5.
func (gs *GameServer) handleLeave(conn *Connection, env *protocol.Envelope) {
	var payload protocol.LeavePayload
	if err := env.ParsePayload(&payload); err != nil {
		gs.sendError(conn, "malformed LEAVE payload")
		return
	}
	gs.sessions.Unregister(payload.PlayerID)
	delete(gs.connPlayer, conn)
	gs.broadcast(protocol.TypeLeave, protocol.LeavePayload{PlayerID: payload.PlayerID, Event: "leave"})
}

// StartGame is the out-of-band trigger described in spec §4.7.6, callable
// by whatever embeds this package (e.g. a board-side UI command). It
// selects a GamePackRules implementation by packId (falling back to the
// default pack on unknown ids, the reference behavior) and transitions
// Lobby -> InGame.
func (gs *GameServer) StartGame(packID string) error {
	var startErr error
	gs.enqueueAndWait(func() {
		startErr = gs.startGameLocked(packID)
	})
	return startErr
}

func (gs *GameServer) startGameLocked(packID string) error {
	if gs.state.Phase != session.PhaseLobby {
		return fmt.Errorf("gameserver: cannot start game outside the Lobby phase")
	}

	order := gs.sessions.ConnectedPlayerOrder()
	if len(order) == 0 {
		return fmt.Errorf("gameserver: cannot start game with no connected seats")
	}

	pack, ok := gs.packs[packID]
	if !ok {
		pack = gs.defaultPack
	}
	if pack == nil {
		return fmt.Errorf("gameserver: no rules pack available for %q", packID)
	}

	players := make(map[string]session.PlayerSessionState, len(order))
	for _, id := range order {
		players[id] = session.PlayerSessionState{
			PlayerID:       id,
			Nickname:       gs.sessions.Nickname(id),
			IsConnected:    gs.sessions.IsConnected(id),
			IsReady:        gs.sessions.IsReady(id),
			ReconnectToken: gs.sessions.GetReconnectToken(id),
		}
	}

	gs.state = gs.state.WithPlayers(players, order)
	gs.state = pack.CreateInitialGameState(gs.state)
	gs.activePack = pack
	gs.metrics.ObserveSessionVersion(gs.state.Version)

	gs.fanOutViews()
	return nil
}

// handleAction implements the ten-step pipeline of spec §4.7.7.
func (gs *GameServer) handleAction(conn *Connection, env *protocol.Envelope) {
	var payload protocol.ActionPayload
	if err := env.ParsePayload(&payload); err != nil {
		gs.sendError(conn, "malformed ACTION payload")
		return
	}

	// 1. Duplicate check.
	if payload.ClientActionID != "" && gs.cache.Seen(payload.ClientActionID) {
		gs.rejectAction(payload.PlayerID, payload.ClientActionID, protocol.CodeDuplicateAction, "duplicate action")
		return
	}

	// 2. Phase check. Per spec §9 open question 2, this implementation
	// standardizes on ACTION_REJECTED{PHASE_MISMATCH} and drops the legacy
	// bare-GameState fallback path.
	if gs.state.Phase != session.PhaseInGame || gs.activePack == nil {
		gs.rejectAction(payload.PlayerID, payload.ClientActionID, protocol.CodePhaseMismatch, "game is not in progress")
		return
	}

	// 3. Turn check.
	if gs.state.TurnState == nil || gs.state.TurnState.ActivePlayerID != payload.PlayerID {
		gs.rejectAction(payload.PlayerID, payload.ClientActionID, protocol.CodeNotYourTurn, "it is not your turn")
		return
	}

	// 4. Allowed-action check.
	allowed := gs.activePack.GetAllowedActions(gs.state, payload.PlayerID)
	matched := false
	for _, a := range allowed {
		if a.ActionType == payload.ActionType {
			matched = true
			break
		}
	}
	if !matched {
		gs.rejectAction(payload.PlayerID, payload.ClientActionID, protocol.CodeInvalidAction, "action is not currently allowed")
		return
	}

	// 5. Record (post-validation, so a rejected duplicate never pollutes
	// the cache beyond its original entry).
	if payload.ClientActionID != "" {
		gs.cache.Add(payload.ClientActionID)
	}

	// 6/7. Apply; the version bump happens inside ApplyAction via
	// AddLogEntry (invariant V1).
	next, err := gs.activePack.ApplyAction(gs.state, payload.PlayerID, payload.ActionType, payload.Data)
	if err != nil {
		gs.logger.WithError(err).Warn("rules pack rejected a pre-validated action")
		gs.rejectAction(payload.PlayerID, payload.ClientActionID, protocol.CodeInvalidAction, "action failed to apply")
		return
	}
	gs.state = next
	gs.metrics.ActionAccepted()
	gs.metrics.ObserveSessionVersion(gs.state.Version)

	// 8. End-check.
	if result := gs.activePack.CheckGameEnd(gs.state); result.Ended {
		gs.state = gs.state.WithPhase(session.PhaseFinished).
			AddLogEntry("GAME_END", fmt.Sprintf("winners: %v", result.WinnerIDs), 0)
	}

	// 9. Fan out.
	gs.fanOutViews()

	// 10. Persist (fire-and-forget).
	gs.persistAsync()
}

func (gs *GameServer) rejectAction(playerID, clientActionID string, code protocol.ActionRejectedCode, reason string) {
	gs.sendTo(playerID, protocol.TypeActionRejected, protocol.ActionRejectedPayload{
		Reason:         reason,
		Code:           code,
		ClientActionID: clientActionID,
	})
	gs.metrics.ActionRejected(string(code))
}

// fanOutViews implements spec §4.7.8: one BOARD_VIEW broadcast followed by
// one PLAYER_VIEW send per connected seat, all derived from the same
// state snapshot.
func (gs *GameServer) fanOutViews() {
	board := gs.activePack.BuildBoardView(gs.state)
	gs.broadcast(protocol.TypeBoardView, protocol.BoardViewPayload{BoardView: marshalOrEmpty(board)})

	for _, id := range gs.state.PlayerOrder {
		if !gs.sessions.IsConnected(id) {
			continue
		}
		gs.sendPlayerView(id)
	}
}

func (gs *GameServer) sendPlayerView(playerID string) {
	if gs.activePack == nil {
		return
	}
	view := gs.activePack.BuildPlayerView(gs.state, playerID)
	gs.sendTo(playerID, protocol.TypePlayerView, protocol.PlayerViewPayload{PlayerView: marshalOrEmpty(view)})
}

// broadcastLobbyState implements spec §4.7.9.
func (gs *GameServer) broadcastLobbyState() {
	lobby := gs.sessions.BuildLobbyState()
	players := make([]protocol.LobbyPlayerInfo, 0, len(lobby.Players))
	for _, p := range lobby.Players {
		players = append(players, protocol.LobbyPlayerInfo{
			PlayerID:    p.PlayerID,
			Nickname:    p.Nickname,
			IsReady:     p.IsReady,
			IsConnected: p.IsConnected,
		})
	}
	gs.broadcast(protocol.TypeLobbyState, protocol.LobbyStatePayload{Players: players, CanStart: lobby.CanStart})
}

func (gs *GameServer) persistAsync() {
	if gs.store == nil {
		return
	}
	snapshot := gs.state
	go func() {
		if err := gs.store.Save(snapshot); err != nil {
			gs.logger.WithError(err).Warn("failed to persist session snapshot")
			gs.metrics.PersistenceFailure()
		}
	}()
}

func marshalOrEmpty(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

func (gs *GameServer) broadcast(msgType protocol.MessageType, payload interface{}) {
	env, err := protocol.NewEnvelope(msgType, payload)
	if err != nil {
		gs.logger.WithError(err).Error("failed to build broadcast envelope")
		return
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		gs.logger.WithError(err).Error("failed to encode broadcast frame")
		return
	}
	gs.sessions.Broadcast(frame, "")
}

func (gs *GameServer) sendTo(playerID string, msgType protocol.MessageType, payload interface{}) {
	env, err := protocol.NewEnvelope(msgType, payload)
	if err != nil {
		gs.logger.WithError(err).Error("failed to build envelope")
		return
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		gs.logger.WithError(err).Error("failed to encode frame")
		return
	}
	gs.sessions.Send(playerID, frame)
}

func (gs *GameServer) sendFrame(conn *Connection, msgType protocol.MessageType, payload interface{}) {
	env, err := protocol.NewEnvelope(msgType, payload)
	if err != nil {
		return
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		return
	}
	conn.Send(frame)
}

func (gs *GameServer) sendError(conn *Connection, reason string) {
	gs.sendFrame(conn, protocol.TypeError, protocol.ErrorPayload{Reason: reason})
}
