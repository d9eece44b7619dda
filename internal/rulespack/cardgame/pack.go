package cardgame

import (
	"encoding/json"
	"fmt"

	"boardgo/internal/rules"
	"boardgo/internal/session"
)

// DefaultHandSize is the number of cards dealt to each player at game start.
const DefaultHandSize = 5

// DefaultMaxRounds is the round number beyond which the game is over (spec
// §4.5: "round > 3, configurable").
const DefaultMaxRounds = 3

const (
	ActionPlayCard = "PLAY_CARD"
	ActionDrawCard = "DRAW_CARD"
	ActionEndTurn  = "END_TURN"
)

// Data is the typed payload carried in GameState.Data, per the design note
// in spec.md §9 ("SimpleCardGameData{ hands, deck, discardPile, scores }").
type Data struct {
	Hands       map[string][]string `json:"hands"`
	Deck        []string            `json:"deck"`
	DiscardPile []string            `json:"discardPile"`
	Scores      map[string]int      `json:"scores"`
}

// Pack is the reference GamePackRules implementation.
type Pack struct {
	// Seed, when non-nil, makes the initial shuffle reproducible. Tests set
	// this; production leaves it nil for a crypto/rand-seeded shuffle.
	Seed *int64

	// HandSize overrides DefaultHandSize when non-zero.
	HandSize int

	// MaxRounds overrides DefaultMaxRounds when non-zero.
	MaxRounds int
}

var _ rules.GamePackRules = (*Pack)(nil)

func (p *Pack) PackID() string { return "cardgame.reference" }

func (p *Pack) handSize() int {
	if p.HandSize > 0 {
		return p.HandSize
	}
	return DefaultHandSize
}

func (p *Pack) maxRounds() int {
	if p.MaxRounds > 0 {
		return p.MaxRounds
	}
	return DefaultMaxRounds
}

// CreateInitialGameState deals HandSize cards to each player from a freshly
// shuffled deck and starts round 1 with the first player in PlayerOrder
// active.
func (p *Pack) CreateInitialGameState(s session.GameSessionState) session.GameSessionState {
	deck := shuffledDeck(p.Seed)

	hands := make(map[string][]string, len(s.PlayerOrder))
	scores := make(map[string]int, len(s.PlayerOrder))
	for _, id := range s.PlayerOrder {
		n := p.handSize()
		if n > len(deck) {
			n = len(deck)
		}
		hands[id] = append([]string(nil), deck[:n]...)
		deck = deck[n:]
		scores[id] = 0
	}

	data := Data{
		Hands:       hands,
		Deck:        deck,
		DiscardPile: []string{},
		Scores:      scores,
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		// Data is a fixed, self-contained shape; marshaling it can never
		// fail in practice.
		dataBytes = []byte(`{}`)
	}

	var activePlayer string
	if len(s.PlayerOrder) > 0 {
		activePlayer = s.PlayerOrder[0]
	}

	next := s.WithPhase(session.PhaseInGame)
	next = next.WithGameState(&session.GameState{
		GameID:         s.SessionID,
		Turn:           0,
		ActivePlayerID: activePlayer,
		Data:           dataBytes,
	})
	next = next.WithTurnState(&session.TurnState{
		Round:               1,
		TurnIndex:           0,
		ActivePlayerID:       activePlayer,
		Step:                session.StepMain,
		ActionCountThisTurn: 0,
	})
	return next.AddLogEntry("GAME_START", fmt.Sprintf("game started with %d players", len(s.PlayerOrder)), 0)
}

func loadData(s session.GameSessionState) (Data, error) {
	var d Data
	if s.GameState == nil {
		return d, fmt.Errorf("cardgame: no game state")
	}
	if err := json.Unmarshal(s.GameState.Data, &d); err != nil {
		return d, fmt.Errorf("cardgame: decode game state data: %w", err)
	}
	return d, nil
}

// GetAllowedActions returns the reference pack's three action types when it
// is playerID's turn in the InGame phase; PLAY_CARD is listed once per card
// currently in hand, DRAW_CARD is offered only while the deck is
// non-empty, END_TURN is always offered.
func (p *Pack) GetAllowedActions(s session.GameSessionState, playerID string) []rules.AllowedAction {
	if s.Phase != session.PhaseInGame || s.TurnState == nil || s.TurnState.ActivePlayerID != playerID {
		return nil
	}
	data, err := loadData(s)
	if err != nil {
		return nil
	}

	actions := make([]rules.AllowedAction, 0, len(data.Hands[playerID])+2)
	for _, cardID := range data.Hands[playerID] {
		actions = append(actions, rules.AllowedAction{
			ActionType: ActionPlayCard,
			Label:      fmt.Sprintf("Play %s", cardID),
			Params:     map[string]interface{}{"cardId": cardID},
		})
	}
	if len(data.Deck) > 0 {
		actions = append(actions, rules.AllowedAction{ActionType: ActionDrawCard, Label: "Draw a card"})
	}
	actions = append(actions, rules.AllowedAction{ActionType: ActionEndTurn, Label: "End turn"})
	return actions
}

type playCardData struct {
	CardID string `json:"cardId"`
}

// ApplyAction applies one of PLAY_CARD / DRAW_CARD / END_TURN. Callers
// guarantee actionType was present in GetAllowedActions' result, but card
// membership for PLAY_CARD is still checked defensively.
func (p *Pack) ApplyAction(s session.GameSessionState, playerID, actionType string, payload []byte) (session.GameSessionState, error) {
	data, err := loadData(s)
	if err != nil {
		return s, err
	}

	switch actionType {
	case ActionPlayCard:
		var in playCardData
		if err := json.Unmarshal(payload, &in); err != nil {
			return s, fmt.Errorf("cardgame: decode PLAY_CARD data: %w", err)
		}
		hand := data.Hands[playerID]
		idx := -1
		for i, c := range hand {
			if c == in.CardID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return s, fmt.Errorf("cardgame: card %q not in %s's hand", in.CardID, playerID)
		}
		data.Hands[playerID] = append(append([]string(nil), hand[:idx]...), hand[idx+1:]...)
		data.DiscardPile = append(data.DiscardPile, in.CardID)
		data.Scores[playerID]++
		return p.commit(s, data, func(ts *session.TurnState) { ts.ActionCountThisTurn++ },
			"PLAY_CARD", fmt.Sprintf("%s played %s", playerID, in.CardID))

	case ActionDrawCard:
		if len(data.Deck) == 0 {
			return s, fmt.Errorf("cardgame: deck is empty")
		}
		card := data.Deck[0]
		data.Deck = data.Deck[1:]
		data.Hands[playerID] = append(data.Hands[playerID], card)
		return p.commit(s, data, func(ts *session.TurnState) { ts.ActionCountThisTurn++ },
			"DRAW_CARD", fmt.Sprintf("%s drew a card", playerID))

	case ActionEndTurn:
		return p.commit(s, data, func(ts *session.TurnState) {
			ts.TurnIndex = (ts.TurnIndex + 1) % len(s.PlayerOrder)
			if ts.TurnIndex == 0 {
				ts.Round++
			}
			ts.ActionCountThisTurn = 0
			ts.ActivePlayerID = s.PlayerOrder[ts.TurnIndex]
		}, "END_TURN", fmt.Sprintf("%s ended their turn", playerID))

	default:
		return s, fmt.Errorf("cardgame: unknown action type %q", actionType)
	}
}

// commit re-serializes data, applies turnMutate to a copy of the current
// TurnState, and records a single bounded log entry — the sole point where
// ApplyAction advances Version (invariant V1).
func (p *Pack) commit(s session.GameSessionState, data Data, turnMutate func(*session.TurnState), eventType, description string) (session.GameSessionState, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return s, fmt.Errorf("cardgame: encode game state data: %w", err)
	}

	next := s.WithGameState(&session.GameState{
		GameID:         s.GameState.GameID,
		Turn:           s.GameState.Turn + 1,
		ActivePlayerID: s.GameState.ActivePlayerID,
		Data:           dataBytes,
	})

	ts := *s.TurnState
	turnMutate(&ts)
	next.GameState.ActivePlayerID = ts.ActivePlayerID
	next = next.WithTurnState(&ts)

	return next.AddLogEntry(eventType, description, 0), nil
}

// CheckGameEnd ends the game once the deck is empty or the round counter
// exceeds MaxRounds; the winners are every player tied at the maximum
// score.
func (p *Pack) CheckGameEnd(s session.GameSessionState) rules.GameEndResult {
	data, err := loadData(s)
	if err != nil || s.TurnState == nil {
		return rules.GameEndResult{}
	}

	ended := len(data.Deck) == 0 || s.TurnState.Round > p.maxRounds()
	if !ended {
		return rules.GameEndResult{}
	}

	best := -1
	for _, score := range data.Scores {
		if score > best {
			best = score
		}
	}
	var winners []string
	for _, id := range s.PlayerOrder {
		if data.Scores[id] == best {
			winners = append(winners, id)
		}
	}
	return rules.GameEndResult{Ended: true, WinnerIDs: winners}
}

func recentLog(log []session.LogEntry, n int) []session.LogEntry {
	if len(log) <= n {
		return log
	}
	return log[len(log)-n:]
}

// BuildBoardView carries no hands (invariant H1): phase, scores, turn
// state, deck size, discard tail, recent log, version.
func (p *Pack) BuildBoardView(s session.GameSessionState) rules.BoardView {
	data, _ := loadData(s)

	discardTail := data.DiscardPile
	if len(discardTail) > 5 {
		discardTail = discardTail[len(discardTail)-5:]
	}

	var turnState interface{}
	if s.TurnState != nil {
		turnState = s.TurnState
	}

	return rules.BoardView{
		Phase:     s.Phase.String(),
		TurnState: turnState,
		Version:   s.Version,
		RecentLog: recentLog(s.Log, 10),
		Data: map[string]interface{}{
			"scores":        data.Scores,
			"deckRemaining": len(data.Deck),
			"discardPile":   discardTail,
		},
	}
}

// BuildPlayerView carries playerID's own hand plus their currently allowed
// actions, alongside the phase, turn state, scores and version. Deck size,
// discard tail and recent log appear only on the board view.
func (p *Pack) BuildPlayerView(s session.GameSessionState, playerID string) rules.PlayerView {
	data, _ := loadData(s)

	var turnState interface{}
	if s.TurnState != nil {
		turnState = s.TurnState
	}

	return rules.PlayerView{
		Phase:          s.Phase.String(),
		PlayerID:       playerID,
		TurnState:      turnState,
		AllowedActions: p.GetAllowedActions(s, playerID),
		Version:        s.Version,
		Data: map[string]interface{}{
			"hand":   data.Hands[playerID],
			"scores": data.Scores,
		},
	}
}
