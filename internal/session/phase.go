// Package session holds the value types that make up GameSessionState: the
// authoritative, immutable snapshot of one room's lifecycle. Every exported
// function here returns a new value rather than mutating its receiver in
// place (invariant P1 — no stealth mutation).
package session

import (
	"encoding/json"
	"fmt"
)

// Phase is the room's lifecycle state. Transitions only happen through
// explicit WithPhase calls (made by gameserver and by rules packs), never
// implicitly.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseInGame
	PhaseRoundEnd
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "LOBBY"
	case PhaseInGame:
		return "IN_GAME"
	case PhaseRoundEnd:
		return "ROUND_END"
	case PhaseFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

func ParsePhase(s string) (Phase, error) {
	switch s {
	case "LOBBY":
		return PhaseLobby, nil
	case "IN_GAME":
		return PhaseInGame, nil
	case "ROUND_END":
		return PhaseRoundEnd, nil
	case "FINISHED":
		return PhaseFinished, nil
	default:
		return 0, fmt.Errorf("session: unknown phase %q", s)
	}
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// TurnStep is the sub-phase within a single player's turn.
type TurnStep int

const (
	StepStart TurnStep = iota
	StepMain
	StepEnd
)

func (s TurnStep) String() string {
	switch s {
	case StepStart:
		return "START"
	case StepMain:
		return "MAIN"
	case StepEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

func ParseTurnStep(s string) (TurnStep, error) {
	switch s {
	case "START":
		return StepStart, nil
	case "MAIN":
		return StepMain, nil
	case "END":
		return StepEnd, nil
	default:
		return 0, fmt.Errorf("session: unknown turn step %q", s)
	}
}

func (s TurnStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TurnStep) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseTurnStep(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
