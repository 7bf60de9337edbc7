package domain

import (
	"errors"
	"time"
)

// Move - ход игрока
type Move string

const (
	MoveRock     Move = "rock"
	MovePaper    Move = "paper"
	MoveScissors Move = "scissors"
)

var ErrInvalidMove = errors.New("invalid move")

func ParseMove(s string) (Move, error) {
	switch Move(s) {
	case MoveRock, MovePaper, MoveScissors:
		return Move(s), nil
	}
	return "", ErrInvalidMove
}

// Side identifies a seat in a match.
const (
	SideOne = "side1"
	SideTwo = "side2"
	// ResultDraw is used both as a turn winner and as a match winner.
	ResultDraw = "draw"
)

// TurnsPerMatch - best of three
const TurnsPerMatch = 3

// MoveHidden replaces an opponent's move on an unresolved turn in any
// view returned to a player.
const MoveHidden = "?"

// Turn holds at most one move per side. Winner is set exactly once, when
// both moves are present, and never changes afterwards.
type Turn struct {
	Side1Move Move   `json:"side1,omitempty"`
	Side2Move Move   `json:"side2,omitempty"`
	Winner    string `json:"winner,omitempty"` // side1 | side2 | draw
}

// Resolved reports whether the turn has a recorded winner.
func (t Turn) Resolved() bool {
	return t.Winner != ""
}

// MatchState - derived lifecycle state
type MatchState string

const (
	MatchOpen       MatchState = "open"        // waiting for a second player
	MatchInProgress MatchState = "in_progress" // both seats taken, < 3 resolved turns
	MatchComplete   MatchState = "complete"    // 3 turns resolved, winner set
)

type Match struct {
	ID        int64     `db:"id" json:"id"`
	Side1     User      `json:"user1"`
	Side2     *User     `json:"user2"`
	Turns     []Turn    `json:"turns"`
	Winner    *string   `json:"winner,omitempty"` // username or "draw"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Match) State() MatchState {
	if m.Side2 == nil {
		return MatchOpen
	}
	if m.Winner != nil {
		return MatchComplete
	}
	return MatchInProgress
}

// IsParticipant reports whether the user occupies a seat in this match.
func (m *Match) IsParticipant(userID int64) bool {
	if m.Side1.ID == userID {
		return true
	}
	return m.Side2 != nil && m.Side2.ID == userID
}

// SideOf returns the seat the user occupies ("" for non-participants).
func (m *Match) SideOf(userID int64) string {
	if m.Side1.ID == userID {
		return SideOne
	}
	if m.Side2 != nil && m.Side2.ID == userID {
		return SideTwo
	}
	return ""
}

// CurrentTurnIndex returns the 1-based index of the turn currently
// accepting moves: the first unresolved turn, or the next sequential
// index when all recorded turns are resolved. Returns 0 when the match
// already has three resolved turns.
func (m *Match) CurrentTurnIndex() int {
	for i, t := range m.Turns {
		if !t.Resolved() {
			return i + 1
		}
	}
	if len(m.Turns) < TurnsPerMatch {
		return len(m.Turns) + 1
	}
	return 0
}
