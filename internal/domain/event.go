package domain

// EventType - тип события матча
type EventType string

const (
	EventPlayer1Join  EventType = "PLAYER1_JOIN"
	EventPlayer2Join  EventType = "PLAYER2_JOIN"
	EventNewTurn      EventType = "NEW_TURN"
	EventPlayer1Moved EventType = "PLAYER1_MOVED"
	EventPlayer2Moved EventType = "PLAYER2_MOVED"
	EventTurnEnded    EventType = "TURN_ENDED"
	EventMatchEnded   EventType = "MATCH_ENDED"
)

// Event describes a single match state transition. Events are never
// persisted; they only feed the push channel and are discarded after
// delivery.
type Event struct {
	Type    EventType      `json:"type"`
	MatchID int64          `json:"matchId"`
	Payload map[string]any `json:"payload"`
}
