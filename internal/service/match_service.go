package service

import (
	"context"
	"errors"
	"sync"

	"chifoumi/internal/domain"
	"chifoumi/internal/game"
	"chifoumi/internal/logger"
)

var (
	ErrAlreadyQueued  = errors.New("user already has an open match")
	ErrMatchNotFound  = errors.New("match not found")
	ErrNotParticipant = errors.New("user is not a participant of this match")
	ErrInvalidTurn    = errors.New("turn is not open for moves")
	ErrAlreadyMoved   = errors.New("move already submitted for this turn")
	ErrMatchComplete  = errors.New("match already complete")
)

// MatchStore is the persistence collaborator. Find lookups return
// (nil, nil) when nothing matches.
type MatchStore interface {
	Create(ctx context.Context, m *domain.Match) error
	Update(ctx context.Context, m *domain.Match) error
	GetByID(ctx context.Context, id int64) (*domain.Match, error)
	FindOpenByOwner(ctx context.Context, userID int64) (*domain.Match, error)
	FindOpenExcluding(ctx context.Context, userID int64) (*domain.Match, error)
	ListByParticipant(ctx context.Context, userID int64) ([]*domain.Match, error)
}

// Publisher receives the events produced by state transitions.
type Publisher interface {
	Publish(domain.Event)
}

// MatchService owns the match lifecycle: matchmaking, move submission,
// turn and match resolution. Mutations go through read-mutate-save on
// the store, so all writes to one match are serialized behind a
// per-match lock; matchmaking is serialized as a whole because it scans
// the open-match queue.
type MatchService struct {
	store MatchStore
	pub   Publisher

	queueMu sync.Mutex

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func NewMatchService(store MatchStore, pub Publisher) *MatchService {
	return &MatchService{
		store: store,
		pub:   pub,
		locks: make(map[int64]*sync.Mutex),
	}
}

func (s *MatchService) lockFor(matchID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[matchID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[matchID] = mu
	}
	return mu
}

// forgetLock drops the per-match lock once no further moves can arrive.
func (s *MatchService) forgetLock(matchID int64) {
	s.locksMu.Lock()
	delete(s.locks, matchID)
	s.locksMu.Unlock()
}

// publishAll returns a closure emitting the given events in order.
// Callers invoke it only after the response has been written, so event
// delivery never races ahead of the state a subsequent read would see.
func (s *MatchService) publishAll(events []domain.Event) func() {
	return func() {
		for _, ev := range events {
			s.pub.Publish(ev)
		}
	}
}

// CreateOrJoin queues the user for a match. If another user is already
// waiting, the caller joins as side2 and the match starts; otherwise a
// fresh open match is created. A user may own at most one open match.
// The returned func publishes the resulting events and must be called
// after the response is sent.
func (s *MatchService) CreateOrJoin(ctx context.Context, user domain.User) (*domain.Match, func(), error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	own, err := s.store.FindOpenByOwner(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if own != nil {
		return nil, nil, ErrAlreadyQueued
	}

	m, err := s.store.FindOpenExcluding(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	if m == nil {
		m = &domain.Match{Side1: user, Turns: []domain.Turn{}}
		if err := s.store.Create(ctx, m); err != nil {
			return nil, nil, err
		}

		logger.Info("match created", "match_id", m.ID, "user", user.Username)
		events := []domain.Event{{
			Type:    domain.EventPlayer1Join,
			MatchID: m.ID,
			Payload: map[string]any{"user": user.Username},
		}}
		return redactFor(m, user.ID), s.publishAll(events), nil
	}

	u := user
	m.Side2 = &u
	if err := s.store.Update(ctx, m); err != nil {
		return nil, nil, err
	}

	logger.Info("match joined", "match_id", m.ID, "user", user.Username)
	events := []domain.Event{
		{
			Type:    domain.EventPlayer2Join,
			MatchID: m.ID,
			Payload: map[string]any{"user": user.Username},
		},
		{
			Type:    domain.EventNewTurn,
			MatchID: m.ID,
			Payload: map[string]any{"turnId": 1},
		},
	}
	return redactFor(m, user.ID), s.publishAll(events), nil
}

// SubmitMove records the user's move for the given 1-based turn index,
// resolving the turn when it becomes complete and the match after the
// third resolved turn. The returned func publishes the resulting events
// and must be called after the response is sent.
func (s *MatchService) SubmitMove(ctx context.Context, matchID int64, user domain.User, turnIndex int, move domain.Move) (func(), error) {
	mu := s.lockFor(matchID)
	mu.Lock()
	defer mu.Unlock()

	m, err := s.store.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}

	side := m.SideOf(user.ID)
	if side == "" {
		return nil, ErrNotParticipant
	}
	if m.State() == domain.MatchComplete {
		return nil, ErrMatchComplete
	}
	if m.Side2 == nil {
		// no opponent yet, turn 1 has not opened
		return nil, ErrInvalidTurn
	}

	current := m.CurrentTurnIndex()
	if current == 0 {
		return nil, ErrMatchComplete
	}
	if turnIndex != current {
		return nil, ErrInvalidTurn
	}

	if turnIndex > len(m.Turns) {
		m.Turns = append(m.Turns, domain.Turn{})
	}
	turn := &m.Turns[turnIndex-1]

	movedEvent := domain.EventPlayer1Moved
	if side == domain.SideOne {
		if turn.Side1Move != "" {
			return nil, ErrAlreadyMoved
		}
		turn.Side1Move = move
	} else {
		if turn.Side2Move != "" {
			return nil, ErrAlreadyMoved
		}
		turn.Side2Move = move
		movedEvent = domain.EventPlayer2Moved
	}

	events := []domain.Event{{
		Type:    movedEvent,
		MatchID: m.ID,
		Payload: map[string]any{"turn": turnIndex},
	}}

	if turn.Side1Move != "" && turn.Side2Move != "" {
		turn.Winner = game.ResolveTurn(turn.Side1Move, turn.Side2Move)
		events = append(events, domain.Event{
			Type:    domain.EventTurnEnded,
			MatchID: m.ID,
			Payload: map[string]any{"newTurnId": turnIndex + 1, "winner": turn.Winner},
		})

		if turnIndex == domain.TurnsPerMatch {
			winner := domain.ResultDraw
			switch game.ResolveMatch(m.Turns) {
			case domain.SideOne:
				winner = m.Side1.Username
			case domain.SideTwo:
				winner = m.Side2.Username
			}
			m.Winner = &winner
			events = append(events, domain.Event{
				Type:    domain.EventMatchEnded,
				MatchID: m.ID,
				Payload: map[string]any{"winner": winner},
			})
		}
	}

	if err := s.store.Update(ctx, m); err != nil {
		return nil, err
	}

	if m.State() == domain.MatchComplete {
		logger.Info("match finished", "match_id", m.ID, "winner", *m.Winner)
		s.forgetLock(m.ID)
	}

	return s.publishAll(events), nil
}

// Get returns the match as seen by the requesting participant, with
// unresolved opponent moves redacted.
func (s *MatchService) Get(ctx context.Context, matchID, userID int64) (*domain.Match, error) {
	m, err := s.store.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	if !m.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return redactFor(m, userID), nil
}

// List returns every match the user participates in, redacted.
func (s *MatchService) List(ctx context.Context, userID int64) ([]*domain.Match, error) {
	matches, err := s.store.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := make([]*domain.Match, len(matches))
	for i, m := range matches {
		res[i] = redactFor(m, userID)
	}
	return res, nil
}

// IsParticipant reports whether the user may observe the match. Used by
// the push channel before subscribing.
func (s *MatchService) IsParticipant(ctx context.Context, matchID, userID int64) (bool, error) {
	m, err := s.store.GetByID(ctx, matchID)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, ErrMatchNotFound
	}
	return m.IsParticipant(userID), nil
}

// redactFor copies the match, hiding the opponent's move on any
// unresolved turn so a player can never observe an in-flight move.
// Resolved turns are returned as recorded. A match without a second
// player has no redactable turns.
func redactFor(m *domain.Match, userID int64) *domain.Match {
	out := *m
	out.Turns = make([]domain.Turn, len(m.Turns))
	copy(out.Turns, m.Turns)

	side := m.SideOf(userID)
	for i := range out.Turns {
		t := &out.Turns[i]
		if t.Resolved() {
			continue
		}
		if side != domain.SideOne && t.Side1Move != "" {
			t.Side1Move = domain.MoveHidden
		}
		if side != domain.SideTwo && t.Side2Move != "" {
			t.Side2Move = domain.MoveHidden
		}
	}
	return &out
}
