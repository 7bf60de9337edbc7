package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chifoumi/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStaleMatch is returned by Update when the row vanished underneath us.
var ErrStaleMatch = errors.New("match row not found on update")

type MatchRepository struct {
	db *pgxpool.Pool
}

func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

const matchColumns = `id, side1_id, side1_username, side2_id, side2_username, turns, winner, created_at, updated_at`

func (r *MatchRepository) Create(ctx context.Context, m *domain.Match) error {
	turnsJSON, err := json.Marshal(m.Turns)
	if err != nil {
		return err
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO matches (side1_id, side1_username, turns)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		m.Side1.ID,
		m.Side1.Username,
		turnsJSON,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// Update rewrites the mutable part of the match row (side2, turns,
// winner). Callers serialize concurrent updates to the same match.
func (r *MatchRepository) Update(ctx context.Context, m *domain.Match) error {
	turnsJSON, err := json.Marshal(m.Turns)
	if err != nil {
		return err
	}

	var side2ID *int64
	var side2Username *string
	if m.Side2 != nil {
		side2ID = &m.Side2.ID
		side2Username = &m.Side2.Username
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE matches
		 SET side2_id = $1, side2_username = $2, turns = $3, winner = $4, updated_at = now()
		 WHERE id = $5`,
		side2ID,
		side2Username,
		turnsJSON,
		m.Winner,
		m.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleMatch
	}
	return nil
}

// GetByID returns (nil, nil) when the match does not exist.
func (r *MatchRepository) GetByID(ctx context.Context, id int64) (*domain.Match, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	return scanMatch(row)
}

// FindOpenByOwner returns the open match created by the user, or
// (nil, nil) when the user has none.
func (r *MatchRepository) FindOpenByOwner(ctx context.Context, userID int64) (*domain.Match, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+matchColumns+`
		 FROM matches
		 WHERE side2_id IS NULL AND side1_id = $1`,
		userID,
	)
	return scanMatch(row)
}

// FindOpenExcluding returns the oldest open match created by any other
// user, or (nil, nil) when nobody is waiting.
func (r *MatchRepository) FindOpenExcluding(ctx context.Context, userID int64) (*domain.Match, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+matchColumns+`
		 FROM matches
		 WHERE side2_id IS NULL AND side1_id <> $1
		 ORDER BY created_at
		 LIMIT 1`,
		userID,
	)
	return scanMatch(row)
}

func (r *MatchRepository) ListByParticipant(ctx context.Context, userID int64) ([]*domain.Match, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+matchColumns+`
		 FROM matches
		 WHERE side1_id = $1 OR side2_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Match
	for rows.Next() {
		m, err := scanMatchRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func scanMatch(row pgx.Row) (*domain.Match, error) {
	m, err := scanMatchRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func scanMatchRow(row pgx.Row) (*domain.Match, error) {
	var (
		m             domain.Match
		side2ID       *int64
		side2Username *string
		turnsBytes    []byte
		createdAt     time.Time
		updatedAt     time.Time
	)

	if err := row.Scan(
		&m.ID,
		&m.Side1.ID,
		&m.Side1.Username,
		&side2ID,
		&side2Username,
		&turnsBytes,
		&m.Winner,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if side2ID != nil {
		m.Side2 = &domain.User{ID: *side2ID, Username: *side2Username}
	}
	if err := json.Unmarshal(turnsBytes, &m.Turns); err != nil {
		return nil, err
	}
	if m.Turns == nil {
		m.Turns = []domain.Turn{}
	}
	m.CreatedAt = createdAt
	m.UpdatedAt = updatedAt
	return &m, nil
}
