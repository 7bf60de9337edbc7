package handlers

import (
	"context"

	"chifoumi/internal/domain"
	"chifoumi/internal/notify"
	"chifoumi/internal/repository"
	"chifoumi/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore is the identity collaborator. Lookups return (nil, nil)
// when no such user exists.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

type Handler struct {
	Users   UserStore
	Matches *service.MatchService
	Center  *notify.Center
}

func NewHandler(db *pgxpool.Pool, matches *service.MatchService, center *notify.Center) *Handler {
	return &Handler{
		Users:   repository.NewUserRepository(db),
		Matches: matches,
		Center:  center,
	}
}

// getUserID extracts the authenticated user id set by the JWT middleware.
func getUserID(c interface{ Get(string) (any, bool) }) (int64, bool) {
	uidVal, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	switch v := uidVal.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
