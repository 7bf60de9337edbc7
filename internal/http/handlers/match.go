package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"chifoumi/internal/domain"
	"chifoumi/internal/service"

	"github.com/gin-gonic/gin"
)

// currentUser loads the authenticated user, or writes the error response
// and returns false.
func (h *Handler) currentUser(c *gin.Context) (domain.User, bool) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return domain.User{}, false
	}

	user, err := h.Users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return domain.User{}, false
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return domain.User{}, false
	}
	return *user, true
}

func matchIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return 0, false
	}
	return id, true
}

// CreateOrJoin queues the caller: join a waiting opponent's match, or
// open a new one. Events are published after the response is written.
func (h *Handler) CreateOrJoin(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	match, publish, err := h.Matches.CreateOrJoin(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyQueued) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "you already have an open match"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	c.JSON(http.StatusCreated, match)
	publish()
}

// ListMatches returns every match the caller participates in.
func (h *Handler) ListMatches(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	matches, err := h.Matches.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if matches == nil {
		matches = []*domain.Match{}
	}
	c.JSON(http.StatusOK, matches)
}

// GetMatch returns one match, redacted for the caller.
func (h *Handler) GetMatch(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	matchID, ok := matchIDParam(c)
	if !ok {
		return
	}

	match, err := h.Matches.Get(c.Request.Context(), matchID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMatchNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		}
		return
	}

	c.JSON(http.StatusOK, match)
}

type MoveRequest struct {
	Move string `json:"move"`
}

// SubmitMove records the caller's move for one turn. Responds 202 before
// any event is published.
func (h *Handler) SubmitMove(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	matchID, ok := matchIDParam(c)
	if !ok {
		return
	}

	turnIndex, err := strconv.Atoi(c.Param("turnId"))
	if err != nil || turnIndex < 1 || turnIndex > domain.TurnsPerMatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid turn id"})
		return
	}

	var req MoveRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	move, err := domain.ParseMove(req.Move)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "move must be rock, paper or scissors"})
		return
	}

	publish, err := h.Matches.SubmitMove(c.Request.Context(), matchID, user, turnIndex, move)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMatchNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		case errors.Is(err, service.ErrInvalidTurn),
			errors.Is(err, service.ErrAlreadyMoved),
			errors.Is(err, service.ErrMatchComplete):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		}
		return
	}

	c.Status(http.StatusAccepted)
	publish()
}
