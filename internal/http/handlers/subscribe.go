package handlers

import (
	"errors"
	"net/http"
	"os"

	"chifoumi/internal/logger"
	"chifoumi/internal/service"
	"chifoumi/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Subscribe opens the push channel for one match. The JWT middleware has
// already authenticated the caller (token query parameter for websocket
// clients); only participants may listen. Every event published for the
// match is written to the socket as one JSON text message until the
// client disconnects.
func (h *Handler) Subscribe(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	matchID, ok := matchIDParam(c)
	if !ok {
		return
	}

	participant, err := h.Matches.IsParticipant(c.Request.Context(), matchID, userID)
	if err != nil {
		if errors.Is(err, service.ErrMatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if !participant {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", "match_id", matchID, "error", err)
		return
	}

	client := ws.NewClient(userID, matchID, conn)
	sub := h.Center.Subscribe(userID, matchID, client.Send)
	client.OnClose = func() { h.Center.Unsubscribe(sub) }

	go client.Run()
}
