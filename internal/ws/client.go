package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	// sendBuffer bounds how far a slow reader may fall behind before
	// the notification center treats the sink as broken.
	sendBuffer = 64
)

// Client pumps events from a subscriber sink channel onto a websocket
// connection for the lifetime of a push subscription. It owns the
// connection; the notification center only ever sees the Send channel.
type Client struct {
	UserID  int64
	MatchID int64
	Conn    *websocket.Conn
	Send    chan []byte

	// OnClose runs once when either pump stops, before the connection
	// is closed. The subscribe handler uses it to unsubscribe.
	OnClose func()

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(userID, matchID int64, conn *websocket.Conn) *Client {
	return &Client{
		UserID:  userID,
		MatchID: matchID,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

// Run starts both pumps and blocks until the connection is gone.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump discards anything the subscriber sends; its job is to notice
// the disconnect (close frame, dead peer) and tear the client down.
func (c *Client) readPump() {
	defer c.close()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: user=%d match=%d read error: %v", c.UserID, c.MatchID, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("ws: user=%d match=%d write error: %v", c.UserID, c.MatchID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.OnClose != nil {
			c.OnClose()
		}
		_ = c.Conn.Close()
	})
}
