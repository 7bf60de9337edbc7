package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestClient(t *testing.T, onClose func()) (*Client, *websocket.Conn, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	ready := make(chan *Client, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := NewClient(1, 42, conn)
		client.OnClose = onClose
		ready <- client
		client.Run()
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var client *Client
	select {
	case client = <-ready:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for server-side client")
	}

	return client, peer, func() {
		peer.Close()
		srv.Close()
	}
}

func TestClientForwardsSinkToConnection(t *testing.T) {
	client, peer, cleanup := dialTestClient(t, nil)
	defer cleanup()

	payload := []byte(`{"type":"NEW_TURN","matchId":42,"payload":{"turnId":1}}`)
	client.Send <- payload

	peer.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := peer.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != string(payload) {
		t.Fatalf("got %s; want %s", msg, payload)
	}
}

func TestClientRunsOnCloseAfterPeerDisconnect(t *testing.T) {
	closed := make(chan struct{})
	_, peer, cleanup := dialTestClient(t, func() { close(closed) })
	defer cleanup()

	peer.Close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("OnClose not invoked after peer disconnect")
	}
}
