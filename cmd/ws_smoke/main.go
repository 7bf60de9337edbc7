package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"chifoumi/internal/db"
	"chifoumi/internal/domain"
	"chifoumi/internal/repository"
	"chifoumi/internal/service"
)

// Smoke test against a running server: pairs two users into a match,
// subscribes both push channels, plays one turn and prints the events.
func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	ur := repository.NewUserRepository(pool)
	ctx := context.Background()

	ensureUser := func(username string) *domain.User {
		u, err := ur.GetByUsername(ctx, username)
		if err != nil {
			log.Fatalf("get %s: %v", username, err)
		}
		if u == nil {
			u = &domain.User{Username: username}
			if err := ur.Create(ctx, u); err != nil {
				log.Fatalf("create %s: %v", username, err)
			}
		}
		return u
	}

	uA := ensureUser("smokeA")
	uB := ensureUser("smokeB")

	service.InitJWT(secret)
	tokenA, err := service.GenerateJWT(uA.ID)
	if err != nil {
		log.Fatalf("gen token A: %v", err)
	}
	tokenB, err := service.GenerateJWT(uB.ID)
	if err != nil {
		log.Fatalf("gen token B: %v", err)
	}

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	base := fmt.Sprintf("http://127.0.0.1:%s", port)

	// A opens the match, B joins it
	matchID := createOrJoin(base, tokenA)
	log.Printf("A queued in match %d", matchID)

	connA := subscribe(port, matchID, tokenA)
	defer connA.Close()

	if joined := createOrJoin(base, tokenB); joined != matchID {
		log.Fatalf("B landed in match %d; want %d", joined, matchID)
	}
	log.Printf("B joined match %d", matchID)

	connB := subscribe(port, matchID, tokenB)
	defer connB.Close()

	// play turn 1
	submitMove(base, tokenA, matchID, 1, "rock")
	submitMove(base, tokenB, matchID, 1, "scissors")

	drainEvents(connA, "A")
	drainEvents(connB, "B")

	log.Println("smoke test finished")
}

func createOrJoin(base, token string) int64 {
	req, _ := http.NewRequest("POST", base+"/matches", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("POST /matches: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		log.Fatalf("POST /matches: status %d", res.StatusCode)
	}

	var m struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&m); err != nil {
		log.Fatalf("decode match: %v", err)
	}
	return m.ID
}

func subscribe(port string, matchID int64, token string) *websocket.Conn {
	url := fmt.Sprintf("ws://127.0.0.1:%s/matches/%d/subscribe?token=%s", port, matchID, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func submitMove(base, token string, matchID int64, turn int, move string) {
	body, _ := json.Marshal(map[string]string{"move": move})
	url := fmt.Sprintf("%s/matches/%d/turns/%d", base, matchID, turn)
	req, _ := http.NewRequest("POST", url, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("POST %s: %v", url, err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusAccepted {
		log.Fatalf("POST %s: status %d", url, res.StatusCode)
	}
}

func drainEvents(conn *websocket.Conn, name string) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			continue
		}
		log.Printf("%s got: %s", name, msg)
	}
}
