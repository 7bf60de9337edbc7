package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"chifoumi/internal/domain"
	"chifoumi/internal/http/middleware"
	"chifoumi/internal/notify"
	"chifoumi/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.User
	byName map[string]*domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{nextID: 1, byID: map[int64]*domain.User{}, byName: map[string]*domain.User{}}
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = f.nextID
	f.nextID++
	u.CreatedAt = time.Now()
	cp := *u
	f.byID[u.ID] = &cp
	f.byName[u.Username] = &cp
	return nil
}

type fakeMatches struct {
	mu      sync.Mutex
	nextID  int64
	matches map[int64]*domain.Match
}

func newFakeMatches() *fakeMatches {
	return &fakeMatches{nextID: 1, matches: map[int64]*domain.Match{}}
}

func copyMatch(m *domain.Match) *domain.Match {
	out := *m
	out.Turns = append([]domain.Turn(nil), m.Turns...)
	if m.Side2 != nil {
		s2 := *m.Side2
		out.Side2 = &s2
	}
	if m.Winner != nil {
		w := *m.Winner
		out.Winner = &w
	}
	return &out
}

func (f *fakeMatches) Create(_ context.Context, m *domain.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = f.nextID
	f.nextID++
	f.matches[m.ID] = copyMatch(m)
	return nil
}

func (f *fakeMatches) Update(_ context.Context, m *domain.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.matches[m.ID]; !ok {
		return errors.New("no such match")
	}
	f.matches[m.ID] = copyMatch(m)
	return nil
}

func (f *fakeMatches) GetByID(_ context.Context, id int64) (*domain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return nil, nil
	}
	return copyMatch(m), nil
}

func (f *fakeMatches) FindOpenByOwner(_ context.Context, userID int64) (*domain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.matches {
		if m.Side2 == nil && m.Side1.ID == userID {
			return copyMatch(m), nil
		}
	}
	return nil, nil
}

func (f *fakeMatches) FindOpenExcluding(_ context.Context, userID int64) (*domain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var oldest *domain.Match
	for _, m := range f.matches {
		if m.Side2 != nil || m.Side1.ID == userID {
			continue
		}
		if oldest == nil || m.ID < oldest.ID {
			oldest = m
		}
	}
	if oldest == nil {
		return nil, nil
	}
	return copyMatch(oldest), nil
}

func (f *fakeMatches) ListByParticipant(_ context.Context, userID int64) ([]*domain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*domain.Match
	for _, m := range f.matches {
		if m.IsParticipant(userID) {
			res = append(res, copyMatch(m))
		}
	}
	return res, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service.InitJWT("test-secret")

	center := notify.NewCenter()
	matches := service.NewMatchService(newFakeMatches(), center)
	h := &Handler{Users: newFakeUsers(), Matches: matches, Center: center}

	r := gin.New()
	r.POST("/login", h.Login)
	r.POST("/matches", middleware.JWT(), h.CreateOrJoin)
	r.GET("/matches", middleware.JWT(), h.ListMatches)
	r.GET("/matches/:id", middleware.JWT(), h.GetMatch)
	r.POST("/matches/:id/turns/:turnId", middleware.JWT(), h.SubmitMove)
	r.GET("/matches/:id/subscribe", middleware.JWT(), h.Subscribe)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	w := doJSON(t, r, "POST", "/login", "", gin.H{"username": username})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d", username, w.Code)
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("login %s: empty token", username)
	}
	return res.Token
}

func TestLogin(t *testing.T) {
	r := newTestRouter(t)

	token := login(t, r, "alice")

	userID, err := service.ParseJWT(token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if userID != 1 {
		t.Fatalf("token user id = %d; want 1", userID)
	}

	// same username logs into the same account
	again := login(t, r, "alice")
	if id, _ := service.ParseJWT(again); id != userID {
		t.Fatalf("re-login user id = %d; want %d", id, userID)
	}

	if w := doJSON(t, r, "POST", "/login", "", gin.H{"username": "  "}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank username: status %d; want 400", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	r := newTestRouter(t)

	if w := doJSON(t, r, "POST", "/matches", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d; want 401", w.Code)
	}
	if w := doJSON(t, r, "POST", "/matches", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d; want 401", w.Code)
	}
}

func TestMatchEndpointStatusCodes(t *testing.T) {
	r := newTestRouter(t)

	aliceTok := login(t, r, "alice")
	bobTok := login(t, r, "bob")
	carolTok := login(t, r, "carol")

	// alice opens a match
	w := doJSON(t, r, "POST", "/matches", aliceTok, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d; want 201", w.Code)
	}
	var m struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode match: %v", err)
	}

	// queueing twice is rejected
	if w := doJSON(t, r, "POST", "/matches", aliceTok, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("double queue: status %d; want 400", w.Code)
	}

	// bob joins
	if w := doJSON(t, r, "POST", "/matches", bobTok, nil); w.Code != http.StatusCreated {
		t.Fatalf("join: status %d; want 201", w.Code)
	}

	matchPath := fmt.Sprintf("/matches/%d", m.ID)

	if w := doJSON(t, r, "GET", matchPath, carolTok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("outsider read: status %d; want 403", w.Code)
	}
	if w := doJSON(t, r, "GET", "/matches/99999", aliceTok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown match: status %d; want 404", w.Code)
	}

	movePath := func(turn int) string { return fmt.Sprintf("%s/turns/%d", matchPath, turn) }

	if w := doJSON(t, r, "POST", movePath(2), aliceTok, gin.H{"move": "rock"}); w.Code != http.StatusConflict {
		t.Fatalf("wrong turn: status %d; want 409", w.Code)
	}
	if w := doJSON(t, r, "POST", movePath(1), aliceTok, gin.H{"move": "lizard"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad move: status %d; want 400", w.Code)
	}
	if w := doJSON(t, r, "POST", movePath(1), carolTok, gin.H{"move": "rock"}); w.Code != http.StatusForbidden {
		t.Fatalf("outsider move: status %d; want 403", w.Code)
	}

	if w := doJSON(t, r, "POST", movePath(1), aliceTok, gin.H{"move": "rock"}); w.Code != http.StatusAccepted {
		t.Fatalf("valid move: status %d; want 202", w.Code)
	}
	if w := doJSON(t, r, "POST", movePath(1), aliceTok, gin.H{"move": "paper"}); w.Code != http.StatusConflict {
		t.Fatalf("duplicate move: status %d; want 409", w.Code)
	}

	// bob reads the match: alice's in-flight move is redacted
	w = doJSON(t, r, "GET", matchPath, bobTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read: status %d; want 200", w.Code)
	}
	var view struct {
		Turns []struct {
			Side1 string `json:"side1"`
		} `json:"turns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Turns) != 1 || view.Turns[0].Side1 != "?" {
		t.Fatalf("bob sees turns %+v; want side1 move hidden", view.Turns)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	r := newTestRouter(t)

	aliceTok := login(t, r, "alice")
	bobTok := login(t, r, "bob")

	w := doJSON(t, r, "POST", "/matches", aliceTok, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d", w.Code)
	}
	var m struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode match: %v", err)
	}

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := fmt.Sprintf("%s/matches/%d/subscribe?token=%s",
		"ws"+strings.TrimPrefix(srv.URL, "http"), m.ID, aliceTok)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial subscribe: %v", err)
	}
	defer conn.Close()

	// bob joins over plain HTTP; alice's push channel must see it
	if w := doJSON(t, r, "POST", "/matches", bobTok, nil); w.Code != http.StatusCreated {
		t.Fatalf("join: status %d", w.Code)
	}

	readEvent := func() domain.Event {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		var ev domain.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("unmarshal event %s: %v", msg, err)
		}
		return ev
	}

	if ev := readEvent(); ev.Type != domain.EventPlayer2Join {
		t.Fatalf("first event = %s; want PLAYER2_JOIN", ev.Type)
	}
	if ev := readEvent(); ev.Type != domain.EventNewTurn {
		t.Fatalf("second event = %s; want NEW_TURN", ev.Type)
	}
}

func TestSubscribeRejectsOutsiders(t *testing.T) {
	r := newTestRouter(t)

	aliceTok := login(t, r, "alice")
	carolTok := login(t, r, "carol")

	w := doJSON(t, r, "POST", "/matches", aliceTok, nil)
	var m struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode match: %v", err)
	}

	path := fmt.Sprintf("/matches/%d/subscribe", m.ID)
	if w := doJSON(t, r, "GET", path, carolTok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("outsider subscribe: status %d; want 403", w.Code)
	}
}
