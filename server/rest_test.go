package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-snake/config"
	"go-snake/domain/room"
)

func newTestServer(t *testing.T, opts ...room.Option) (*Server, *room.InMemoryService) {
	t.Helper()
	svc := room.NewInMemoryService(append([]room.Option{room.WithGridSize(10)}, opts...)...)
	srv := New(svc, nil)
	t.Cleanup(srv.Close)
	return srv, svc
}

func post(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/room", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.HandleRoom(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func TestRestJoinMoveLeave(t *testing.T) {
	srv, svc := newTestServer(t)

	rec := post(t, srv, `{"action":"join","playerId":"p1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("join status = %d, body %s", rec.Code, rec.Body)
	}
	var joined joinResponse
	decode(t, rec, &joined)
	if !joined.Success || joined.PlayerID != "p1" || joined.Color != room.DefaultPalette[0] || !joined.Waiting {
		t.Fatalf("unexpected join response: %+v", joined)
	}

	rec = post(t, srv, `{"action":"move","playerId":"p1","direction":"UP"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("move status = %d, body %s", rec.Code, rec.Body)
	}
	var ack map[string]bool
	decode(t, rec, &ack)
	if !ack["ok"] {
		t.Fatalf("move ack = %v", ack)
	}
	if p, _ := svc.Snapshot(context.Background()).Player("p1"); p.Direction != room.Up {
		t.Fatalf("direction = %s, want UP", p.Direction)
	}

	rec = post(t, srv, `{"action":"leave","playerId":"p1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("leave status = %d, body %s", rec.Code, rec.Body)
	}
	if n := len(svc.Snapshot(context.Background()).Players); n != 0 {
		t.Fatalf("players after leave = %d", n)
	}
}

func TestRestUnknownPlayerIsOK(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, body := range []string{
		`{"action":"move","playerId":"ghost","direction":"DOWN"}`,
		`{"action":"leave","playerId":"ghost"}`,
	} {
		if rec := post(t, srv, body); rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", body, rec.Code)
		}
	}
}

func TestRestRejectsMalformedIntents(t *testing.T) {
	srv, _ := newTestServer(t)
	post(t, srv, `{"action":"join","playerId":"p1"}`)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"action":`, http.StatusBadRequest},
		{"unknown action", `{"action":"dance","playerId":"p1"}`, http.StatusBadRequest},
		{"join without id", `{"action":"join"}`, http.StatusBadRequest},
		{"move without id", `{"action":"move","direction":"UP"}`, http.StatusBadRequest},
		{"lowercase direction", `{"action":"move","playerId":"p1","direction":"up"}`, http.StatusBadRequest},
		{"missing direction", `{"action":"move","playerId":"p1"}`, http.StatusBadRequest},
		{"leave without id", `{"action":"leave"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, srv, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var res errorResponse
			decode(t, rec, &res)
			if res.Error == "" {
				t.Fatal("error message missing")
			}
		})
	}
}

func TestRestRoomFull(t *testing.T) {
	srv, _ := newTestServer(t, room.WithGridSize(2))
	for _, id := range []string{"a", "b", "c"} {
		if rec := post(t, srv, `{"action":"join","playerId":"`+id+`"}`); rec.Code != http.StatusOK {
			t.Fatalf("join %s status = %d", id, rec.Code)
		}
	}
	if rec := post(t, srv, `{"action":"join","playerId":"d"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("full room status = %d, want 503", rec.Code)
	}
}

func TestRestSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)

	get := func() map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/room", nil)
		req.Header.Set("X-Player-Id", "p1")
		rec := httptest.NewRecorder()
		srv.HandleRoom(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET status = %d", rec.Code)
		}
		var out map[string]any
		decode(t, rec, &out)
		return out
	}

	empty := get()
	if players, ok := empty["players"].([]any); !ok || len(players) != 0 {
		t.Fatalf("players = %#v, want empty list", empty["players"])
	}
	if food, ok := empty["food"]; !ok || food != nil {
		t.Fatalf("food = %#v, want null", empty["food"])
	}
	if empty["gridSize"] != float64(10) || empty["started"] != false {
		t.Fatalf("unexpected snapshot: %#v", empty)
	}

	post(t, srv, `{"action":"join","playerId":"p1"}`)
	snap := get()
	players := snap["players"].([]any)
	if len(players) != 1 {
		t.Fatalf("players = %d, want 1", len(players))
	}
	p := players[0].(map[string]any)
	for _, key := range []string{"id", "snake", "direction", "score", "color", "alive"} {
		if _, ok := p[key]; !ok {
			t.Fatalf("player field %q missing: %#v", key, p)
		}
	}
	head := p["snake"].([]any)[0].(map[string]any)
	if _, ok := head["x"]; !ok {
		t.Fatalf("cell without x: %#v", head)
	}
	if _, ok := snap["food"].(map[string]any); !ok {
		t.Fatalf("food = %#v, want a cell", snap["food"])
	}
}

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

// pollFor polls GET /room like the browser client, every 100ms of clock
// time, ticking the room in between.
func pollFor(t *testing.T, srv *Server, svc *room.InMemoryService, clock *stepClock, d time.Duration, target string) {
	t.Helper()
	for elapsed := time.Duration(0); elapsed < d; elapsed += 100 * time.Millisecond {
		clock.t = clock.t.Add(100 * time.Millisecond)
		rec := httptest.NewRecorder()
		srv.HandleRoom(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", target, rec.Code)
		}
		svc.Tick(context.Background())
	}
}

func TestRestPollingPlayerNotEvictedByDefault(t *testing.T) {
	clock := &stepClock{t: time.Unix(0, 0)}
	srv, svc := newTestServer(t,
		room.WithClock(clock.now),
		room.WithIdleTimeout(config.Default().IdleTimeout),
	)
	if rec := post(t, srv, `{"action":"join","playerId":"alice"}`); rec.Code != http.StatusOK {
		t.Fatalf("join status = %d", rec.Code)
	}

	pollFor(t, srv, svc, clock, 31*time.Second, "/room")
	if _, ok := svc.Snapshot(context.Background()).Player("alice"); !ok {
		t.Fatal("player polling without an id was evicted")
	}
}

func TestRestPollWithQueryIDKeepsPlayer(t *testing.T) {
	clock := &stepClock{t: time.Unix(0, 0)}
	srv, svc := newTestServer(t,
		room.WithClock(clock.now),
		room.WithIdleTimeout(30*time.Second),
	)
	post(t, srv, `{"action":"join","playerId":"alice"}`)
	post(t, srv, `{"action":"join","playerId":"bob"}`)

	pollFor(t, srv, svc, clock, 31*time.Second, "/room?playerId=alice")
	snap := svc.Snapshot(context.Background())
	if _, ok := snap.Player("alice"); !ok {
		t.Fatal("alice polled with her id and was evicted")
	}
	if _, ok := snap.Player("bob"); ok {
		t.Fatal("bob went silent and was kept")
	}
}

func TestRestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.HandleRoom(rec, httptest.NewRequest(http.MethodDelete, "/room", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := http.NewServeMux()
	srv.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body)
	}
}
