package room

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// advance steps the simulation regardless of the started flag.
func (s *InMemoryService) advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.advanceLocked() {
		return false
	}
	s.publishLocked()
	return true
}

func newTestService(t *testing.T, opts ...Option) *InMemoryService {
	t.Helper()
	base := []Option{
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewInMemoryService(append(base, opts...)...)
}

func mustJoin(t *testing.T, s *InMemoryService, id string) JoinResult {
	t.Helper()
	res, err := s.Join(context.Background(), id)
	if err != nil {
		t.Fatalf("Join(%q) failed: %v", id, err)
	}
	return res
}

// place puts a player's snake at fixed cells, heading dir.
func place(t *testing.T, s *InMemoryService, id string, dir Direction, cells ...Cell) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.room.index[id]
	if !ok {
		t.Fatalf("player %q not in room", id)
	}
	p.Snake = cells
	p.Direction = dir
	p.heading = dir
}

func setFood(s *InMemoryService, c *Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room.Food = c
}

func playerView(t *testing.T, s *InMemoryService, id string) PlayerView {
	t.Helper()
	p, ok := s.Snapshot(context.Background()).Player(id)
	if !ok {
		t.Fatalf("player %q missing from snapshot", id)
	}
	return p
}
