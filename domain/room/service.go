package room

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Service interface {
	Join(ctx context.Context, playerID string) (JoinResult, error)
	Move(ctx context.Context, playerID string, dir Direction) error
	Leave(ctx context.Context, playerID string) error
	Touch(ctx context.Context, playerID string)
	Snapshot(ctx context.Context) *Snapshot
	Subscribe() (<-chan *Snapshot, func())
}

type JoinResult struct {
	Color   string
	Waiting bool
}

// InMemoryService owns the single shared room. Every mutation runs under mu;
// readers get the snapshot published at the end of the last mutation.
type InMemoryService struct {
	mu          *sync.Mutex
	room        *Room
	palette     *palette
	rng         *rand.Rand
	now         func() time.Time
	log         *slog.Logger
	idleTimeout time.Duration

	published atomic.Pointer[Snapshot]

	subsMu sync.Mutex
	subs   map[int]chan *Snapshot
	subID  int
}

type Option func(*InMemoryService)

func WithGridSize(n int) Option {
	return func(s *InMemoryService) {
		if n >= 2 {
			s.room = newRoom(n)
		}
	}
}

func WithPalette(colors []string) Option {
	return func(s *InMemoryService) {
		if len(colors) > 0 {
			s.palette = newPalette(colors)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *InMemoryService) {
		if l != nil {
			s.log = l
		}
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(s *InMemoryService) { s.rng = rng }
}

func WithClock(now func() time.Time) Option {
	return func(s *InMemoryService) { s.now = now }
}

// WithIdleTimeout sets how long a player may stay silent before eviction.
// Zero disables eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *InMemoryService) { s.idleTimeout = d }
}

func NewInMemoryService(opts ...Option) *InMemoryService {
	s := &InMemoryService{
		mu:      &sync.Mutex{},
		room:    newRoom(DefaultGridSize),
		palette: newPalette(DefaultPalette),
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:     time.Now,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		subs:    make(map[int]chan *Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.published.Store(s.room.snapshot())
	return s
}

func (s *InMemoryService) Join(ctx context.Context, playerID string) (JoinResult, error) {
	if playerID == "" {
		return JoinResult{}, ErrMissingPlayerID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.room.index[playerID]; ok {
		p.lastSeen = s.now()
		return JoinResult{Color: p.Color, Waiting: !s.room.Started}, nil
	}

	start, ok := s.room.spawnCell(s.rng)
	if !ok {
		s.log.Warn("join rejected, grid is full", slog.String("player", playerID))
		return JoinResult{}, ErrRoomFull
	}
	if len(s.room.Players) == 0 {
		s.room.RoundID = uuid.NewString()
	}

	slot := s.palette.acquire()
	p := &Player{
		ID:        playerID,
		Snake:     []Cell{start},
		Direction: Right,
		Color:     s.palette.color(slot),
		Alive:     true,
		heading:   Right,
		slot:      slot,
		lastSeen:  s.now(),
	}
	s.room.add(p)
	if s.room.Food == nil {
		s.room.placeFood(s.rng)
	}

	s.log.Info("player joined",
		slog.String("player", playerID),
		slog.String("color", p.Color),
		slog.Int("players", len(s.room.Players)),
		slog.String("round", s.room.RoundID),
	)
	s.publishLocked()
	return JoinResult{Color: p.Color, Waiting: !s.room.Started}, nil
}

// Move queues a direction for the next tick. Reversing onto the current
// heading is ignored, as are unknown and dead players.
func (s *InMemoryService) Move(ctx context.Context, playerID string, dir Direction) error {
	if playerID == "" {
		return ErrMissingPlayerID
	}
	if !dir.Valid() {
		return ErrInvalidDirection
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.room.index[playerID]
	if !ok {
		return nil
	}
	p.lastSeen = s.now()
	if !p.Alive || dir == p.heading.Opposite() || dir == p.Direction {
		return nil
	}
	p.Direction = dir
	s.publishLocked()
	return nil
}

func (s *InMemoryService) Leave(ctx context.Context, playerID string) error {
	if playerID == "" {
		return ErrMissingPlayerID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.leaveLocked(playerID, "left") {
		s.publishLocked()
	}
	return nil
}

func (s *InMemoryService) leaveLocked(playerID, reason string) bool {
	p := s.room.remove(playerID)
	if p == nil {
		return false
	}
	s.palette.release(p.slot)
	if len(s.room.Players) == 0 {
		s.room.reset()
	}
	s.log.Info("player "+reason,
		slog.String("player", playerID),
		slog.Int("score", p.Score),
		slog.Int("players", len(s.room.Players)),
	)
	return true
}

// Touch marks a player as still connected.
func (s *InMemoryService) Touch(ctx context.Context, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.room.index[playerID]; ok {
		p.lastSeen = s.now()
	}
}

func (s *InMemoryService) Snapshot(ctx context.Context) *Snapshot {
	return s.published.Load()
}

// Tick evicts idle players and, once the room has started, advances the
// simulation by one step.
func (s *InMemoryService) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.evictIdleLocked()
	if s.room.Started && s.advanceLocked() {
		changed = true
	}
	if changed {
		s.publishLocked()
	}
}

// advanceLocked runs the step on a copy and swaps it in only if the step
// completes.
func (s *InMemoryService) advanceLocked() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tick aborted, state kept",
				slog.Any("panic", r),
				slog.Uint64("tick", s.room.Tick),
			)
			ok = false
		}
	}()

	next := s.room.clone()
	next.step(s.rng)
	s.room = next
	return true
}

func (s *InMemoryService) evictIdleLocked() bool {
	if s.idleTimeout <= 0 {
		return false
	}
	cutoff := s.now().Add(-s.idleTimeout)
	var idle []string
	for _, p := range s.room.Players {
		if p.lastSeen.Before(cutoff) {
			idle = append(idle, p.ID)
		}
	}
	for _, id := range idle {
		s.leaveLocked(id, "evicted")
	}
	return len(idle) > 0
}

// Subscribe returns a channel fed with every published snapshot, starting
// with the current one. A slow reader only sees the latest snapshot.
func (s *InMemoryService) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)

	s.subsMu.Lock()
	ch <- s.published.Load()
	s.subID++
	id := s.subID
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subsMu.Unlock()
		})
	}
}

func (s *InMemoryService) publishLocked() {
	snap := s.room.snapshot()
	s.published.Store(snap)

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale value and keep the newest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
