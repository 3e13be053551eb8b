package room

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	DefaultGridSize = 40
	FoodReward      = 10
)

var (
	ErrMissingPlayerID  = errors.New("missing playerId")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrRoomFull         = errors.New("no free cell left on the grid")
)

// Cell is a grid coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) add(o Cell) Cell { return Cell{X: c.X + o.X, Y: c.Y + o.Y} }

type Direction string

const (
	Up    Direction = "UP"
	Down  Direction = "DOWN"
	Left  Direction = "LEFT"
	Right Direction = "RIGHT"
)

// ParseDirection accepts the exact upper-case names only.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
	return d, nil
}

func (d Direction) Valid() bool {
	switch d {
	case Up, Down, Left, Right:
		return true
	}
	return false
}

func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return d
}

func (d Direction) offset() Cell {
	switch d {
	case Up:
		return Cell{Y: -1}
	case Down:
		return Cell{Y: 1}
	case Left:
		return Cell{X: -1}
	case Right:
		return Cell{X: 1}
	}
	return Cell{}
}

type Player struct {
	ID        string
	Snake     []Cell // head first
	Direction Direction
	Score     int
	Color     string
	Alive     bool

	heading  Direction // direction used by the last tick
	slot     int
	lastSeen time.Time
}

// Room is the shared world. Players keep join order.
type Room struct {
	GridSize int
	Food     *Cell
	Started  bool
	Players  []*Player
	Tick     uint64
	RoundID  string

	index map[string]*Player
}

func newRoom(gridSize int) *Room {
	return &Room{
		GridSize: gridSize,
		index:    make(map[string]*Player),
	}
}

func (r *Room) add(p *Player) {
	r.Players = append(r.Players, p)
	r.index[p.ID] = p
	r.Started = len(r.Players) >= 2
}

func (r *Room) remove(id string) *Player {
	p, ok := r.index[id]
	if !ok {
		return nil
	}
	delete(r.index, id)
	r.Players = slices.DeleteFunc(r.Players, func(x *Player) bool { return x == p })
	r.Started = len(r.Players) >= 2
	return p
}

// reset empties the room once the last player has gone.
func (r *Room) reset() {
	r.Players = nil
	r.index = make(map[string]*Player)
	r.Food = nil
	r.Started = false
	r.Tick = 0
	r.RoundID = ""
}

func (r *Room) clone() *Room {
	c := &Room{
		GridSize: r.GridSize,
		Started:  r.Started,
		Tick:     r.Tick,
		RoundID:  r.RoundID,
		Players:  make([]*Player, 0, len(r.Players)),
		index:    make(map[string]*Player, len(r.Players)),
	}
	if r.Food != nil {
		f := *r.Food
		c.Food = &f
	}
	for _, p := range r.Players {
		cp := *p
		cp.Snake = slices.Clone(p.Snake)
		c.Players = append(c.Players, &cp)
		c.index[cp.ID] = &cp
	}
	return c
}

type PlayerView struct {
	ID        string    `json:"id"`
	Snake     []Cell    `json:"snake"`
	Direction Direction `json:"direction"`
	Score     int       `json:"score"`
	Color     string    `json:"color"`
	Alive     bool      `json:"alive"`
}

// Snapshot is an immutable copy of the room handed to readers.
type Snapshot struct {
	Players  []PlayerView `json:"players"`
	Food     *Cell        `json:"food"`
	Started  bool         `json:"started"`
	GridSize int          `json:"gridSize"`
	Tick     uint64       `json:"tick"`
	RoundID  string       `json:"roundId"`
}

func (r *Room) snapshot() *Snapshot {
	s := &Snapshot{
		Players:  make([]PlayerView, 0, len(r.Players)),
		Started:  r.Started,
		GridSize: r.GridSize,
		Tick:     r.Tick,
		RoundID:  r.RoundID,
	}
	if r.Food != nil {
		f := *r.Food
		s.Food = &f
	}
	for _, p := range r.Players {
		s.Players = append(s.Players, PlayerView{
			ID:        p.ID,
			Snake:     slices.Clone(p.Snake),
			Direction: p.Direction,
			Score:     p.Score,
			Color:     p.Color,
			Alive:     p.Alive,
		})
	}
	return s
}

// Player returns the view of a player by id.
func (s *Snapshot) Player(id string) (PlayerView, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerView{}, false
}
