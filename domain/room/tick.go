package room

import "math/rand/v2"

func (r *Room) wrap(c Cell) Cell {
	n := r.GridSize
	return Cell{X: ((c.X % n) + n) % n, Y: ((c.Y % n) + n) % n}
}

// step advances every living snake by one cell in join order.
//
// Collisions are checked against the board as it was before the tick, so a
// player's own tail does not count when it is about to move away. Two heads
// entering the same cell both survive; if that cell holds food only the
// earlier joiner eats it.
func (r *Room) step(rng *rand.Rand) {
	board := make(map[Cell]int)
	for _, p := range r.Players {
		if !p.Alive {
			continue
		}
		for _, c := range p.Snake {
			board[c]++
		}
	}

	for _, p := range r.Players {
		if !p.Alive {
			continue
		}
		head := p.Snake[0]
		tail := p.Snake[len(p.Snake)-1]
		next := r.wrap(head.add(p.Direction.offset()))
		eating := r.Food != nil && *r.Food == next

		hits := board[next]
		if next == tail && !eating {
			hits--
		}
		if hits > 0 {
			p.Alive = false
			continue
		}

		p.heading = p.Direction
		p.Snake = append([]Cell{next}, p.Snake...)
		if eating {
			p.Score += FoodReward
			r.Food = nil
		} else {
			p.Snake = p.Snake[:len(p.Snake)-1]
		}
	}

	if r.Food == nil {
		r.placeFood(rng)
	}
	r.Tick++
}

// freeCells lists cells not covered by any snake accepted by include.
func (r *Room) freeCells(include func(*Player) bool, extra ...Cell) []Cell {
	taken := make(map[Cell]struct{})
	for _, p := range r.Players {
		if !include(p) {
			continue
		}
		for _, c := range p.Snake {
			taken[c] = struct{}{}
		}
	}
	for _, c := range extra {
		taken[c] = struct{}{}
	}
	free := make([]Cell, 0, r.GridSize*r.GridSize-len(taken))
	for y := 0; y < r.GridSize; y++ {
		for x := 0; x < r.GridSize; x++ {
			c := Cell{X: x, Y: y}
			if _, ok := taken[c]; !ok {
				free = append(free, c)
			}
		}
	}
	return free
}

// placeFood drops food on a random cell not covered by a living snake. It
// leaves Food nil when the living snakes cover the whole grid.
func (r *Room) placeFood(rng *rand.Rand) bool {
	free := r.freeCells(func(p *Player) bool { return p.Alive })
	if len(free) == 0 {
		r.Food = nil
		return false
	}
	c := free[rng.IntN(len(free))]
	r.Food = &c
	return true
}

// spawnCell picks a start cell clear of every snake, dead ones included, and
// of the food.
func (r *Room) spawnCell(rng *rand.Rand) (Cell, bool) {
	var extra []Cell
	if r.Food != nil {
		extra = append(extra, *r.Food)
	}
	free := r.freeCells(func(*Player) bool { return true }, extra...)
	if len(free) == 0 {
		return Cell{}, false
	}
	return free[rng.IntN(len(free))], true
}
