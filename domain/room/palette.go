package room

import "slices"

var DefaultPalette = []string{"#F97316", "#8B5CF6", "#0EA5E9", "#10B981", "#F59E0B", "#EC4899"}

// palette hands out color slots by index. Free slots go lowest first; once
// every slot is taken a ring cursor starts sharing them in cycle order.
// A shared slot stays shared until all its holders leave, so colors are
// only unique while no slot has been shared since it was last fully free.
type palette struct {
	colors []string
	refs   []int
	free   []int
	cursor int
}

func newPalette(colors []string) *palette {
	p := &palette{
		colors: slices.Clone(colors),
		refs:   make([]int, len(colors)),
		free:   make([]int, len(colors)),
	}
	for i := range p.free {
		p.free[i] = i
	}
	return p
}

func (p *palette) acquire() int {
	var slot int
	if len(p.free) > 0 {
		slot = p.free[0]
		p.free = slices.Delete(p.free, 0, 1)
	} else {
		slot = p.cursor
		p.cursor = (p.cursor + 1) % len(p.colors)
	}
	p.refs[slot]++
	return slot
}

func (p *palette) release(slot int) {
	if slot < 0 || slot >= len(p.refs) || p.refs[slot] == 0 {
		return
	}
	p.refs[slot]--
	if p.refs[slot] > 0 {
		return
	}
	i, _ := slices.BinarySearch(p.free, slot)
	p.free = slices.Insert(p.free, i, slot)
}

func (p *palette) color(slot int) string { return p.colors[slot] }

func (p *palette) inUse() int { return len(p.colors) - len(p.free) }
