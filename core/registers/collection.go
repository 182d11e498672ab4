package registers

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Collection maps byte offsets to registers.
type Collection[T constraints.Unsigned] struct {
	regs map[int64]*Register[T]
}

func NewCollection[T constraints.Unsigned](m map[int64]*Register[T]) *Collection[T] {
	c := &Collection[T]{regs: make(map[int64]*Register[T], len(m))}
	for off, r := range m {
		c.regs[off] = r
	}
	return c
}

func (c *Collection[T]) Add(offset int64, r *Register[T]) { c.regs[offset] = r }

// Lookup returns the register at offset, or nil.
func (c *Collection[T]) Lookup(offset int64) *Register[T] { return c.regs[offset] }

// Read reports false when no register is defined at offset.
func (c *Collection[T]) Read(offset int64) (T, bool) {
	r, ok := c.regs[offset]
	if !ok {
		return 0, false
	}
	return r.Read(), true
}

// Write reports false when no register is defined at offset.
func (c *Collection[T]) Write(offset int64, v T) bool {
	r, ok := c.regs[offset]
	if !ok {
		return false
	}
	r.Write(v)
	return true
}

func (c *Collection[T]) Reset() {
	for _, r := range c.regs {
		r.Reset()
	}
}

// Offsets lists the defined offsets in ascending order.
func (c *Collection[T]) Offsets() []int64 {
	out := make([]int64, 0, len(c.regs))
	for off := range c.regs {
		out = append(out, off)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
