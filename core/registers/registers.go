// Package registers implements memory-mapped register banks built from
// named bitfields. Fields carry access modes and callbacks so peripherals
// can express side effects declaratively:
//
//   - a value provider computes the field on every read;
//   - read callbacks run after a read, with the value before and after
//     read-to-clear handling;
//   - write callbacks run on every write that covers the field, with the
//     stored value and the raw written bits, even for read-only fields;
//   - change callbacks run when a read or write changed the stored value.
//
// Within one access all write (or read) callbacks run first, in field
// definition order, then the change callbacks. SetValue on a field handle
// never runs callbacks.
package registers

import (
	"github.com/cubesatlab/renode-infrastructure/x/bitx"
	"golang.org/x/exp/constraints"
)

type Mode uint8

const (
	Read Mode = 1 << iota
	Write
	ReadToClear
	WriteOneToClear
	WriteZeroToClear

	ReadWrite = Read | Write
)

func (m Mode) readable() bool { return m&(Read|ReadToClear) != 0 }

type field[T constraints.Unsigned] struct {
	name     string
	pos      uint
	width    uint
	mode     Mode
	reset    T
	provider func(cur T) T
	onRead   func(old, cur T)
	onWrite  func(old, written T)
	onChange func(old, cur T)
}

func (f *field[T]) mask() T { return bitx.Mask[T](f.pos, f.width) }

// Register is a single register of width T.
type Register[T constraints.Unsigned] struct {
	name   string
	value  T
	fields []*field[T]
}

func New[T constraints.Unsigned](name string) *Register[T] {
	return &Register[T]{name: name}
}

// NewRW returns a register made of one full-width read/write field.
func NewRW[T constraints.Unsigned](name string, reset T) *Register[T] {
	r := New[T](name)
	r.DefineValue(0, bitx.Width[T](), name, ValueOpts[T]{Mode: ReadWrite, Reset: reset})
	r.Reset()
	return r
}

func (r *Register[T]) Name() string { return r.name }

// Value is the raw stored value, without running providers or callbacks.
func (r *Register[T]) Value() T { return r.value }

// SetValue stores v without running callbacks.
func (r *Register[T]) SetValue(v T) { r.value = v }

func (r *Register[T]) get(f *field[T]) T {
	return bitx.Get(r.value, f.pos, f.width)
}

func (r *Register[T]) set(f *field[T], v T) {
	r.value = bitx.Set(r.value, f.pos, f.width, v)
}

func (r *Register[T]) add(f *field[T]) {
	if f.width == 0 {
		f.width = 1
	}
	if f.mode == 0 {
		f.mode = ReadWrite
	}
	for _, o := range r.fields {
		if o.mask()&f.mask() != 0 {
			panic("registers: field " + f.name + " overlaps " + o.name + " in " + r.name)
		}
	}
	r.fields = append(r.fields, f)
	r.set(f, f.reset)
}

// Reset restores every field to its reset value. No callbacks run.
func (r *Register[T]) Reset() {
	r.value = 0
	for _, f := range r.fields {
		r.set(f, f.reset)
	}
}

// Read composes the readable fields, applying providers and read-to-clear.
func (r *Register[T]) Read() T {
	for _, f := range r.fields {
		if f.provider != nil {
			r.set(f, f.provider(r.get(f)))
		}
	}
	before := r.value
	var out T
	for _, f := range r.fields {
		if f.mode.readable() {
			out |= before & f.mask()
		}
		if f.mode&ReadToClear != 0 {
			r.set(f, 0)
		}
	}
	for _, f := range r.fields {
		if f.onRead != nil {
			f.onRead(bitx.Get(before, f.pos, f.width), r.get(f))
		}
	}
	r.fireChanges(before)
	return out
}

// Write applies v to every field according to its mode and runs callbacks.
func (r *Register[T]) Write(v T) {
	before := r.value
	for _, f := range r.fields {
		old := r.get(f)
		in := bitx.Get(v, f.pos, f.width)
		switch {
		case f.mode&Write != 0:
			r.set(f, in)
		case f.mode&WriteOneToClear != 0:
			r.set(f, old&^in)
		case f.mode&WriteZeroToClear != 0:
			r.set(f, old&in)
		}
	}
	for _, f := range r.fields {
		if f.onWrite != nil {
			f.onWrite(bitx.Get(before, f.pos, f.width), bitx.Get(v, f.pos, f.width))
		}
	}
	r.fireChanges(before)
}

func (r *Register[T]) fireChanges(before T) {
	for _, f := range r.fields {
		if f.onChange == nil {
			continue
		}
		// Compare against the value at the end of the access so a callback
		// that rewrites its own field does not report a stale change.
		old, cur := bitx.Get(before, f.pos, f.width), r.get(f)
		if old != cur {
			f.onChange(old, cur)
		}
	}
}

// FlagOpts configures a single-bit field.
type FlagOpts struct {
	Mode     Mode
	Reset    bool
	Provider func(cur bool) bool
	OnRead   func(old, cur bool)
	OnWrite  func(old, written bool)
	OnChange func(old, cur bool)
}

// ValueOpts configures a multi-bit field.
type ValueOpts[T constraints.Unsigned] struct {
	Mode     Mode
	Reset    T
	Provider func(cur T) T
	OnRead   func(old, cur T)
	OnWrite  func(old, written T)
	OnChange func(old, cur T)
}

// Flag is a handle on a single-bit field.
type Flag[T constraints.Unsigned] struct {
	reg *Register[T]
	f   *field[T]
}

func (h Flag[T]) Name() string    { return h.f.name }
func (h Flag[T]) Value() bool     { return h.reg.get(h.f) != 0 }
func (h Flag[T]) SetValue(v bool) { h.reg.set(h.f, b2u[T](v)) }

// Value is a handle on a multi-bit field.
type Value[T constraints.Unsigned] struct {
	reg *Register[T]
	f   *field[T]
}

func (h Value[T]) Name() string { return h.f.name }
func (h Value[T]) Value() T      { return h.reg.get(h.f) }
func (h Value[T]) SetValue(v T) { h.reg.set(h.f, v) }

func b2u[T constraints.Unsigned](b bool) T {
	if b {
		return 1
	}
	return 0
}

func boolFn[T constraints.Unsigned](fn func(a, b bool)) func(a, b T) {
	if fn == nil {
		return nil
	}
	return func(a, b T) { fn(a != 0, b != 0) }
}

// DefineFlag adds a one-bit field at pos.
func (r *Register[T]) DefineFlag(pos uint, name string, o FlagOpts) Flag[T] {
	f := &field[T]{
		name: name, pos: pos, width: 1, mode: o.Mode, reset: b2u[T](o.Reset),
		onRead: boolFn[T](o.OnRead), onWrite: boolFn[T](o.OnWrite), onChange: boolFn[T](o.OnChange),
	}
	if p := o.Provider; p != nil {
		f.provider = func(cur T) T { return b2u[T](p(cur != 0)) }
	}
	r.add(f)
	return Flag[T]{reg: r, f: f}
}

// DefineValue adds a width-bit field at pos.
func (r *Register[T]) DefineValue(pos, width uint, name string, o ValueOpts[T]) Value[T] {
	f := &field[T]{
		name: name, pos: pos, width: width, mode: o.Mode, reset: o.Reset,
		provider: o.Provider, onRead: o.OnRead, onWrite: o.OnWrite, onChange: o.OnChange,
	}
	r.add(f)
	return Value[T]{reg: r, f: f}
}

// WithFlag is DefineFlag for registers whose field handle is not needed.
func (r *Register[T]) WithFlag(pos uint, name string, o FlagOpts) *Register[T] {
	r.DefineFlag(pos, name, o)
	return r
}

// WithValue is DefineValue for registers whose field handle is not needed.
func (r *Register[T]) WithValue(pos, width uint, name string, o ValueOpts[T]) *Register[T] {
	r.DefineValue(pos, width, name, o)
	return r
}
