package registers

import (
	"reflect"
	"testing"
)

func TestRWRegisterResetAndStore(t *testing.T) {
	r := NewRW[uint32]("rise", 0x2)
	if got := r.Read(); got != 0x2 {
		t.Fatalf("reset value = %#x, want 0x2", got)
	}
	r.Write(0x3F)
	if got := r.Read(); got != 0x3F {
		t.Fatalf("after write = %#x", got)
	}
	r.Reset()
	if got := r.Read(); got != 0x2 {
		t.Fatalf("after Reset = %#x", got)
	}
}

func TestReadOnlyFlagIgnoresWriteButRunsCallback(t *testing.T) {
	r := New[uint32]("cr1")
	var calls [][2]bool
	start := r.DefineFlag(8, "START", FlagOpts{
		Mode:    Read,
		OnWrite: func(old, v bool) { calls = append(calls, [2]bool{old, v}) },
	})
	r.Write(1 << 8)
	if start.Value() {
		t.Fatal("read-only flag stored a written 1")
	}
	if len(calls) != 1 || calls[0] != [2]bool{false, true} {
		t.Fatalf("write callback calls = %v", calls)
	}
	r.Write(0)
	if len(calls) != 2 || calls[1][1] {
		t.Fatalf("write callback should also see a written 0: %v", calls)
	}
}

func TestCallbackOrder(t *testing.T) {
	r := New[uint32]("cr2")
	var seq []string
	r.DefineFlag(0, "a", FlagOpts{
		OnWrite:  func(_, _ bool) { seq = append(seq, "write a") },
		OnChange: func(_, _ bool) { seq = append(seq, "change a") },
	})
	r.DefineFlag(1, "b", FlagOpts{
		OnWrite:  func(_, _ bool) { seq = append(seq, "write b") },
		OnChange: func(_, _ bool) { seq = append(seq, "change b") },
	})
	r.Write(0b11)
	want := []string{"write a", "write b", "change a", "change b"}
	if !reflect.DeepEqual(seq, want) {
		t.Fatalf("order = %v, want %v", seq, want)
	}

	seq = nil
	r.Write(0b11) // no change
	if !reflect.DeepEqual(seq, []string{"write a", "write b"}) {
		t.Fatalf("unchanged write = %v", seq)
	}
}

func TestReadToClearWriteZeroToClear(t *testing.T) {
	r := New[uint32]("sr1")
	changes := 0
	af := r.DefineFlag(10, "AF", FlagOpts{
		Mode:     ReadToClear | WriteZeroToClear,
		OnChange: func(_, _ bool) { changes++ },
	})

	af.SetValue(true)
	if changes != 0 {
		t.Fatal("SetValue ran a callback")
	}
	if got := r.Read(); got != 1<<10 {
		t.Fatalf("first read = %#x, want AF set", got)
	}
	if af.Value() || changes != 1 {
		t.Fatalf("read-to-clear: value=%v changes=%d", af.Value(), changes)
	}

	af.SetValue(true)
	r.Write(1 << 10) // writing 1 keeps it
	if !af.Value() {
		t.Fatal("writing 1 cleared a write-zero-to-clear flag")
	}
	r.Write(0)
	if af.Value() || changes != 2 {
		t.Fatalf("write 0: value=%v changes=%d", af.Value(), changes)
	}
}

func TestWriteOneToClear(t *testing.T) {
	r := New[uint8]("isr")
	v := r.DefineValue(0, 4, "flags", ValueOpts[uint8]{Mode: Read | WriteOneToClear, Reset: 0xF})
	r.Write(0b0101)
	if v.Value() != 0b1010 {
		t.Fatalf("value = %#b", v.Value())
	}
}

func TestProviderAndReadCallback(t *testing.T) {
	r := New[uint32]("sr")
	queued := 0
	r.DefineFlag(6, "RxNE", FlagOpts{Mode: Read, Provider: func(bool) bool { return queued > 0 }})
	reads := 0
	r.DefineFlag(0, "MSL", FlagOpts{Mode: Read, OnRead: func(_, _ bool) { reads++ }})

	if r.Read() != 0 {
		t.Fatal("provider reported data with an empty queue")
	}
	queued = 2
	if r.Read() != 1<<6 {
		t.Fatal("provider not consulted on read")
	}
	if reads != 2 {
		t.Fatalf("read callback ran %d times, want 2", reads)
	}
}

func TestValueFieldProviderAndWrite(t *testing.T) {
	r := New[uint32]("dr")
	next := uint32(0x42)
	var written []uint32
	r.DefineValue(0, 8, "DR", ValueOpts[uint32]{
		Provider: func(uint32) uint32 { return next },
		OnWrite:  func(_, v uint32) { written = append(written, v) },
	})
	if got := r.Read(); got != 0x42 {
		t.Fatalf("read = %#x", got)
	}
	r.Write(0x1AB) // upper bits are outside the field
	if len(written) != 1 || written[0] != 0xAB {
		t.Fatalf("written = %v", written)
	}
}

func TestOverlappingFieldsPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on overlapping fields")
		}
	}()
	r := New[uint32]("bad")
	r.DefineValue(0, 6, "FREQ", ValueOpts[uint32]{})
	r.DefineFlag(5, "X", FlagOpts{})
}

func TestCollection(t *testing.T) {
	c := NewCollection(map[int64]*Register[uint32]{
		0x00: NewRW[uint32]("a", 0),
		0x20: NewRW[uint32]("b", 2),
	})
	if _, ok := c.Read(0x04); ok {
		t.Fatal("unmapped offset reported ok")
	}
	if c.Write(0x08, 1) {
		t.Fatal("unmapped write reported ok")
	}
	c.Write(0x00, 7)
	if v, ok := c.Read(0x00); !ok || v != 7 {
		t.Fatalf("Read(0) = %d,%v", v, ok)
	}
	c.Reset()
	if v, _ := c.Read(0x00); v != 0 {
		t.Fatalf("after Reset = %d", v)
	}
	if got := c.Offsets(); !reflect.DeepEqual(got, []int64{0x00, 0x20}) {
		t.Fatalf("Offsets = %v", got)
	}
}
