package fifo

import (
	"bytes"
	"testing"
)

func TestPushPopOrder(t *testing.T) {
	q := New(0)
	for i := 0; i < 5; i++ {
		q.Push(byte(i))
	}
	if q.Len() != 5 {
		t.Fatalf("Len = %d, want 5", q.Len())
	}
	for i := 0; i < 5; i++ {
		b, ok := q.Pop()
		if !ok || b != byte(i) {
			t.Fatalf("Pop #%d = %d,%v", i, b, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue reported ok")
	}
}

func TestGrowAcrossWrap(t *testing.T) {
	q := New(8)
	q.Write([]byte{1, 2, 3, 4, 5, 6})
	q.Pop()
	q.Pop()
	q.Pop()
	// wr wraps past the end of the 8-byte buffer, then forces a grow.
	q.Write([]byte{7, 8, 9, 10, 11, 12, 13, 14, 15})
	want := []byte{4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	if got := q.Drain(); !bytes.Equal(got, want) {
		t.Fatalf("Drain = %v, want %v", got, want)
	}
	if !q.Empty() {
		t.Fatal("queue not empty after Drain")
	}
}

func TestZeroValueAndReset(t *testing.T) {
	var q Bytes
	q.Push(0xAA)
	if b, ok := q.Pop(); !ok || b != 0xAA {
		t.Fatalf("zero-value queue Pop = %#x,%v", b, ok)
	}
	q.Write([]byte{1, 2})
	q.Reset()
	if q.Len() != 0 || len(q.Drain()) != 0 {
		t.Fatal("Reset left data behind")
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	q := New(4)
	q.Write([]byte{0xAB, 0xCD})
	if got := q.Peek(); !bytes.Equal(got, []byte{0xAB, 0xCD}) {
		t.Fatalf("Peek = %x", got)
	}
	if q.Len() != 2 {
		t.Fatalf("Len after Peek = %d", q.Len())
	}
}
