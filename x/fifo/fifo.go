// Package fifo is a growable byte queue built on a power-of-two ring with
// monotonic read/write indices. It is not safe for concurrent use; the
// emulated peripherals that own one are driven from a single goroutine.
package fifo

const minSize = 8

type Bytes struct {
	buf  []byte
	mask uint32
	rd   uint32 // consumer index (monotonic)
	wr   uint32 // producer index (monotonic)
}

// New returns an empty queue with room for at least n bytes before the
// first reallocation.
func New(n int) *Bytes {
	size := minSize
	for size < n {
		size <<= 1
	}
	return &Bytes{buf: make([]byte, size), mask: uint32(size - 1)}
}

func (q *Bytes) Len() int { return int(q.wr - q.rd) }

func (q *Bytes) Empty() bool { return q.wr == q.rd }

func (q *Bytes) grow(need int) {
	if q.buf == nil {
		*q = *New(need)
		return
	}
	if need <= len(q.buf) {
		return
	}
	size := len(q.buf)
	for size < need {
		size <<= 1
	}
	nb := make([]byte, size)
	n := q.copyOut(nb)
	q.buf, q.mask, q.rd, q.wr = nb, uint32(size-1), 0, uint32(n)
}

// copyOut copies the queued bytes into dst without consuming them.
func (q *Bytes) copyOut(dst []byte) int {
	n := q.Len()
	if n > len(dst) {
		n = len(dst)
	}
	off := int(q.rd & q.mask)
	first := len(q.buf) - off
	if first > n {
		first = n
	}
	copy(dst, q.buf[off:off+first])
	copy(dst[first:n], q.buf[:n-first])
	return n
}

// Push appends one byte.
func (q *Bytes) Push(b byte) {
	q.grow(q.Len() + 1)
	q.buf[q.wr&q.mask] = b
	q.wr++
}

// Write appends p. It never fails.
func (q *Bytes) Write(p []byte) (int, error) {
	q.grow(q.Len() + len(p))
	for _, b := range p {
		q.buf[q.wr&q.mask] = b
		q.wr++
	}
	return len(p), nil
}

// Pop removes and returns the oldest byte. ok is false on an empty queue.
func (q *Bytes) Pop() (b byte, ok bool) {
	if q.Empty() {
		return 0, false
	}
	b = q.buf[q.rd&q.mask]
	q.rd++
	return b, true
}

// Peek returns a copy of the queued bytes without consuming them.
func (q *Bytes) Peek() []byte {
	out := make([]byte, q.Len())
	if len(out) > 0 {
		q.copyOut(out)
	}
	return out
}

// Drain removes and returns every queued byte in FIFO order.
func (q *Bytes) Drain() []byte {
	out := q.Peek()
	q.rd = q.wr
	return out
}

// Reset discards the contents and keeps the buffer.
func (q *Bytes) Reset() { q.rd, q.wr = 0, 0 }
