package stream

// buffer is the staging area between the stack machine and the consumer.
// Its capacity is at least twice the most recently requested size, so a
// write can always make progress even when the buffer already holds a full
// request. Data beyond the requested size stays buffered for the next pull,
// it is never flushed early.
type buffer struct {
	data      []byte
	requested int
}

// request records the consumer's chunk size and grows the buffer's capacity
// to hold two requests. The capacity never shrinks.
func (b *buffer) request(n int) {
	b.requested = n
	if cap(b.data) < 2*n {
		grown := make([]byte, len(b.data), 2*n)
		copy(grown, b.data)
		b.data = grown
	}
}

// full reports whether the buffer can satisfy the current request.
func (b *buffer) full() bool {
	return len(b.data) >= b.requested
}

// write appends as much of chunk as fits below the buffer's capacity and
// returns the part that did not fit. The caller re-queues the remainder as
// a literal-injection frame, to be emitted on a later drive cycle.
func (b *buffer) write(chunk []byte) (rest []byte) {
	room := cap(b.data) - len(b.data)
	if room >= len(chunk) {
		b.data = append(b.data, chunk...)
		return nil
	}
	b.data = append(b.data, chunk[:room]...)
	return chunk[room:]
}

// take copies up to len(p) buffered bytes into p and shifts any overflow to
// the front for the next pull.
func (b *buffer) take(p []byte) int {
	n := copy(p, b.data)
	kept := copy(b.data, b.data[n:])
	b.data = b.data[:kept]
	return n
}

func (b *buffer) discard() {
	b.data = b.data[:0]
}

func (b *buffer) len() int {
	return len(b.data)
}
