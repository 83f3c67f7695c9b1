package stream

import "sync"

// Promise is a Deferred that can be resolved or rejected exactly once, from
// any goroutine. The zero value is not usable; use NewPromise.
type Promise struct {
	once sync.Once
	done chan struct{}
	val  any
	err  error
}

var _ Deferred = (*Promise)(nil)

func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve settles the promise with a value. Later calls to Resolve or
// Reject are ignored.
func (p *Promise) Resolve(v any) {
	p.once.Do(func() {
		p.val = v
		close(p.done)
	})
}

// Reject settles the promise with an error.
func (p *Promise) Reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

func (p *Promise) Done() <-chan struct{} {
	return p.done
}

func (p *Promise) Result() (any, error) {
	return p.val, p.err
}

// ByteQueue is a paused-mode ByteSource fed incrementally from any
// goroutine. Pushed chunks are spliced verbatim into the encoder output, so
// together they must form valid JSON text.
type ByteQueue struct {
	mu     sync.Mutex
	chunks [][]byte
	ended  bool
	err    error
	notify chan struct{}
}

var _ ByteSource = (*ByteQueue)(nil)

func NewByteQueue() *ByteQueue {
	return &ByteQueue{notify: make(chan struct{})}
}

// Push queues a chunk. The chunk is copied.
func (q *ByteQueue) Push(chunk []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ended {
		return
	}
	q.chunks = append(q.chunks, append([]byte(nil), chunk...))
	q.wake()
}

// End marks the queue complete; buffered chunks remain pullable.
func (q *ByteQueue) End() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ended = true
	q.wake()
}

// Fail makes the next Pull report err, aborting the encode.
func (q *ByteQueue) Fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
	q.wake()
}

func (q *ByteQueue) Pull() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	if len(q.chunks) == 0 {
		return nil, nil
	}
	chunk := q.chunks[0]
	q.chunks = q.chunks[1:]
	return chunk, nil
}

func (q *ByteQueue) Ready() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.chunks) > 0 || q.ended || q.err != nil {
		return closedChan
	}
	return q.notify
}

func (q *ByteQueue) Ended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ended && len(q.chunks) == 0
}

// Mode is always ModePaused: the queue retains its data until pulled, so
// attaching it late never loses anything.
func (q *ByteQueue) Mode() Mode {
	return ModePaused
}

// wake must be called with q.mu held.
func (q *ByteQueue) wake() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// RecordQueue is a paused-mode RecordSource fed incrementally from any
// goroutine. The encoder emits its records as the elements of a JSON array.
type RecordQueue struct {
	mu      sync.Mutex
	records []any
	ended   bool
	err     error
	notify  chan struct{}
}

var _ RecordSource = (*RecordQueue)(nil)

func NewRecordQueue() *RecordQueue {
	return &RecordQueue{notify: make(chan struct{})}
}

func (q *RecordQueue) Push(rec any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ended {
		return
	}
	q.records = append(q.records, rec)
	q.wake()
}

func (q *RecordQueue) End() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ended = true
	q.wake()
}

func (q *RecordQueue) Fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
	q.wake()
}

func (q *RecordQueue) Pull() (any, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, false, q.err
	}
	if len(q.records) == 0 {
		return nil, false, nil
	}
	rec := q.records[0]
	q.records = q.records[1:]
	return rec, true, nil
}

func (q *RecordQueue) Ready() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.records) > 0 || q.ended || q.err != nil {
		return closedChan
	}
	return q.notify
}

func (q *RecordQueue) Ended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ended && len(q.records) == 0
}

func (q *RecordQueue) Mode() Mode {
	return ModePaused
}

func (q *RecordQueue) wake() {
	close(q.notify)
	q.notify = make(chan struct{})
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
