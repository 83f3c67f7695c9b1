package stream

import (
	"io"
	"strconv"
	"sync"
)

// An Encoder converts one root value into a JSON byte stream. It is created
// with NewEncoder, driven to completion or abort by repeated Read calls,
// and is not reusable afterwards.
//
// Read fills p completely unless traversal has permanently ended, so the
// concatenation of all reads is the full output no matter how the read size
// varies between calls. Once a fatal error occurs, any buffered output is
// discarded and every subsequent Read returns the same error.
type Encoder struct {
	mu   sync.Mutex
	cond *sync.Cond

	opts options

	root    any
	started bool

	top    *frame
	depth  int
	active cycleGuard
	buf    buffer

	err        error
	driving    bool
	terminated bool
	quit       chan struct{}

	scratch   []byte
	keyBuf    []byte
	indentBuf []byte
}

var _ io.ReadCloser = (*Encoder)(nil)

// NewEncoder returns an encoder for the given root value. The root is
// borrowed: it is owned by the caller, and mutating it while encoding is in
// flight is undefined behaviour.
func NewEncoder(root any, opts ...Option) *Encoder {
	e := &Encoder{
		root:   root,
		active: make(cycleGuard),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&e.opts)
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Read produces the next len(p) bytes of JSON output, blocking while the
// value graph is waiting on a deferred value or a source. At the end of the
// stream it returns the remaining tail and then io.EOF.
func (e *Encoder) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return 0, e.err
	}
	e.buf.request(len(p))
	if !e.started {
		e.started = true
		e.start()
	}
	for e.err == nil && !e.buf.full() && e.top != nil {
		if e.top.awaiting {
			e.cond.Wait()
			continue
		}
		e.drive()
	}
	if e.err != nil {
		e.buf.discard()
		return 0, e.err
	}
	n := e.buf.take(p)
	if e.top == nil {
		e.terminate()
		if n == 0 {
			return 0, io.EOF
		}
	}
	return n, nil
}

// Close signals that the consumer no longer wants output. Pending
// continuations become no-ops and subsequent reads return ErrClosed. Output
// already handed to the consumer is handed irrevocably; if the encode was
// still in flight it is necessarily truncated JSON.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	finished := e.started && e.top == nil && e.err == nil
	if !finished && e.err == nil {
		e.err = ErrClosed
	}
	e.top = nil
	e.buf.discard()
	e.terminate()
	e.cond.Broadcast()
	return nil
}

func (e *Encoder) start() {
	c, err := e.classify("", e.root)
	if err != nil {
		e.fail(err)
		return
	}
	e.root = nil
	e.pushValue("", c)
}

// drive advances the stack machine one frame at a time until the buffer can
// satisfy the current request, the stack empties, the top frame suspends,
// or a fatal error is recorded. A drive never reenters itself.
func (e *Encoder) drive() {
	if e.driving {
		return
	}
	e.driving = true
	defer func() { e.driving = false }()
	for e.err == nil && e.top != nil && !e.buf.full() && !e.top.awaiting {
		e.step(e.top)
	}
}

func (e *Encoder) step(f *frame) {
	switch f.kind {
	case frameLiteral:
		e.stepLiteral(f)
	case frameObject:
		e.stepObject(f)
	case frameArray:
		e.stepArray(f)
	case frameBytes:
		e.stepBytes(f)
	case frameRecords:
		e.stepRecords(f)
	case frameDeferred:
		e.stepDeferred(f)
	}
}

func (e *Encoder) stepLiteral(f *frame) {
	rest := e.buf.write(f.lit)
	if len(rest) > 0 {
		f.lit = rest
		return
	}
	e.pop(f)
}

func (e *Encoder) stepObject(f *frame) {
	if f.idx == len(f.entries) {
		e.closeComposite(f, closeObjectBytes)
		return
	}
	ent := f.entries[f.idx]
	f.idx++
	if !e.opts.keyAllowed(ent.key) {
		return
	}
	c, err := e.classify(ent.key, ent.value)
	if err != nil {
		e.fail(err)
		return
	}
	if c.kind == kindOmitted {
		// dropped object values lose their key too, with no separator
		return
	}
	e.writeEntryPrefix(f)
	e.keyBuf = appendString(e.keyBuf[:0], ent.key)
	e.write(e.keyBuf)
	if e.opts.indent != nil {
		e.write(prettyColonBytes)
	} else {
		e.write(colonBytes)
	}
	e.pushValue(ent.key, c)
}

func (e *Encoder) stepArray(f *frame) {
	if f.idx == f.n {
		e.closeComposite(f, closeArrayBytes)
		return
	}
	i := f.idx
	f.idx++
	key := strconv.Itoa(i)
	c, err := e.classify(key, f.seq.Index(i).Interface())
	if err != nil {
		e.fail(err)
		return
	}
	// dropped sequence elements encode as null, positions are never skipped
	e.writeEntryPrefix(f)
	e.pushValue(key, c)
}

func (e *Encoder) stepBytes(f *frame) {
	chunk, err := f.bsrc.Pull()
	if err != nil {
		e.fail(err)
		return
	}
	if len(chunk) > 0 {
		f.firstRead = true
		e.write(chunk)
		return
	}
	if f.bsrc.Ended() || !f.firstRead {
		// nothing on the very first touch means the producer was empty
		e.pop(f)
		return
	}
	f.awaiting = true
	e.watchSource(f, f.bsrc)
}

func (e *Encoder) stepRecords(f *frame) {
	rec, ok, err := f.rsrc.Pull()
	if err != nil {
		e.fail(err)
		return
	}
	if ok {
		f.firstRead = true
		key := strconv.Itoa(f.idx)
		f.idx++
		c, cerr := e.classify(key, rec)
		if cerr != nil {
			e.fail(cerr)
			return
		}
		e.writeEntryPrefix(f)
		e.pushValue(key, c)
		return
	}
	if f.rsrc.Ended() || !f.firstRead {
		e.closeComposite(f, closeArrayBytes)
		return
	}
	f.awaiting = true
	e.watchSource(f, f.rsrc)
}

// stepDeferred runs only after the watcher has cleared the awaiting flag.
// The resolved value is re-classified under the frame's original key.
func (e *Encoder) stepDeferred(f *frame) {
	v, err := f.def.Result()
	if err != nil {
		e.fail(err)
		return
	}
	e.pop(f)
	c, cerr := e.classify(f.key, v)
	if cerr != nil {
		e.fail(cerr)
		return
	}
	e.pushValue(f.key, c)
}

// pushValue emits a classified value: scalars are written in place,
// composites and pending values get a frame.
func (e *Encoder) pushValue(key string, c class) {
	switch c.kind {
	case kindOmitted:
		// value position, so the omission coerces to null
		e.write(nullBytes)
	case kindScalar:
		e.write(c.lit)
	case kindObject:
		if len(c.entries) == 0 {
			e.write(emptyObjectBytes)
			return
		}
		if err := e.active.enter(c.id); err != nil {
			e.fail(err)
			return
		}
		e.write(openObjectBytes)
		e.push(&frame{kind: frameObject, entries: c.entries, id: c.id})
		e.depth++
	case kindArray:
		n := c.seq.Len()
		if n == 0 {
			e.write(emptyArrayBytes)
			return
		}
		if err := e.active.enter(c.id); err != nil {
			e.fail(err)
			return
		}
		e.write(openArrayBytes)
		e.push(&frame{kind: frameArray, seq: c.seq, n: n, id: c.id})
		e.depth++
	case kindDeferred:
		f := &frame{kind: frameDeferred, def: c.def, key: key, awaiting: true}
		e.push(f)
		e.watchDeferred(f)
	case kindBytes:
		if err := checkSource(c.bsrc); err != nil {
			e.fail(err)
			return
		}
		e.push(&frame{kind: frameBytes, bsrc: c.bsrc})
	case kindRecords:
		if err := checkSource(c.rsrc); err != nil {
			e.fail(err)
			return
		}
		if err := e.active.enter(c.id); err != nil {
			e.fail(err)
			return
		}
		e.write(openArrayBytes)
		e.push(&frame{kind: frameRecords, rsrc: c.rsrc, id: c.id})
		e.depth++
	}
}

// push makes f the next frame to run, except that overflow text queued
// during the current step must drain first: the new frame slots in below
// any literal-injection frames at the top of the stack.
func (e *Encoder) push(f *frame) {
	anchor := &e.top
	for *anchor != nil && (*anchor).kind == frameLiteral {
		anchor = &(*anchor).parent
	}
	f.parent = *anchor
	*anchor = f
}

// pop unlinks f, which is at the top of the stack or just below literal
// frames queued during its own step.
func (e *Encoder) pop(f *frame) {
	anchor := &e.top
	for *anchor != f {
		anchor = &(*anchor).parent
	}
	*anchor = f.parent
}

func (e *Encoder) closeComposite(f *frame, closer []byte) {
	e.depth--
	if f.emitted && e.opts.indent != nil {
		e.writeNewline()
	}
	e.write(closer)
	e.active.leave(f.id)
	e.pop(f)
}

func (e *Encoder) writeEntryPrefix(f *frame) {
	if f.emitted {
		e.write(itemSeparatorBytes)
	}
	f.emitted = true
	if e.opts.indent != nil {
		e.writeNewline()
	}
}

func (e *Encoder) writeNewline() {
	e.indentBuf = append(e.indentBuf[:0], '\n')
	for i := 0; i < e.depth; i++ {
		e.indentBuf = append(e.indentBuf, e.opts.indent...)
	}
	e.write(e.indentBuf)
}

// write stages chunk for the consumer. Text that does not fit the buffer is
// queued on the stack as a literal-injection frame; once such a frame is on
// top, later writes from the same step append to it so that emission order
// is preserved.
func (e *Encoder) write(chunk []byte) {
	if e.top != nil && e.top.kind == frameLiteral {
		e.top.lit = append(e.top.lit, chunk...)
		return
	}
	rest := e.buf.write(chunk)
	if len(rest) > 0 {
		e.push(&frame{kind: frameLiteral, lit: append([]byte(nil), rest...)})
	}
}

// fail moves the encoder to its terminal error state: the stack is
// abandoned, buffered output is discarded and all pending continuations
// become no-ops.
func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
	e.top = nil
	e.buf.discard()
	e.terminate()
	e.cond.Broadcast()
}

func (e *Encoder) terminate() {
	if !e.terminated {
		e.terminated = true
		close(e.quit)
	}
}

func (e *Encoder) watchDeferred(f *frame) {
	go func() {
		select {
		case <-f.def.Done():
		case <-e.quit:
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		// the frame may have been abandoned by an abort in the meantime
		if e.err == nil && f.awaiting {
			f.awaiting = false
			e.cond.Broadcast()
		}
	}()
}

func (e *Encoder) watchSource(f *frame, src Source) {
	ready := src.Ready()
	go func() {
		select {
		case <-ready:
		case <-e.quit:
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.err == nil && f.awaiting {
			f.awaiting = false
			e.cond.Broadcast()
		}
	}()
}

func checkSource(src Source) error {
	switch src.Mode() {
	case ModeFlowing:
		return ErrSourceFlowing
	case ModeEnded:
		return ErrSourceEnded
	}
	return nil
}

var (
	nullBytes          = []byte("null")
	trueBytes          = []byte("true")
	falseBytes         = []byte("false")
	openObjectBytes    = []byte("{")
	closeObjectBytes   = []byte("}")
	emptyObjectBytes   = []byte("{}")
	openArrayBytes     = []byte("[")
	closeArrayBytes    = []byte("]")
	emptyArrayBytes    = []byte("[]")
	itemSeparatorBytes = []byte(",")
	colonBytes         = []byte(":")
	prettyColonBytes   = []byte(": ")
)
