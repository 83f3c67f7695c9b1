package stream

import (
	"errors"
	"testing"
	"time"
)

func TestPromiseSettlesOnce(t *testing.T) {
	p := NewPromise()
	p.Resolve(1)
	p.Resolve(2)
	p.Reject(errors.New("late"))

	select {
	case <-p.Done():
	default:
		t.Fatalf("promise should be settled")
	}
	v, err := p.Result()
	if v != 1 || err != nil {
		t.Errorf("expected (1, nil), got (%v, %v)", v, err)
	}
}

func TestByteQueueReady(t *testing.T) {
	q := NewByteQueue()

	select {
	case <-q.Ready():
		t.Fatalf("empty queue should not be ready")
	default:
	}

	done := make(chan struct{})
	ready := q.Ready()
	go func() {
		<-ready
		close(done)
	}()
	q.Push([]byte("x"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("push did not wake a waiter")
	}

	// with data queued, readiness is immediate
	select {
	case <-q.Ready():
	default:
		t.Fatalf("queue with data should be immediately ready")
	}
}

func TestByteQueueEndSemantics(t *testing.T) {
	q := NewByteQueue()
	q.Push([]byte("a"))
	q.End()
	q.Push([]byte("ignored"))

	if q.Ended() {
		t.Errorf("queue with buffered data is not ended yet")
	}
	chunk, err := q.Pull()
	if err != nil || string(chunk) != "a" {
		t.Fatalf("expected buffered chunk, got %q, %v", chunk, err)
	}
	if !q.Ended() {
		t.Errorf("drained ended queue should report Ended")
	}
	if chunk, _ := q.Pull(); chunk != nil {
		t.Errorf("pull after end returned %q", chunk)
	}
}

func TestRecordQueuePull(t *testing.T) {
	q := NewRecordQueue()
	if _, ok, _ := q.Pull(); ok {
		t.Fatalf("empty queue yielded a record")
	}
	q.Push(1)
	q.Push("two")
	rec, ok, err := q.Pull()
	if !ok || err != nil || rec != 1 {
		t.Errorf("expected (1, true), got (%v, %v, %v)", rec, ok, err)
	}
	q.Fail(errors.New("broken"))
	if _, _, err := q.Pull(); err == nil {
		t.Errorf("expected failure to surface on pull")
	}
}
