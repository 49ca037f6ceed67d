package livesession

import (
	"errors"
	"testing"
)

func TestOutboundQueue_FlushFIFO(t *testing.T) {
	q := newOutboundQueue()
	q.enqueue([]byte("s1"))
	q.enqueue([]byte("s2"))
	q.enqueue([]byte("s3"))

	var written []string
	err := q.flush(func(b []byte) error {
		written = append(written, string(b))
		return nil
	})
	if err != nil {
		t.Fatalf("flush() error: %v", err)
	}
	if len(written) != 3 || written[0] != "s1" || written[1] != "s2" || written[2] != "s3" {
		t.Errorf("flush order = %v, want [s1 s2 s3]", written)
	}
	if q.len() != 0 {
		t.Errorf("len() after flush = %d, want 0", q.len())
	}
}

func TestOutboundQueue_FlushEmpty(t *testing.T) {
	q := newOutboundQueue()
	calls := 0
	if err := q.flush(func([]byte) error { calls++; return nil }); err != nil {
		t.Fatalf("flush() error: %v", err)
	}
	if calls != 0 {
		t.Errorf("write called %d times on empty queue", calls)
	}
}

func TestOutboundQueue_FlushStopsOnError(t *testing.T) {
	q := newOutboundQueue()
	q.enqueue([]byte("s1"))
	q.enqueue([]byte("s2"))
	q.enqueue([]byte("s3"))

	boom := errors.New("write failed")
	var attempted []string
	err := q.flush(func(b []byte) error {
		attempted = append(attempted, string(b))
		if string(b) == "s2" {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("flush() error = %v, want %v", err, boom)
	}
	if len(attempted) != 2 {
		t.Errorf("attempted = %v, want [s1 s2]", attempted)
	}
	// The failed item is not retried; only s3 remains.
	if q.len() != 1 {
		t.Errorf("len() = %d, want 1", q.len())
	}
}

func TestOutboundQueue_Drop(t *testing.T) {
	q := newOutboundQueue()
	q.enqueue([]byte("s1"))
	q.enqueue([]byte("s2"))
	if n := q.drop(); n != 2 {
		t.Errorf("drop() = %d, want 2", n)
	}
	if q.len() != 0 {
		t.Errorf("len() after drop = %d", q.len())
	}
	q.enqueue([]byte("s3"))
	if q.len() != 1 {
		t.Errorf("queue should accept items after drop")
	}
}
