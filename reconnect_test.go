package livesession

import (
	"testing"
	"time"
)

func TestBackoff_ExponentialWithCap(t *testing.T) {
	b := newBackoff(1*time.Second, 30*time.Second)

	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i, w := range want {
		if d := b.next(); d != w*time.Second {
			t.Errorf("backoff #%d = %v, want %v", i+1, d, w*time.Second)
		}
	}
}

func TestBackoff_ResetAfterCap(t *testing.T) {
	b := newBackoff(250*time.Millisecond, time.Second)
	for range 5 {
		b.next()
	}
	if d := b.next(); d != time.Second {
		t.Fatalf("capped backoff = %v, want 1s", d)
	}

	b.reset()
	if d := b.next(); d != 250*time.Millisecond {
		t.Errorf("after reset, backoff = %v, want 250ms", d)
	}
}

func TestBackoff_MaxBelowInitial(t *testing.T) {
	b := newBackoff(5*time.Second, time.Second)
	if d := b.next(); d != 5*time.Second {
		t.Errorf("backoff = %v, want 5s", d)
	}
}
