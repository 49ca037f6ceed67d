package livesession

import (
	"testing"
)

func TestSubscriptionRegistry_FirstAddNeedsSubscribe(t *testing.T) {
	r := newSubscriptionRegistry()
	fn := func(*Message) {}

	sub, _, needs := r.add("/topic/x", fn)
	if !needs {
		t.Fatal("first add should need SUBSCRIBE")
	}
	sub.id = "sub-1"

	_, _, needs = r.add("/topic/x", fn)
	if needs {
		t.Error("second add after SUBSCRIBE should not need another")
	}
}

func TestSubscriptionRegistry_CallbacksInRegistrationOrder(t *testing.T) {
	r := newSubscriptionRegistry()
	var calls []int
	for i := range 3 {
		r.add("/topic/x", func(*Message) { calls = append(calls, i) })
	}
	for _, fn := range r.callbacks("/topic/x") {
		fn(nil)
	}
	if len(calls) != 3 || calls[0] != 0 || calls[1] != 1 || calls[2] != 2 {
		t.Errorf("calls = %v, want [0 1 2]", calls)
	}
}

func TestSubscriptionRegistry_RemoveExactEntry(t *testing.T) {
	r := newSubscriptionRegistry()
	hits := 0
	fn := func(*Message) { hits++ }

	_, first, _ := r.add("/topic/x", fn)
	r.add("/topic/x", fn)

	_, removed, empty := r.remove("/topic/x", first)
	if !removed || empty {
		t.Fatalf("remove() = removed %v empty %v, want true false", removed, empty)
	}
	_, removed, _ = r.remove("/topic/x", first)
	if removed {
		t.Error("removing the same entry twice should be a no-op")
	}

	for _, cb := range r.callbacks("/topic/x") {
		cb(nil)
	}
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
}

func TestSubscriptionRegistry_RemoveFromOtherDestination(t *testing.T) {
	r := newSubscriptionRegistry()
	_, entry, _ := r.add("/topic/x", func(*Message) {})
	r.add("/topic/y", func(*Message) {})

	if _, removed, _ := r.remove("/topic/y", entry); removed {
		t.Error("entry must only be removable from its own destination")
	}
	if _, removed, _ := r.remove("/topic/none", entry); removed {
		t.Error("unknown destination should not remove anything")
	}
}

func TestSubscriptionRegistry_SnapshotUnaffectedByRemove(t *testing.T) {
	r := newSubscriptionRegistry()
	_, a, _ := r.add("/topic/x", func(*Message) {})
	r.add("/topic/x", func(*Message) {})

	snapshot := r.callbacks("/topic/x")
	r.remove("/topic/x", a)
	if len(snapshot) != 2 {
		t.Errorf("snapshot len = %d, want 2", len(snapshot))
	}
	if len(r.callbacks("/topic/x")) != 1 {
		t.Errorf("live callbacks = %d, want 1", len(r.callbacks("/topic/x")))
	}
}

func TestSubscriptionRegistry_Unsent(t *testing.T) {
	r := newSubscriptionRegistry()
	subA, _, _ := r.add("/topic/a", func(*Message) {})
	r.add("/topic/b", func(*Message) {})
	_, c, _ := r.add("/topic/c", func(*Message) {})
	r.remove("/topic/c", c)
	subA.id = "sub-1"

	unsent := r.unsent()
	if len(unsent) != 1 || unsent[0].destination != "/topic/b" {
		t.Errorf("unsent = %v, want only /topic/b", unsent)
	}
}

func TestSubscriptionRegistry_Forget(t *testing.T) {
	r := newSubscriptionRegistry()
	sub, _, _ := r.add("/topic/a", func(*Message) {})
	sub.id = "sub-1"
	r.add("/topic/b", func(*Message) {})

	r.forget("/topic/a")
	r.forget("/topic/missing")

	if got := r.destinations(); len(got) != 1 || got[0] != "/topic/b" {
		t.Errorf("destinations() = %v, want [/topic/b]", got)
	}
	if _, _, needs := r.add("/topic/a", func(*Message) {}); !needs {
		t.Error("add after forget should need a fresh SUBSCRIBE")
	}
}

func TestSubscriptionRegistry_UnknownDestination(t *testing.T) {
	r := newSubscriptionRegistry()
	if cbs := r.callbacks("/topic/none"); cbs != nil {
		t.Errorf("callbacks() = %v, want nil", cbs)
	}
}
