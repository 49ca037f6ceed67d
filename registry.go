package livesession

// Callback receives every MESSAGE delivered to a subscribed destination.
// Callbacks for one connection run sequentially on its reader goroutine; the
// Message must be treated as read-only because every subscriber of the
// destination receives the same value.
type Callback func(msg *Message)

// Unsubscribe removes the callback it was returned for. Calling it more than
// once is a no-op.
type Unsubscribe func()

// subscriber is one registration. Its pointer is the registration identity,
// so the same func subscribed twice yields two independent entries.
type subscriber struct {
	fn Callback
}

type subscription struct {
	destination string
	id          string // empty until SUBSCRIBE has been written on this connection
	subscribers []*subscriber
}

// subscriptionRegistry maps destination to its ordered subscribers. It is
// connection-scoped and not safe for concurrent use; the owning connection
// guards it with its mutex.
type subscriptionRegistry struct {
	byDest map[string]*subscription
	order  []string // destinations in first-registration order
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{
		byDest: make(map[string]*subscription),
	}
}

// add appends fn to destination's subscribers. needsSubscribe reports
// whether no SUBSCRIBE has been issued for the destination yet.
func (r *subscriptionRegistry) add(destination string, fn Callback) (sub *subscription, entry *subscriber, needsSubscribe bool) {
	sub, ok := r.byDest[destination]
	if !ok {
		sub = &subscription{destination: destination}
		r.byDest[destination] = sub
		r.order = append(r.order, destination)
	}
	entry = &subscriber{fn: fn}
	sub.subscribers = append(sub.subscribers, entry)
	return sub, entry, sub.id == ""
}

// remove deletes exactly entry from destination. It reports whether entry
// was found and whether the destination has no subscribers left.
func (r *subscriptionRegistry) remove(destination string, entry *subscriber) (sub *subscription, removed, empty bool) {
	sub, ok := r.byDest[destination]
	if !ok {
		return nil, false, false
	}
	for i, s := range sub.subscribers {
		if s == entry {
			sub.subscribers = append(sub.subscribers[:i:i], sub.subscribers[i+1:]...)
			return sub, true, len(sub.subscribers) == 0
		}
	}
	return sub, false, len(sub.subscribers) == 0
}

// forget drops the destination entirely, so the next add starts a fresh
// subscription with a new id.
func (r *subscriptionRegistry) forget(destination string) {
	if _, ok := r.byDest[destination]; !ok {
		return
	}
	delete(r.byDest, destination)
	for i, d := range r.order {
		if d == destination {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
}

// callbacks returns a snapshot of destination's callbacks in registration order.
func (r *subscriptionRegistry) callbacks(destination string) []Callback {
	sub, ok := r.byDest[destination]
	if !ok || len(sub.subscribers) == 0 {
		return nil
	}
	fns := make([]Callback, len(sub.subscribers))
	for i, s := range sub.subscribers {
		fns[i] = s.fn
	}
	return fns
}

// unsent returns the subscriptions with subscribers that have not had a
// SUBSCRIBE written yet, in first-registration order.
func (r *subscriptionRegistry) unsent() []*subscription {
	var subs []*subscription
	for _, d := range r.order {
		sub := r.byDest[d]
		if sub.id == "" && len(sub.subscribers) > 0 {
			subs = append(subs, sub)
		}
	}
	return subs
}

// destinations returns every destination with at least one subscriber.
func (r *subscriptionRegistry) destinations() []string {
	var dests []string
	for _, d := range r.order {
		if len(r.byDest[d].subscribers) > 0 {
			dests = append(dests, d)
		}
	}
	return dests
}
