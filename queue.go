package livesession

import "github.com/eapache/queue"

// outboundQueue buffers encoded SEND frames written before the handshake
// completes. It is not safe for concurrent use; the owning connection
// guards it with its mutex.
type outboundQueue struct {
	items *queue.Queue
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{items: queue.New()}
}

func (q *outboundQueue) enqueue(frame []byte) {
	q.items.Add(frame)
}

func (q *outboundQueue) len() int {
	return q.items.Length()
}

// flush drains the queue in FIFO order, passing each item to write.
// Items are removed before write is called, so a failing write never causes
// an item to be sent twice. Flushing stops at the first write error and the
// remaining items stay queued.
func (q *outboundQueue) flush(write func([]byte) error) error {
	for q.items.Length() > 0 {
		frame := q.items.Remove().([]byte)
		if err := write(frame); err != nil {
			return err
		}
	}
	return nil
}

// drop discards everything still queued and returns how many items were lost.
func (q *outboundQueue) drop() int {
	n := q.items.Length()
	q.items = queue.New()
	return n
}
