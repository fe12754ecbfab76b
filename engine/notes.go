package engine

import "sync"

type (
	// externalNote is a note played from outside the event ports, e.g. a
	// virtual keyboard. Velocity 0 releases the note.
	externalNote struct {
		channel  uint8
		note     uint8
		velocity uint8
	}

	noteQueue struct {
		mu    sync.Mutex
		notes []externalNote
	}
)

func newNoteQueue(capacity int) *noteQueue {
	return &noteQueue{notes: make([]externalNote, 0, capacity)}
}

func (q *noteQueue) push(n externalNote) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.notes) == cap(q.notes) {
		return false
	}
	q.notes = append(q.notes, n)
	return true
}

// tryDrain hands the queued notes to f and empties the queue. If the control
// thread is pushing a note right now, nothing happens and the notes wait for
// the next cycle.
func (q *noteQueue) tryDrain(f func(externalNote)) {
	if !q.mu.TryLock() {
		return
	}
	for _, n := range q.notes {
		f(n)
	}
	q.notes = q.notes[:0]
	q.mu.Unlock()
}

func (q *noteQueue) clear() {
	q.mu.Lock()
	q.notes = q.notes[:0]
	q.mu.Unlock()
}
