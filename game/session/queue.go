package session

import "sync"

// Queue is the FIFO matchmaking queue of waiting connection identities.
// An identity exists in the queue only between "connected, unpaired" and
// "paired or disconnected". Fewer than two waiters is a normal state, not
// an error.
type Queue struct {
	order   []string
	waiting map[string]bool
	mu      sync.Mutex
}

// NewQueue creates an empty matchmaking queue.
func NewQueue() *Queue {
	return &Queue{
		waiting: make(map[string]bool),
	}
}

// Enqueue appends id to the tail. A duplicate enqueue of an id that is
// already waiting is ignored and reported false.
func (q *Queue) Enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.waiting[id] {
		return false
	}
	q.order = append(q.order, id)
	q.waiting[id] = true
	return true
}

// DequeuePair atomically removes and returns the two oldest entries.
// It reports false without removing anything when fewer than two are
// waiting.
func (q *Queue) DequeuePair() (first, second string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) < 2 {
		return "", "", false
	}
	first, second = q.order[0], q.order[1]
	q.order = q.order[2:]
	delete(q.waiting, first)
	delete(q.waiting, second)
	return first, second, true
}

// Remove deletes id from the queue if present. Removing an absent id is a
// no-op.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.waiting[id] {
		return false
	}
	delete(q.waiting, id)
	for i, waiting := range q.order {
		if waiting == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of waiting identities.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
