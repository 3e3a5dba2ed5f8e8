package progress

import (
	"sync"
	"time"
)

// Registry maps job identifiers to their progress queues. The download
// handler (producer) and the stream handler (consumer) run on independent
// request lifetimes and meet only here.
type Registry struct {
	mu     sync.Mutex
	depth  int
	queues map[string]*queue
}

type queue struct {
	ch       chan Event
	lastSeen time.Time
}

// NewRegistry creates a registry whose per-job queues hold at most depth
// events.
func NewRegistry(depth int) *Registry {
	if depth < 1 {
		depth = 1
	}
	return &Registry{
		depth:  depth,
		queues: make(map[string]*queue),
	}
}

// Register returns the job's event queue, creating it on first access.
// Both the download handler and the stream subscriber call this; whoever
// arrives first creates the queue, so events published before the
// subscriber attaches are retained.
func (r *Registry) Register(jobID string) <-chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[jobID]
	if !ok {
		q = &queue{ch: make(chan Event, r.depth)}
		r.queues[jobID] = q
	}
	q.lastSeen = time.Now()
	return q.ch
}

// Publish appends an event to a registered job's queue in FIFO order.
// Unknown job ids are a no-op: callbacks may fire outside the job's
// subscription window and must not create queues. When the queue is full
// the oldest event is dropped to admit the new one.
func (r *Registry) Publish(jobID string, ev Event) bool {
	r.mu.Lock()
	q, ok := r.queues[jobID]
	if ok {
		q.lastSeen = time.Now()
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	for {
		select {
		case q.ch <- ev:
			return true
		default:
		}
		select {
		case <-q.ch:
		default:
		}
	}
}

// Remove deletes a job's queue. Idempotent; removing an absent job is a
// no-op.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queues, jobID)
}

// Has reports whether a queue exists for the job.
func (r *Registry) Has(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.queues[jobID]
	return ok
}

// Sweep evicts queues with no publish or register activity for longer
// than maxIdle and returns how many were dropped. Covers jobs whose
// subscriber never attached.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, q := range r.queues {
		if q.lastSeen.Before(cutoff) {
			delete(r.queues, id)
			n++
		}
	}
	return n
}
