package bandwidth

import (
	"time"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

// QueueEntry is one pending or active request tracked by the governor.
// Lifecycle: queued -> active -> completed | failed (requeued while retries
// remain).
type QueueEntry struct {
	ID             string
	Priority       domain.RequestPriority
	EnqueuedAt     time.Time
	StartedAt      time.Time
	NotBefore      time.Time // retry backoff gate; zero means immediately eligible
	EstimatedBytes int64
	RetryCount     int
	MaxRetries     int
}

// requestQueue keeps entries ordered by priority (high first), FIFO within a
// priority tier. Not safe for concurrent use; the governor serializes access.
type requestQueue struct {
	entries []*QueueEntry
}

// push inserts an entry behind all entries of equal or higher priority.
func (q *requestQueue) push(e *QueueEntry) {
	idx := len(q.entries)
	for i, cur := range q.entries {
		if cur.Priority < e.Priority {
			idx = i
			break
		}
	}
	q.entries = append(q.entries, nil)
	copy(q.entries[idx+1:], q.entries[idx:])
	q.entries[idx] = e
}

// pop removes and returns the first entry whose backoff gate has passed, or
// nil when nothing is eligible.
func (q *requestQueue) pop(now time.Time) *QueueEntry {
	for i, e := range q.entries {
		if e.NotBefore.After(now) {
			continue
		}
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		return e
	}
	return nil
}

// remove deletes the entry with the given id, returning it if found.
func (q *requestQueue) remove(id string) *QueueEntry {
	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return e
		}
	}
	return nil
}

func (q *requestQueue) len() int {
	return len(q.entries)
}
