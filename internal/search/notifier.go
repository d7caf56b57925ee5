package search

import (
	"context"
	"log"
	"sync"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

// Mirror receives a copy of every published notification, typically to fan
// out beyond the process (message queue, websocket bridge).
type Mirror interface {
	Publish(ctx context.Context, n domain.SearchNotification) error
}

const subscriberBuffer = 64

// Notifier is the search lifecycle notification hub. Subscribers get a
// bounded buffered channel; a subscriber that falls behind has notifications
// dropped rather than blocking the orchestrator.
type Notifier struct {
	mu     sync.Mutex
	subs   map[int]chan domain.SearchNotification
	nextID int
	mirror Mirror
}

// NewNotifier creates a notification hub. The mirror may be nil.
func NewNotifier(mirror Mirror) *Notifier {
	return &Notifier{
		subs:   make(map[int]chan domain.SearchNotification),
		mirror: mirror,
	}
}

// Subscribe registers a new subscriber. The returned cancel function removes
// the subscription and closes the channel.
func (n *Notifier) Subscribe() (<-chan domain.SearchNotification, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	ch := make(chan domain.SearchNotification, subscriberBuffer)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers a notification to all subscribers and the mirror.
func (n *Notifier) Publish(ctx context.Context, notif domain.SearchNotification) {
	n.mu.Lock()
	for _, ch := range n.subs {
		select {
		case ch <- notif:
		default:
			// slow subscriber, drop
		}
	}
	mirror := n.mirror
	n.mu.Unlock()

	if mirror != nil {
		if err := mirror.Publish(ctx, notif); err != nil {
			log.Printf("notifier: mirror publish failed: %v", err)
		}
	}
}

// Subscribers returns the current subscriber count.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
