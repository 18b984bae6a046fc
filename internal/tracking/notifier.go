package tracking

import "sync"

// Notifier broadcasts a coarse "tracking changed" signal. Each subscriber has
// a one-slot buffer, so bursts coalesce and a slow reader never blocks Notify.
type Notifier struct {
	mu     sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

// NewNotifier creates a notifier with no subscribers.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan struct{})}
}

// Subscribe returns a channel that receives a value after each change and a
// function that releases the subscription.
func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan struct{}, 1)
	n.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Notify signals every subscriber without blocking.
func (n *Notifier) Notify() {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
