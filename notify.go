package mcp

import "sync"

// changeNotifier fans a change signal out to subscribers without blocking the
// notifier. Each subscriber has a one-slot buffer, so bursts of changes
// coalesce into a single pending signal.
type changeNotifier struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

func newChangeNotifier() *changeNotifier {
	return &changeNotifier{
		subs: make(map[int]chan struct{}),
	}
}

func (n *changeNotifier) notify() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// subscribe returns a signal channel and a cancel function releasing it.
func (n *changeNotifier) subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.subs[id] = ch

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}
