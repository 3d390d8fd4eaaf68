package store

import "sync"

// Notifier fans out table-change signals to subscribers. Signals are
// coalescing: a slow consumer sees at least one signal for any burst of
// writes, never a backlog.
type Notifier struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan struct{}
	nextID int
	closed bool
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[int]chan struct{})}
}

// Watch subscribes to changes of one table. The returned cancel func
// must be called when the consumer goes away.
func (n *Notifier) Watch(table string) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan struct{}, 1)
	if n.closed {
		close(ch)
		return ch, func() {}
	}

	id := n.nextID
	n.nextID++
	if n.subs[table] == nil {
		n.subs[table] = make(map[int]chan struct{})
	}
	n.subs[table][id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if subs, ok := n.subs[table]; ok {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
		}
	}
	return ch, cancel
}

// Publish signals every watcher of the table without blocking.
func (n *Notifier) Publish(table string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	for _, ch := range n.subs[table] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close closes all watch channels; further publishes are dropped.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for _, subs := range n.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
	}
}
