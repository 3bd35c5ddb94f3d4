package server

import "sync"

// notifier broadcasts dataset reloads to subscribed event streams.
// Subscribers receive an empty struct and should re-fetch what they show.
type notifier struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]struct{}
}

func newNotifier() *notifier {
	return &notifier{listeners: make(map[chan struct{}]struct{})}
}

// subscribe returns a channel that receives pings. Callers must unsubscribe.
func (n *notifier) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

func (n *notifier) unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// broadcast pings every listener without blocking; a full channel already
// has a ping pending.
func (n *notifier) broadcast() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *notifier) count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
