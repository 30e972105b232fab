package notify

import "sync"

// subscriber channels are buffered; a full buffer drops the event. A
// dropped event is harmless here because every event triggers the same
// full reload, and one is already pending.
const subscriberBuffer = 8

// Broker fans Change events out to per-user subscribers. It is safe for
// concurrent use.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan Change
	nextID int
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[int]chan Change)}
}

// Subscribe registers interest in one user's changes. The returned cancel
// function is idempotent and closes the channel.
func (b *Broker) Subscribe(userID string) (<-chan Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Change, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[int]chan Change)
	}
	b.subs[userID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[userID]; ok {
			if c, ok := set[id]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(b.subs, userID)
				}
				close(c)
			}
		}
	}
	return ch, cancel
}

// Publish delivers the change to every subscriber of its user.
func (b *Broker) Publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[c.UserID] {
		select {
		case ch <- c:
		default:
		}
	}
}

// Close terminates all subscriptions. Publish and Subscribe become no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, set := range b.subs {
		for _, ch := range set {
			close(ch)
		}
	}
	b.subs = nil
}
