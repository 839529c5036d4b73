package notify

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/nats-io/nats.go"

	"cleanflow/internal/feed"
)

// Filter decides whether a change is visible to a subscriber. Filters see
// the full change, snapshot included, and must not retain it.
type Filter func(feed.Change) bool

// OwnerItems matches work-item changes owned by the given account. This is
// the resident view: their own bookings and reports, nobody else's.
func OwnerItems(ownerID string) Filter {
	return func(c feed.Change) bool {
		if c.Collection != feed.CollectionWorkItems {
			return false
		}
		var s struct {
			OwnerID string `json:"owner_id"`
		}
		if err := json.Unmarshal(c.Snapshot, &s); err != nil {
			return false
		}
		return s.OwnerID == ownerID
	}
}

// CollectorTasks matches work-item changes assigned to the given collector.
func CollectorTasks(collectorID string) Filter {
	return func(c feed.Change) bool {
		if c.Collection != feed.CollectionWorkItems {
			return false
		}
		var s struct {
			CollectorID *string `json:"collector_id"`
		}
		if err := json.Unmarshal(c.Snapshot, &s); err != nil {
			return false
		}
		return s.CollectorID != nil && *s.CollectorID == collectorID
	}
}

// AllItems matches every work-item change. Administrator view.
func AllItems() Filter {
	return func(c feed.Change) bool {
		return c.Collection == feed.CollectionWorkItems
	}
}

// AllPositions matches every collector record change, which is how position
// updates surface on the feed.
func AllPositions() Filter {
	return func(c feed.Change) bool {
		return c.Collection == feed.CollectionCollectors
	}
}

// Any matches when any of the given filters match.
func Any(filters ...Filter) Filter {
	return func(c feed.Change) bool {
		for _, f := range filters {
			if f(c) {
				return true
			}
		}
		return false
	}
}

const subscriptionBuffer = 64

// Subscription is one consumer's view of the feed. Receive from C; call
// Close when done. A consumer that stops draining loses messages rather
// than stalling the feed, so readers must treat C as a wake-up signal, not
// a complete history.
type Subscription struct {
	C      <-chan feed.Change
	ch     chan feed.Change
	filter Filter
	n      *Notifier
}

func (s *Subscription) Close() {
	s.n.unsubscribe(s)
}

// Notifier holds one broker subscription over every feed subject and fans
// changes out locally to per-consumer filtered channels.
type Notifier struct {
	sub *nats.Subscription

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewNotifier(nc *nats.Conn) (*Notifier, error) {
	n := &Notifier{subs: make(map[*Subscription]struct{})}
	sub, err := nc.Subscribe(feed.CollectionSubjects("*"), n.dispatch)
	if err != nil {
		return nil, err
	}
	n.sub = sub
	return n, nil
}

func (n *Notifier) dispatch(msg *nats.Msg) {
	var change feed.Change
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		log.Printf("[notify] drop undecodable message on %s: %v", msg.Subject, err)
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for s := range n.subs {
		if !s.filter(change) {
			continue
		}
		select {
		case s.ch <- change:
		default:
			// Slow consumer; it will refetch on the next change it sees.
		}
	}
}

func (n *Notifier) Subscribe(f Filter) *Subscription {
	ch := make(chan feed.Change, subscriptionBuffer)
	s := &Subscription{C: ch, ch: ch, filter: f, n: n}
	n.mu.Lock()
	n.subs[s] = struct{}{}
	n.mu.Unlock()
	return s
}

func (n *Notifier) unsubscribe(s *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subs[s]; !ok {
		return
	}
	delete(n.subs, s)
	close(s.ch)
}

// Close tears down the broker subscription and every open consumer channel.
func (n *Notifier) Close() error {
	err := n.sub.Unsubscribe()
	n.mu.Lock()
	defer n.mu.Unlock()
	for s := range n.subs {
		delete(n.subs, s)
		close(s.ch)
	}
	return err
}
