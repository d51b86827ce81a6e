package storage

// EventKind names the keyspace events a shard publishes to its subscribers.
type EventKind int

const (
	EventAdded EventKind = iota
	EventUpdated
	EventDeleted
	EventExpired
	EventExpireSet
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	case EventExpired:
		return "expired"
	case EventExpireSet:
		return "expire-set"
	default:
		return "unknown"
	}
}

// Event describes a single keyspace mutation published synchronously by a
// shard to every subscriber, in the goroutine of the operation that caused
// it.
type Event struct {
	Kind    EventKind
	ShardID int
	Key     string
}

// Subscriber receives keyspace events. A subscriber must not block for long
// and must not panic; publish recovers from a panicking subscriber so one
// bad subscriber cannot prevent the others from observing the event.
type Subscriber func(Event)

// publish fans an event out to every subscriber, isolating each call so a
// panic in one subscriber never reaches another or the caller.
func (s *Shard) publish(ev Event) {
	s.subMu.RLock()
	subs := s.subs
	s.subMu.RUnlock()

	for _, sub := range subs {
		func(sub Subscriber) {
			defer func() {
				if r := recover(); r != nil && s.logger != nil {
					s.logger.Sugar().Warnw("keyspace subscriber panicked", "recover", r)
				}
			}()
			sub(ev)
		}(sub)
	}
}

// Subscribe registers a subscriber for every event this shard publishes.
func (s *Shard) Subscribe(sub Subscriber) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, sub)
}
