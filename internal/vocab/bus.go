package vocab

import (
	"log/slog"
	"sync"
)

// Bus fans [DictionaryChanged] events out to subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]chan DictionaryChanged
}

// NewBus returns a Bus without subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan DictionaryChanged)}
}

// Subscribe returns a channel receiving future events and a function that
// unsubscribes and closes it.
func (b *Bus) Subscribe(buffer int) (<-chan DictionaryChanged, func()) {
	ch := make(chan DictionaryChanged, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber with room in its buffer.
func (b *Bus) Publish(ev DictionaryChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("vocab: dropping dictionary event for slow subscriber", "subscriber", id, "owner", ev.OwnerID)
		}
	}
}
