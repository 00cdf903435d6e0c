// Package broadcast fans room lifecycle events out to operator SSE streams.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"quizbuzzer/internal/events"
)

type Message struct {
	Event string
	Data  string
}

type Broadcaster struct {
	mu      sync.Mutex
	clients map[chan Message]bool
	bus     *events.Bus
}

func NewBroadcaster(bus *events.Bus) *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan Message]bool),
		bus:     bus,
	}
}

// Run forwards bus events to subscribers until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.bus.RoomChanges:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			b.Broadcast(string(ev.Kind), string(data))
		}
	}
}

func (b *Broadcaster) Subscribe() chan Message {
	ch := make(chan Message, 10)
	b.mu.Lock()
	b.clients[ch] = true
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) Unsubscribe(ch chan Message) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) Broadcast(event string, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- Message{Event: event, Data: data}:
		default:
			// operators that fall behind miss events
		}
	}
}
