// Package events carries room lifecycle changes and operator alerts.
package events

import "time"

type Kind string

const (
	RoomCreated   Kind = "room-created"
	RoomDeleted   Kind = "room-deleted"
	CodeExhausted Kind = "code-exhausted"
	ClientEvicted Kind = "client-evicted"
)

type RoomEvent struct {
	Kind   Kind      `json:"kind"`
	RoomID string    `json:"roomId,omitempty"`
	Code   string    `json:"code,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

type Bus struct {
	RoomChanges chan RoomEvent
}

func NewBus() *Bus {
	return &Bus{
		RoomChanges: make(chan RoomEvent, 64),
	}
}

// Publish queues ev without blocking. It reports false when the bus is full.
func (b *Bus) Publish(ev RoomEvent) bool {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case b.RoomChanges <- ev:
		return true
	default:
		return false
	}
}
