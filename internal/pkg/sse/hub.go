package sse

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
)

// Event is one message written to a subscriber's stream.
type Event struct {
	UserID string
	Name   string
	Data   payroll.RunEvent
}

// Hub fans run events out to the SSE streams of each recipient.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	bufferSize  int
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		bufferSize:  16,
	}
}

// Subscribe registers a stream for a user and returns its channel and the
// cleanup function that closes it.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.bufferSize)

	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[chan Event]struct{})
	}
	h.subscribers[userID][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[userID], ch)
			close(ch)
			if len(h.subscribers[userID]) == 0 {
				delete(h.subscribers, userID)
			}
		})
	}

	return ch, cleanup
}

// Publish sends an event to all streams of a user. Full streams drop the event.
func (h *Hub) Publish(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[userID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Notify delivers a run event to every recipient connected to this process.
func (h *Hub) Notify(_ context.Context, recipientIDs []string, _ string, event payroll.RunEvent) error {
	for _, userID := range recipientIDs {
		h.Publish(userID, Event{UserID: userID, Name: string(event.Type), Data: event})
	}
	return nil
}

// SubscriberCount returns the number of open streams for a user.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}
