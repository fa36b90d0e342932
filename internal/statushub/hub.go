package statushub

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Hub is a multi-consumer broadcast channel keyed by execution id. Each
// subscriber receives every event published from the point of subscription
// onward; there is no replay, and delivery is at most once per subscriber.
// Publishing with no subscribers attached is a no-op.
type Hub struct {
	// subscribers maps execution ids to a map of subscription ids to
	// subscriber channels
	subscribers map[string]map[string]chan Event

	// closedExecutions records executions whose stream already ended with a
	// CLOSED event, so late subscribers see exactly one CLOSED and nothing
	// else
	closedExecutions map[string]struct{}

	// closed indicates the hub itself has been shut down
	closed bool

	mutex sync.RWMutex

	// Configuration
	subscriberBuffer int
}

// Option configures the hub.
type Option func(*Hub)

// WithSubscriberBuffer sets the per-subscriber channel buffer size. A slow
// subscriber whose buffer is full misses events rather than blocking the
// executor.
func WithSubscriberBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.subscriberBuffer = size
		}
	}
}

// NewHub creates a new status hub.
func NewHub(options ...Option) *Hub {
	h := &Hub{
		subscribers:      make(map[string]map[string]chan Event),
		closedExecutions: make(map[string]struct{}),

		// Default configuration
		subscriberBuffer: 32,
	}

	for _, option := range options {
		option(h)
	}

	return h
}

// Subscribe attaches a new subscriber to an execution id. It returns the
// event channel and a cancel function that detaches the subscriber without
// affecting others. Subscribing to an execution that already closed yields a
// channel carrying only the terminal CLOSED event.
func (h *Hub) Subscribe(executionID string) (<-chan Event, func(), error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return nil, nil, fmt.Errorf("status hub is closed")
	}
	if executionID == "" {
		return nil, nil, fmt.Errorf("execution id is required")
	}

	ch := make(chan Event, h.subscriberBuffer)

	if _, done := h.closedExecutions[executionID]; done {
		ch <- NewEvent(PhaseClosed, "")
		close(ch)
		return ch, func() {}, nil
	}

	subscriptionID := uuid.New().String()
	if _, exists := h.subscribers[executionID]; !exists {
		h.subscribers[executionID] = make(map[string]chan Event)
	}
	h.subscribers[executionID][subscriptionID] = ch

	cancel := func() {
		h.mutex.Lock()
		defer h.mutex.Unlock()
		subs, exists := h.subscribers[executionID]
		if !exists {
			return
		}
		if sub, attached := subs[subscriptionID]; attached {
			delete(subs, subscriptionID)
			close(sub)
		}
		if len(subs) == 0 {
			delete(h.subscribers, executionID)
		}
	}

	return ch, cancel, nil
}

// Publish delivers an event to every subscriber of the execution id. A full
// subscriber buffer drops the event for that subscriber only; a gone
// subscriber is never an error.
func (h *Hub) Publish(ctx context.Context, executionID string, event Event) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.closed {
		return fmt.Errorf("status hub is closed")
	}
	if _, done := h.closedExecutions[executionID]; done {
		return fmt.Errorf("execution '%s' stream already closed", executionID)
	}

	for _, sub := range h.subscribers[executionID] {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full; at-most-once delivery means we drop
			// rather than block the executor.
		}
	}
	return nil
}

// CloseExecution ends the stream for an execution id: every subscriber
// receives a single CLOSED event and its channel is closed. Subsequent
// publishes for the id fail and later subscribers see only CLOSED.
func (h *Hub) CloseExecution(ctx context.Context, executionID string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return fmt.Errorf("status hub is closed")
	}
	if _, done := h.closedExecutions[executionID]; done {
		return nil // Already closed
	}
	h.closedExecutions[executionID] = struct{}{}

	closedEvent := NewEvent(PhaseClosed, "")
	for _, sub := range h.subscribers[executionID] {
		select {
		case sub <- closedEvent:
		default:
		}
		close(sub)
	}
	delete(h.subscribers, executionID)
	return nil
}

// Forget drops the closed-stream marker for an execution id. Call it once
// the execution's result has been collected to keep the marker set bounded.
func (h *Hub) Forget(executionID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.closedExecutions, executionID)
}

// SubscriberCount returns how many subscribers are attached to an execution.
func (h *Hub) SubscriberCount(executionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.subscribers[executionID])
}

// Close shuts down the hub, closing every subscriber channel.
func (h *Hub) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return nil // Already closed
	}
	h.closed = true

	for executionID, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub)
		}
		delete(h.subscribers, executionID)
	}
	return nil
}
