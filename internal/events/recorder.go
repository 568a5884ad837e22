package events

import (
	"context" // Context propagation
	"sync"    // Mutex
)

// Published is one message captured by a Recorder
type Published struct {
	RoutingKey string
	Body       any
}

// Recorder keeps published messages in memory. Tests use it in place of RabbitMQ.
type Recorder struct {
	mu       sync.Mutex
	messages []Published
	Err      error // Returned by Publish when set
}

// Publish records the message
func (r *Recorder) Publish(_ context.Context, routingKey string, body any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, Published{RoutingKey: routingKey, Body: body})
	return nil
}

// Close does nothing
func (r *Recorder) Close() {}

// Messages returns a copy of everything published so far
func (r *Recorder) Messages() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.messages...)
}

// Keys returns the routing keys published so far, in order
func (r *Recorder) Keys() []string {
	var keys []string
	for _, m := range r.Messages() {
		keys = append(keys, m.RoutingKey)
	}
	return keys
}
