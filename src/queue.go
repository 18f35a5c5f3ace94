package sifzz

import (
	"sync"
)

// Message is work handed from a background goroutine to the execution
// thread. Apply runs first when set, then Command is executed as a script
// line (or fragment).
type Message struct {
	Source  string
	Apply   func(env *Environment)
	Command string
}

// Queue is an unbounded FIFO of messages. Post never blocks.
type Queue struct {
	mu       sync.Mutex
	messages []Message
	notify   chan struct{}
	closed   bool
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Post appends a message and wakes a waiting consumer
func (q *Queue) Post(msg Message) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.messages = append(q.messages, msg)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Drain removes and returns every pending message in post order
func (q *Queue) Drain() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil
	}
	out := q.messages
	q.messages = nil
	return out
}

// Len returns the number of pending messages
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Notify is signalled after a Post
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

// Close drops pending messages and ignores later posts
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.messages = nil
}
