/******************************************************************************
 *
 *  Description :
 *    In-process queue of broker payloads shared between a subscription
 *    callback (single writer) and an interactive consumer (single reader).
 *
 *    Messages are inserted at the front and drained from the back, i.e.
 *    a full drain yields messages in arrival order.
 *
 *****************************************************************************/
package queue

import (
	"container/list"

	"github.com/chatmq/chatmq/server/concurrency"
)

type Messages struct {
	mu   concurrency.SimpleMutex
	list *list.List
}

// NewMessages creates an empty queue.
func NewMessages() *Messages {
	return &Messages{
		mu:   concurrency.NewSimpleMutex(),
		list: list.New(),
	}
}

// Insert adds a message at the front of the queue.
func (q *Messages) Insert(msg string) {
	q.mu.Lock()
	q.list.PushFront(msg)
	q.mu.Unlock()
}

// Contains reports whether an exact copy of msg is queued.
func (q *Messages) Contains(msg string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for e := q.list.Front(); e != nil; e = e.Next() {
		if e.Value.(string) == msg {
			return true
		}
	}
	return false
}

// PopLast removes and returns the oldest queued message.
func (q *Messages) PopLast() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.list.Back()
	if e == nil {
		return "", false
	}
	q.list.Remove(e)
	return e.Value.(string), true
}

// DrainAll removes all queued messages and returns them in arrival order.
func (q *Messages) DrainAll() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var msgs []string
	for e := q.list.Back(); e != nil; e = q.list.Back() {
		q.list.Remove(e)
		msgs = append(msgs, e.Value.(string))
	}
	return msgs
}

// Len returns the number of queued messages.
func (q *Messages) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}
