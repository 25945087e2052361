package sim

import (
	"cmp"
	"container/heap"
	"fmt"
)

// EventQueue is a min-heap of events with deterministic ordering:
// time → category → event ID. Each event tracks its heap index so that it
// can be removed in O(log n) when a pickup or assignment cancels it.
type EventQueue struct {
	events []Event
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{events: make([]Event, 0)}
	heap.Init(q)
	return q
}

func compareEvents(a, b Event) int {
	if c := cmp.Compare(a.Time(), b.Time()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Category(), b.Category()); c != 0 {
		return c
	}
	return cmp.Compare(a.ID(), b.ID())
}

// Len implements heap.Interface
func (q *EventQueue) Len() int { return len(q.events) }

// Less implements heap.Interface. Two distinct events with the same key are a defect.
func (q *EventQueue) Less(i, j int) bool {
	a, b := q.events[i], q.events[j]
	c := compareEvents(a, b)
	if c == 0 && a != b {
		panic(fmt.Sprintf("events collide on (time=%d, category=%s, id=%d)", a.Time(), a.Category(), a.ID()))
	}
	return c < 0
}

// Swap implements heap.Interface
func (q *EventQueue) Swap(i, j int) {
	q.events[i], q.events[j] = q.events[j], q.events[i]
	q.events[i].base().index = i
	q.events[j].base().index = j
}

// Push implements heap.Interface
func (q *EventQueue) Push(x any) {
	e := x.(Event)
	e.base().index = len(q.events)
	q.events = append(q.events, e)
}

// Pop implements heap.Interface
func (q *EventQueue) Pop() any {
	old := q.events
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	q.events = old[:n-1]
	e.base().index = -1
	return e
}

// Schedule adds an event. Scheduling an event that is already queued panics.
func (q *EventQueue) Schedule(e Event) {
	if q.Contains(e) {
		panic(fmt.Sprintf("event %d scheduled twice", e.ID()))
	}
	heap.Push(q, e)
}

// Contains reports whether e is currently queued.
func (q *EventQueue) Contains(e Event) bool {
	i := e.base().index
	return i >= 0 && i < len(q.events) && q.events[i] == e
}

// Remove takes e out of the queue. It reports false if e was not queued.
func (q *EventQueue) Remove(e Event) bool {
	if !q.Contains(e) {
		return false
	}
	heap.Remove(q, e.base().index)
	return true
}

// PopNext removes and returns the next event, nil when empty.
func (q *EventQueue) PopNext() Event {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(Event)
}

// Peek returns the next event without removing it, nil when empty.
func (q *EventQueue) Peek() Event {
	if q.Len() == 0 {
		return nil
	}
	return q.events[0]
}
