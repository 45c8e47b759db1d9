package pool

import "container/list"

// grant is what a waiter receives: a lease on a Ready handle, a reserved slot to spawn
// into, or an error when the pool shuts down.
type grant struct {
	lease *Lease
	slot  int
	spawn bool
	err   error
}

type waiter struct {
	ch   chan grant
	elem *list.Element
}

// waitQueue is a FIFO of blocked Acquire calls. It is guarded by the pool mutex.
type waitQueue struct {
	l list.List
}

func (q *waitQueue) len() int {
	return q.l.Len()
}

func (q *waitQueue) push() *waiter {
	w := &waiter{ch: make(chan grant, 1)}
	w.elem = q.l.PushBack(w)
	return w
}

// pop removes the head waiter, or returns nil when the queue is empty.
func (q *waitQueue) pop() *waiter {
	front := q.l.Front()
	if front == nil {
		return nil
	}
	w := q.l.Remove(front).(*waiter)
	w.elem = nil
	return w
}

// remove takes w out of the queue. It returns false when w was already popped,
// in which case a grant is in flight on w.ch.
func (q *waitQueue) remove(w *waiter) bool {
	if w.elem == nil {
		return false
	}
	q.l.Remove(w.elem)
	w.elem = nil
	return true
}

// drain empties the queue and returns its waiters in order.
func (q *waitQueue) drain() []*waiter {
	var waiters []*waiter
	for w := q.pop(); w != nil; w = q.pop() {
		waiters = append(waiters, w)
	}
	return waiters
}
