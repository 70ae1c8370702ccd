package service

import "sync"

// Coordinator serialises writes per student and lets a selection run take a
// consistent snapshot. Per-student work holds the gate shared; selection
// holds it exclusively, so it never observes a half-applied aggregation.
type Coordinator struct {
	gate  sync.RWMutex
	mu    sync.Mutex
	locks map[uint]*studentLock
}

type studentLock struct {
	mu   sync.Mutex
	refs int
}

// NewCoordinator constructs an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{locks: make(map[uint]*studentLock)}
}

// WithStudent runs fn inside the student's critical section.
func (c *Coordinator) WithStudent(studentID uint, fn func() error) error {
	c.gate.RLock()
	defer c.gate.RUnlock()

	lock := c.acquire(studentID)
	lock.mu.Lock()
	defer func() {
		lock.mu.Unlock()
		c.release(studentID, lock)
	}()

	return fn()
}

// Exclusive runs fn while no per-student work is in flight.
func (c *Coordinator) Exclusive(fn func() error) error {
	c.gate.Lock()
	defer c.gate.Unlock()
	return fn()
}

func (c *Coordinator) acquire(studentID uint) *studentLock {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[studentID]
	if !ok {
		lock = &studentLock{}
		c.locks[studentID] = lock
	}
	lock.refs++
	return lock
}

func (c *Coordinator) release(studentID uint, lock *studentLock) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(c.locks, studentID)
	}
}
