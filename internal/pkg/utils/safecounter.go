package utils

import "sync"

// SafeCounter is a counter usable in parallel.
type SafeCounter struct {
	mutex sync.Mutex
	value int
}

func NewSafeCounter(value int) *SafeCounter {
	return &SafeCounter{value: value}
}

func (c *SafeCounter) Inc() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.value++
}

func (c *SafeCounter) IncAndGet() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.value++
	return c.value
}

func (c *SafeCounter) Value() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.value
}
