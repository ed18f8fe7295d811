package service

import (
	"sync"
)

// InternalIndexSnapshot is an immutable view of the internal index
// configuration taken at one point in time
type InternalIndexSnapshot struct {
	Configured bool
	Collection string
	Documents  []string
	Version    int64
}

// InternalIndexConfig is the process-wide pointer to the current internal
// document collection. It is replaced wholesale and never mutated in place.
//
// Readers that query a collection pin it with Acquire. A collection replaced
// while pinned is dropped only after its last reader releases it.
type InternalIndexConfig struct {
	mu         sync.RWMutex
	configured bool
	collection string
	documents  []string
	version    int64

	readers map[string]int
	retired map[string]func()
}

// NewInternalIndexConfig returns an unset configuration
func NewInternalIndexConfig() *InternalIndexConfig {
	return &InternalIndexConfig{}
}

// Snapshot returns a copy of the current configuration
func (c *InternalIndexConfig) Snapshot() InternalIndexSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *InternalIndexConfig) snapshotLocked() InternalIndexSnapshot {
	return InternalIndexSnapshot{
		Configured: c.configured,
		Collection: c.collection,
		Documents:  append([]string(nil), c.documents...),
		Version:    c.version,
	}
}

// Acquire returns a snapshot and pins its collection until release is
// called. release is safe to call more than once.
func (c *InternalIndexConfig) Acquire() (InternalIndexSnapshot, func()) {
	c.mu.Lock()
	snap := c.snapshotLocked()
	if snap.Configured {
		if c.readers == nil {
			c.readers = make(map[string]int)
		}
		c.readers[snap.Collection]++
	}
	c.mu.Unlock()

	if !snap.Configured {
		return snap, func() {}
	}
	var once sync.Once
	return snap, func() {
		once.Do(func() { c.release(snap.Collection) })
	}
}

func (c *InternalIndexConfig) release(collection string) {
	var drop func()

	c.mu.Lock()
	c.readers[collection]--
	if c.readers[collection] <= 0 {
		delete(c.readers, collection)
		drop = c.retired[collection]
		delete(c.retired, collection)
	}
	c.mu.Unlock()

	if drop != nil {
		drop()
	}
}

// Retire hands over a collection that is no longer active. When no reader
// holds it, Retire returns false and the caller drops it. Otherwise drop
// runs once the last reader releases it and Retire returns true.
func (c *InternalIndexConfig) Retire(collection string, drop func()) (deferred bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if collection == "" || c.readers[collection] == 0 {
		return false
	}
	if c.retired == nil {
		c.retired = make(map[string]func())
	}
	c.retired[collection] = drop
	return true
}

// Readers returns how many readers currently hold collection
func (c *InternalIndexConfig) Readers(collection string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readers[collection]
}

// Swap installs a fully built collection and returns the collection it
// replaced, if any
func (c *InternalIndexConfig) Swap(collection string, documents []string) (previous string) {
	names := append([]string(nil), documents...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configured {
		previous = c.collection
	}
	c.configured = true
	c.collection = collection
	c.documents = names
	c.version++
	return previous
}

// Clear unsets the configuration and returns the collection that was active
func (c *InternalIndexConfig) Clear() (previous string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configured {
		previous = c.collection
	}
	c.configured = false
	c.collection = ""
	c.documents = nil
	c.version++
	return previous
}

// Names returns a copy of the indexed document names
func (c *InternalIndexConfig) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string{}, c.documents...)
}
