package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalIndexConfigLifecycle(t *testing.T) {
	c := NewInternalIndexConfig()

	snap := c.Snapshot()
	assert.False(t, snap.Configured)
	assert.Empty(t, c.Names())

	assert.Equal(t, "", c.Swap("v1", []string{"convencao.pdf"}))
	assert.Equal(t, "v1", c.Swap("v2", []string{"regimento.pdf", "ata.txt"}))

	snap = c.Snapshot()
	assert.True(t, snap.Configured)
	assert.Equal(t, "v2", snap.Collection)
	assert.Equal(t, int64(2), snap.Version)
	assert.Equal(t, []string{"regimento.pdf", "ata.txt"}, c.Names())

	assert.Equal(t, "v2", c.Clear())
	assert.False(t, c.Snapshot().Configured)
	assert.Equal(t, "", c.Clear())
}

func TestInternalIndexConfigReturnsCopies(t *testing.T) {
	c := NewInternalIndexConfig()
	names := []string{"a.pdf"}
	c.Swap("v1", names)
	names[0] = "mutated"

	got := c.Names()
	got[0] = "also mutated"
	snap := c.Snapshot()
	snap.Documents[0] = "again"

	assert.Equal(t, []string{"a.pdf"}, c.Names())
}

func TestInternalIndexConfigConcurrentAccess(t *testing.T) {
	c := NewInternalIndexConfig()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Swap(fmt.Sprintf("v%d", i), []string{fmt.Sprintf("doc%d.pdf", i)})
		}()
		go func() {
			defer wg.Done()
			snap := c.Snapshot()
			if snap.Configured {
				assert.Len(t, snap.Documents, 1)
				assert.NotEmpty(t, snap.Collection)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8), c.Snapshot().Version)
}

func TestInternalIndexConfigDefersDropWhileHeld(t *testing.T) {
	c := NewInternalIndexConfig()
	c.Swap("v1", []string{"convencao.pdf"})

	snap, release := c.Acquire()
	assert.Equal(t, "v1", snap.Collection)
	_, releaseSecond := c.Acquire()
	assert.Equal(t, 2, c.Readers("v1"))

	dropped := 0
	previous := c.Swap("v2", []string{"regimento.pdf"})
	assert.True(t, c.Retire(previous, func() { dropped++ }))

	release()
	release()
	assert.Equal(t, 0, dropped)
	assert.Equal(t, 1, c.Readers("v1"))

	releaseSecond()
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 0, c.Readers("v1"))
}

func TestInternalIndexConfigRetireUnheld(t *testing.T) {
	c := NewInternalIndexConfig()

	snap, release := c.Acquire()
	assert.False(t, snap.Configured)
	release()

	c.Swap("v1", nil)
	previous := c.Swap("v2", nil)
	assert.False(t, c.Retire(previous, func() { t.Fatal("drop must be left to the caller") }))
	assert.False(t, c.Retire("", func() {}))
}
