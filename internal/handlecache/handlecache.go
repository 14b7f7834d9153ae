// Package handlecache implements one reader's cache of open raster.Handle
// values, one per input file, each closed the moment that reader has no
// more block reads outstanding against the file. This engine has no
// notion of "recently used" since every reader's workload is known up
// front, so eviction is reference counting, not an LRU policy.
package handlecache

import (
	"context"
	"fmt"
	"sync"

	"github.com/neilflood/moamosaic/internal/raster"
)

// Cache hands out raster.Handle values for a fixed set of files, opening
// each at most once, and closing it as soon as its remaining count of
// block reads (SetRemaining, Release) reaches zero.
type Cache struct {
	driver raster.Driver

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu        sync.Mutex
	handle    raster.Handle
	openErr   error
	opened    bool
	remaining int
}

// New builds an empty Cache over driver. It starts with no remaining-work
// counts; callers record the number of block reads outstanding per file
// path via SetRemaining before the first Acquire, and each Release counts
// one of them down. Acquire itself does not change the count.
func New(driver raster.Driver) *Cache {
	return &Cache{driver: driver, entries: make(map[string]*entry)}
}

// SetRemaining records how many block reads are still outstanding against
// path, before any reader calls Acquire for it. Planner.BuildReadingList's
// per-file spec count is the natural source for this.
func (c *Cache) SetRemaining(path string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryFor(path)
	e.mu.Lock()
	e.remaining += n
	e.mu.Unlock()
}

func (c *Cache) entryFor(path string) *entry {
	e, ok := c.entries[path]
	if !ok {
		e = &entry{}
		c.entries[path] = e
	}
	return e
}

// Acquire returns the open handle for path, opening it on first use.
func (c *Cache) Acquire(ctx context.Context, path string) (raster.Handle, error) {
	c.mu.Lock()
	e := c.entryFor(path)
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		e.handle, e.openErr = c.driver.OpenRead(ctx, path)
		e.opened = true
	}
	if e.openErr != nil {
		return nil, fmt.Errorf("handlecache: opening %s: %w", path, e.openErr)
	}
	return e.handle, nil
}

// Release records that one block read against path has completed, closing
// the handle once the remaining count reaches zero.
func (c *Cache) Release(path string) error {
	c.mu.Lock()
	e, ok := c.entries[path]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.remaining--
	if e.remaining > 0 || !e.opened || e.handle == nil {
		return nil
	}

	err := e.handle.Close()
	e.handle = nil
	return err
}

// CloseAll force-closes every still-open handle, for use on the fail-fast
// path when a reader faults and the orchestrator tears the pipeline down
// before every block's remaining count would naturally reach zero.
func (c *Cache) CloseAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, e := range c.entries {
		e.mu.Lock()
		if e.handle != nil {
			if err := e.handle.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			e.handle = nil
		}
		e.mu.Unlock()
	}
	return firstErr
}
