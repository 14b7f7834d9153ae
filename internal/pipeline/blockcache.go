package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/neilflood/moamosaic/internal/planner"
	"github.com/neilflood/moamosaic/internal/raster"
)

// BlockCache accumulates every input file's contribution to one output
// block until all of them have arrived, at which point Merge combines
// them in ascending file-index order — never arrival order — so the final
// pixels are identical no matter how many reader goroutines ran or in
// what order they happened to finish. This is the piece that makes the
// merge's "last non-null wins" rule deterministic regardless of thread
// count.
type BlockCache struct {
	mu      sync.Mutex
	entries map[int]*blockEntry
}

type blockEntry struct {
	want         int
	contribs     map[int]raster.Array // fileIndex -> contribution
}

// NewBlockCache builds an empty BlockCache.
func NewBlockCache() *BlockCache {
	return &BlockCache{entries: make(map[int]*blockEntry)}
}

// SetWant records how many file contributions block blockIndex needs
// before it is complete (the planner's len(inputsPerBlock[blockIndex])).
func (c *BlockCache) SetWant(blockIndex, want int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entryFor(blockIndex).want = want
}

func (c *BlockCache) entryFor(blockIndex int) *blockEntry {
	e, ok := c.entries[blockIndex]
	if !ok {
		e = &blockEntry{contribs: make(map[int]raster.Array)}
		c.entries[blockIndex] = e
	}
	return e
}

// Add records one file's contribution to a block and reports whether the
// block is now complete (every expected contribution has arrived).
func (c *BlockCache) Add(blockIndex, fileIndex int, data raster.Array) (complete bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryFor(blockIndex)
	e.contribs[fileIndex] = data
	return len(e.contribs) >= e.want
}

// Size reports the total number of (filename, outblock) contributions
// currently held across every block still being assembled — the
// blockCacheSize gauge spec.md §3/§6 calls for.
func (c *BlockCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		n += len(e.contribs)
	}
	return n
}

// Merge combines a complete block's contributions in ascending file-index
// order — last non-null wins — and removes the block from the cache. It is
// an error to call Merge before Add has reported the block complete.
func (c *BlockCache) Merge(blockIndex int, nullValue float64) (raster.Array, error) {
	c.mu.Lock()
	e, ok := c.entries[blockIndex]
	if ok {
		delete(c.entries, blockIndex)
	}
	c.mu.Unlock()

	if !ok || len(e.contribs) < e.want {
		return nil, fmt.Errorf("pipeline: block %d merged before completion", blockIndex)
	}

	indices := make([]int, 0, len(e.contribs))
	for fi := range e.contribs {
		indices = append(indices, fi)
	}
	sort.Ints(indices)

	var out raster.Array
	for _, fi := range indices {
		contrib := e.contribs[fi]
		if out == nil {
			out = contrib
			continue
		}
		if err := out.MergeNonNull(contrib, nullValue); err != nil {
			return nil, &planner.ErrShapeMismatch{
				BlockIndex: blockIndex,
				GotW:       contrib.Width(), GotH: contrib.Height(),
				WantW: out.Width(), WantH: out.Height(),
			}
		}
	}
	return out, nil
}
