package pipeline

import (
	"fmt"
	"sync"

	"github.com/neilflood/moamosaic/internal/raster"
)

// BufPool reuses block-sized pixel buffers across reads, adapted from the
// teacher's internal/tile/rgbapool.go (a sync.Map of *image.RGBA pools
// keyed by (width,height)). Generalized here to key on (PixelType,
// width, height) since this engine's buffers vary in sample type as well
// as shape.
type BufPool struct {
	mu    sync.Mutex
	pools map[string]*sync.Pool
}

// NewBufPool builds an empty BufPool.
func NewBufPool() *BufPool {
	return &BufPool{pools: make(map[string]*sync.Pool)}
}

func poolKey(t raster.PixelType, w, h int) string {
	return fmt.Sprintf("%d:%d:%d", t, w, h)
}

// Get returns a w×h Array of type t, reused from the pool if one of that
// exact shape is available.
func (p *BufPool) Get(t raster.PixelType, w, h int) raster.Array {
	key := poolKey(t, w, h)

	p.mu.Lock()
	pool, ok := p.pools[key]
	if !ok {
		pool = &sync.Pool{New: func() any { return raster.NewArray(t, w, h) }}
		p.pools[key] = pool
	}
	p.mu.Unlock()

	return pool.Get().(raster.Array)
}

// Put returns a w×h Array of type t to the pool for reuse. Callers must not
// touch a, and must not have retained a reference elsewhere (e.g. after
// handing it to the Block Queue), since the pool may reissue it at any
// time after Put.
func (p *BufPool) Put(t raster.PixelType, w, h int, a raster.Array) {
	p.mu.Lock()
	pool := p.pools[poolKey(t, w, h)]
	p.mu.Unlock()
	if pool != nil {
		pool.Put(a)
	}
}
