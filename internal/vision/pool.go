package vision

import (
	"image"
	"sync"
)

// grayPool recycles the *image.Gray scratch buffers the finder
// allocates per frame (grayscale, edge map, dilation passes), keyed by
// bounds so sources with different frame sizes coexist.
type grayPool struct {
	pools map[string]*sync.Pool
	mu    sync.RWMutex
}

var framePool = &grayPool{
	pools: make(map[string]*sync.Pool),
}

// getGray returns a zeroed *image.Gray for the given bounds, reusing a
// pooled buffer when one is available.
func getGray(rect image.Rectangle) *image.Gray {
	img := framePool.get(rect)
	for i := range img.Pix {
		img.Pix[i] = 0
	}
	return img
}

// putGray returns a buffer to the pool for reuse.
func putGray(img *image.Gray) {
	framePool.put(img)
}

func (p *grayPool) get(rect image.Rectangle) *image.Gray {
	key := rect.String()
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Double check
		pool, exists = p.pools[key]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return image.NewGray(rect)
				},
			}
			p.pools[key] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.Gray)
}

func (p *grayPool) put(img *image.Gray) {
	if img == nil {
		return
	}
	key := img.Rect.String()
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
