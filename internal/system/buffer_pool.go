package system

import (
	"image"
	"sync"
)

// ImagePool предоставляет механизмы повторного использования image.NRGBA
// для снижения нагрузки на Garbage Collector (GC).
type ImagePool struct {
	pools map[image.Rectangle]*sync.Pool
	mu    sync.RWMutex
}

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Rectangle]*sync.Pool)}
}

var globalPool = NewImagePool()

// GetImage возвращает экземпляр *image.NRGBA из пула или создает новый,
// если в пуле нет подходящего по размеру объекта. Содержимое не очищено.
func GetImage(rect image.Rectangle) *image.NRGBA {
	return globalPool.Get(rect)
}

// GetClearImage возвращает полностью прозрачный холст.
func GetClearImage(rect image.Rectangle) *image.NRGBA {
	return globalPool.GetClear(rect)
}

// PutImage возвращает экземпляр *image.NRGBA в пул для повторного использования.
func PutImage(img *image.NRGBA) {
	globalPool.Put(img)
}

func (p *ImagePool) pool(rect image.Rectangle) *sync.Pool {
	p.mu.RLock()
	pool, exists := p.pools[rect]
	p.mu.RUnlock()
	if exists {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Double check
	if pool, exists = p.pools[rect]; !exists {
		pool = &sync.Pool{
			New: func() interface{} {
				return image.NewNRGBA(rect)
			},
		}
		p.pools[rect] = pool
	}
	return pool
}

func (p *ImagePool) Get(rect image.Rectangle) *image.NRGBA {
	return p.pool(rect).Get().(*image.NRGBA)
}

// GetClear is Get with every pixel reset to transparent.
func (p *ImagePool) GetClear(rect image.Rectangle) *image.NRGBA {
	img := p.Get(rect)
	clear(img.Pix)
	return img
}

func (p *ImagePool) Put(img *image.NRGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, exists := p.pools[img.Rect]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
