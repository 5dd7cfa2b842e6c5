// Package reconstruct rebuilds the output frames of a lava manifest from its
// decoded base images.
//
// Every frame is a pure function of its manifest entry and the base images:
// diff frames copy from base images only, never from other output frames.
// Frames can therefore be built in any order and in parallel; All and Stream
// do so and hand results back in manifest order.
//
// Outputs never alias base images. Key frames are copied into a fresh
// canvas, so a consumer may keep, modify or recycle any output without
// affecting other frames or the base images.
//
// Base images and outputs are *image.NRGBA: pixels move between them as
// straight-alpha bytes, so every copied pixel is bit-identical to its
// source, semi-transparent ones included.
package reconstruct

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/lava2video/internal/manifest"
)

// Allocator returns a fully transparent canvas with exactly the given
// bounds. The reconstructor owns the canvas until it hands it out.
type Allocator func(r image.Rectangle) *image.NRGBA

type Reconstructor struct {
	manifest *manifest.Manifest
	images   []*image.NRGBA
	canvas   image.Rectangle
	alloc    Allocator
	workers  int
}

type Option func(*Reconstructor)

// WithWorkers bounds how many frames are built at the same time.
func WithWorkers(n int) Option {
	return func(r *Reconstructor) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithAllocator replaces image.NewNRGBA as the canvas source, e.g. with a pool.
func WithAllocator(a Allocator) Option {
	return func(r *Reconstructor) {
		if a != nil {
			r.alloc = a
		}
	}
}

// New binds a validated manifest to its decoded base images, given in
// manifest order. Index validation is the loader's job (manifest.Parse and
// Manifest.CheckImages); the reconstructor only guards pixel rectangles.
func New(m *manifest.Manifest, images []*image.NRGBA, opts ...Option) (*Reconstructor, error) {
	if len(images) != len(m.Images) {
		return nil, manifest.Malformed("images", "manifest lists %d images, got %d", len(m.Images), len(images))
	}
	for i, img := range images {
		if img == nil {
			return nil, manifest.Malformed("images", "image %d is nil", i)
		}
	}

	r := &Reconstructor{
		manifest: m,
		images:   images,
		canvas:   image.Rectangle{Max: images[0].Bounds().Size()},
		alloc:    image.NewNRGBA,
		workers:  runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Len is the number of output frames.
func (r *Reconstructor) Len() int { return len(r.manifest.Frames) }

// Bounds of every output frame: the size of base image 0, anchored at 0,0.
func (r *Reconstructor) Bounds() image.Rectangle { return r.canvas }

// Frame builds output frame i.
func (r *Reconstructor) Frame(i int) (*image.NRGBA, error) {
	switch f := r.manifest.Frames[i].(type) {
	case manifest.KeyFrame:
		return r.key(f), nil
	case manifest.DiffFrame:
		return r.diff(i, f)
	default:
		return nil, &manifest.Error{
			Frame: i,
			Entry: -1,
			Field: "type",
			Err:   manifest.ErrUnknownFrameKind,
			Msg:   fmt.Sprintf("%T", f),
		}
	}
}

// key copies the base image onto a fresh canvas. A base image of a
// different size than image 0 is anchored at the top-left corner, the way
// the players draw key frames.
func (r *Reconstructor) key(f manifest.KeyFrame) *image.NRGBA {
	src := r.images[f.ImageIndex]
	dst := r.alloc(r.canvas)
	sb := src.Bounds()
	size := image.Pt(min(sb.Dx(), r.canvas.Dx()), min(sb.Dy(), r.canvas.Dy()))
	copyPixels(dst, image.Point{}, src, image.Rectangle{Min: sb.Min, Max: sb.Min.Add(size)})
	return dst
}

// diff applies the tile copies in listed order on a transparent canvas.
// Pixels are replaced, alpha included; nothing is blended.
//
// A block must lie entirely inside its source image and inside the canvas,
// otherwise the frame fails with ErrTileOutOfBounds. This includes the
// partial tiles at the right and bottom edge of an image whose size is not
// a multiple of the cell size: the players clip such blocks silently, here
// the producer is expected to pad its images to whole tiles.
func (r *Reconstructor) diff(i int, f manifest.DiffFrame) (*image.NRGBA, error) {
	cell := r.manifest.CellSize
	dst := r.alloc(r.canvas)

	for j, c := range f.Copies() {
		src := r.images[c.SourceImage]
		sb := src.Bounds()

		// Checked in tiles first: the pixel rectangles below are only
		// computed once they cannot overflow.
		if !blockInGrid(c.SourceTile, c.Width, c.Height, sb.Size(), cell) {
			return nil, manifest.TileOutOfBounds(i, j, "sourceTileIndex",
				"block of %dx%d tiles at tile %d exceeds the grid of image %d (%v)",
				c.Width, c.Height, c.SourceTile, c.SourceImage, sb.Size())
		}
		if !blockInGrid(c.DestTile, c.Width, c.Height, r.canvas.Size(), cell) {
			return nil, manifest.TileOutOfBounds(i, j, "destTileIndex",
				"block of %dx%d tiles at tile %d exceeds the canvas grid (%v)",
				c.Width, c.Height, c.DestTile, r.canvas.Size())
		}

		sr := c.SourceRect(sb.Dx(), cell).Add(sb.Min)
		if !sr.In(sb) {
			return nil, manifest.TileOutOfBounds(i, j, "sourceTileIndex",
				"block %v exceeds image %d bounds %v", sr.Sub(sb.Min), c.SourceImage, sb.Sub(sb.Min))
		}
		dr := c.DestRect(r.canvas.Dx(), cell)
		if !dr.In(r.canvas) {
			return nil, manifest.TileOutOfBounds(i, j, "destTileIndex",
				"block %v exceeds canvas %v", dr, r.canvas)
		}

		copyPixels(dst, dr.Min, src, sr)
	}
	return dst, nil
}

// blockInGrid reports whether a block of w x h tiles starting at tile index
// fits the tile grid of an image of the given size. Only divisions and
// comparisons against the grid size are used, so huge values cannot wrap.
func blockInGrid(index, w, h int, size image.Point, cell int) bool {
	cols, rows := manifest.TilesPerRow(size.X, cell), manifest.TilesPerRow(size.Y, cell)
	if cols <= 0 || rows <= 0 || index < 0 || w <= 0 || h <= 0 {
		return false
	}
	row, col := manifest.TileRowCol(index, cols)
	return row < rows && w <= cols-col && h <= rows-row
}

// copyPixels copies sr of src to dst at dp row by row. Both rectangles must
// lie inside their images.
func copyPixels(dst *image.NRGBA, dp image.Point, src *image.NRGBA, sr image.Rectangle) {
	n := sr.Dx() * 4
	for y := 0; y < sr.Dy(); y++ {
		si := src.PixOffset(sr.Min.X, sr.Min.Y+y)
		di := dst.PixOffset(dp.X, dp.Y+y)
		copy(dst.Pix[di:di+n], src.Pix[si:si+n])
	}
}

// All builds every frame in parallel and returns them in manifest order.
// On error nothing is returned; the first failure aborts the rest.
func (r *Reconstructor) All(ctx context.Context) ([]*image.NRGBA, error) {
	out := make([]*image.NRGBA, r.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range out {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := r.Frame(i)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stream builds frames in parallel and calls emit once per frame, strictly
// in manifest order, from a single goroutine. At most twice the worker count
// of frames are held between reconstruction and emission. emit owns the
// image it receives. An error from emit or from any frame stops the stream.
func (r *Reconstructor) Stream(ctx context.Context, emit func(i int, img *image.NRGBA) error) error {
	n := r.Len()
	results := make([]chan *image.NRGBA, n)
	for i := range results {
		results[i] = make(chan *image.NRGBA, 1)
	}
	window := make(chan struct{}, 2*r.workers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		work, wctx := errgroup.WithContext(gctx)
		work.SetLimit(r.workers)
		for i := 0; i < n; i++ {
			select {
			case window <- struct{}{}:
			case <-wctx.Done():
				return work.Wait()
			}
			if wctx.Err() != nil {
				break
			}
			i := i
			work.Go(func() error {
				if err := wctx.Err(); err != nil {
					return err
				}
				img, err := r.Frame(i)
				if err != nil {
					return err
				}
				results[i] <- img
				return nil
			})
		}
		return work.Wait()
	})

	g.Go(func() error {
		for i := 0; i < n; i++ {
			var img *image.NRGBA
			select {
			case img = <-results[i]:
			case <-gctx.Done():
				return gctx.Err()
			}
			<-window
			if err := emit(i, img); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
		return nil
	})

	return g.Wait()
}
