// Package asset loads a lava directory: the manifest and its decoded base
// images, validated against each other.
package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/lava2video/internal/manifest"
	"github.com/ivlev/lava2video/internal/system"
)

var ErrAssetDecode = errors.New("asset decode failed")

// DecodeError names the base image that could not be decoded. It matches
// both ErrAssetDecode and the underlying cause.
type DecodeError struct {
	Index int
	URL   string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: image %d (%s): %v", ErrAssetDecode, e.Index, e.URL, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrAssetDecode, e.Err} }

// Decoder turns a manifest image url into pixels.
type Decoder interface {
	Decode(ctx context.Context, ref string) (image.Image, error)
}

type Options struct {
	Schema  manifest.Schema
	Decoder Decoder // nil reads files next to the manifest
	Workers int
}

// Asset is a loaded lava animation. Images are in manifest order, with
// straight alpha and zero origin.
type Asset struct {
	Dir      string
	Manifest *manifest.Manifest
	Images   []*image.NRGBA
}

// Size of the animation canvas.
func (a *Asset) Size() image.Point { return a.Images[0].Bounds().Size() }

func (a *Asset) Sizes() []image.Point {
	sizes := make([]image.Point, len(a.Images))
	for i, img := range a.Images {
		sizes[i] = img.Bounds().Size()
	}
	return sizes
}

// Load reads a lava directory, or a manifest file directly.
func Load(ctx context.Context, path string, opts Options) (*Asset, error) {
	dir, manifestPath, err := locate(path)
	if err != nil {
		return nil, err
	}

	raw, err := readManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", manifestPath, err)
	}
	m, err := manifest.ParseSchema(raw, opts.Schema)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", manifestPath, err)
	}

	dec := opts.Decoder
	if dec == nil {
		dec = FileDecoder{Dir: dir}
	}
	images, err := decodeAll(ctx, m, dec, opts.Workers)
	if err != nil {
		return nil, err
	}

	a := &Asset{Dir: dir, Manifest: m, Images: images}
	if err := m.CheckImages(a.Sizes()); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", manifestPath, err)
	}
	return a, nil
}

func locate(path string) (dir, manifestPath string, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", "", err
	}
	if !fi.IsDir() {
		return filepath.Dir(path), path, nil
	}
	manifestPath, err = system.FindManifest(path)
	return path, manifestPath, err
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// readManifest returns the manifest JSON, decompressed when the content is
// gzip or zstd regardless of the file name.
func readManifest(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case bytes.HasPrefix(raw, zstdMagic):
		zr, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return zr.DecodeAll(raw, nil)
	default:
		return raw, nil
	}
}

func decodeAll(ctx context.Context, m *manifest.Manifest, dec Decoder, workers int) ([]*image.NRGBA, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	images := make([]*image.NRGBA, len(m.Images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ref := range m.Images {
		i, ref := i, ref
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := dec.Decode(gctx, ref.URL)
			if err == nil && img == nil {
				err = errors.New("decoder returned no image")
			}
			if err != nil {
				return &DecodeError{Index: i, URL: ref.URL, Err: err}
			}
			images[i] = toNRGBA(img)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// toNRGBA converts to a zero-origin *image.NRGBA with straight alpha.
// Translucent pixels never pass through a premultiplied 8-bit form.
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
		return dst
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetNRGBA(x-b.Min.X, y-b.Min.Y, color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA))
		}
	}
	return dst
}
