// Package fixture builds synthetic lava animations out of QR codes. The
// codes make every tile visibly distinct, so a misplaced copy shows up in
// the rendered video as well as in pixel comparisons.
package fixture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"

	"github.com/ivlev/lava2video/internal/asset"
	"github.com/ivlev/lava2video/internal/manifest"
)

type Options struct {
	// Images is the number of base images; the first one is the canvas.
	Images   int
	Frames   int
	CellSize int
	// Size is the requested QR size in px, rounded up to whole tiles.
	Size int
	// KeyEvery makes every n-th frame a key frame; 0 means only frame 0.
	KeyEvery int
	FPS      float64
	// Alpha renders the QR background transparent.
	Alpha bool
	Label string
}

func DefaultOptions() Options {
	return Options{
		Images:   3,
		Frames:   24,
		CellSize: 8,
		Size:     128,
		KeyEvery: 8,
		FPS:      12,
		Label:    "lava2video",
	}
}

// Build renders the base images and a manifest that animates them.
func Build(opts Options) (*asset.Asset, error) {
	if opts.Images < 1 || opts.Frames < 1 || opts.CellSize < 1 || opts.FPS <= 0 {
		return nil, fmt.Errorf("fixture: invalid options %+v", opts)
	}

	images := make([]*image.NRGBA, opts.Images)
	m := &manifest.Manifest{
		Version:  1,
		FPS:      opts.FPS,
		CellSize: opts.CellSize,
		Alpha:    opts.Alpha,
		Images:   make([]manifest.Image, opts.Images),
	}

	side := 0
	for i := range images {
		img, err := qrImage(fmt.Sprintf("%s #%d", opts.Label, i), opts.Size, side, opts.CellSize, opts.Alpha)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			side = img.Bounds().Dx()
		}
		images[i] = img
		m.Images[i] = manifest.Image{URL: fmt.Sprintf("image_%d.png", i)}
	}
	m.Width, m.Height = side, side

	perRow := manifest.TilesPerRow(side, opts.CellSize)
	lastKey := 0
	for k := 0; k < opts.Frames; k++ {
		if k == 0 || (opts.KeyEvery > 0 && k%opts.KeyEvery == 0) {
			lastKey = (k / max(opts.KeyEvery, 1)) % opts.Images
			m.Frames = append(m.Frames, manifest.KeyFrame{ImageIndex: lastKey})
			continue
		}
		m.Frames = append(m.Frames, slide(k, lastKey, (lastKey+1)%opts.Images, perRow))
	}

	sizes := make([]image.Point, len(images))
	for i, img := range images {
		sizes[i] = img.Bounds().Size()
	}
	if err := m.CheckImages(sizes); err != nil {
		return nil, err
	}
	return &asset.Asset{Manifest: m, Images: images}, nil
}

// slide shows the next image sliding in from the left over the current one:
// the current image shifted right by k tiles (modulo the row), then the next image's right
// edge filling the gap, then one tile of the canvas image pinned to the
// top-left corner on top of both.
func slide(k, cur, next, perRow int) manifest.DiffFrame {
	shift := k % perRow
	copies := []manifest.TileCopy{{
		SourceImage: cur,
		SourceTile:  0,
		Width:       perRow - shift,
		Height:      perRow,
		DestTile:    shift,
	}}
	if shift > 0 {
		copies = append(copies, manifest.TileCopy{
			SourceImage: next,
			SourceTile:  perRow - shift,
			Width:       shift,
			Height:      perRow,
			DestTile:    0,
		})
	}
	copies = append(copies, manifest.TileCopy{SourceImage: 0, SourceTile: 0, Width: 1, Height: 1, DestTile: 0})
	return manifest.NewDiffFrame(copies...)
}

// qrImage renders a QR code onto a square canvas whose side is a whole
// number of cells. side > 0 forces the canvas size.
func qrImage(content string, size, side, cell int, alpha bool) (*image.NRGBA, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	if alpha {
		q.BackgroundColor = color.Transparent
	}
	code := q.Image(size)

	if side == 0 {
		d := max(code.Bounds().Dx(), code.Bounds().Dy())
		side = (d + cell - 1) / cell * cell
	}
	dst := image.NewNRGBA(image.Rect(0, 0, side, side))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), code, code.Bounds(), draw.Src, nil)
	return dst, nil
}

type Compression string

const (
	CompressNone Compression = ""
	CompressGzip Compression = "gz"
	CompressZstd Compression = "zst"
)

// Write stores the images as PNG and the manifest next to them. It returns
// the manifest path.
func Write(a *asset.Asset, dir string, compression Compression) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	for i, img := range a.Images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", err
		}
		path := filepath.Join(dir, filepath.FromSlash(a.Manifest.Images[i].URL))
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return "", err
		}
	}

	data, err := a.Manifest.Encode()
	if err != nil {
		return "", err
	}
	name := "manifest.json"
	if compression != CompressNone {
		name += "." + string(compression)
		if data, err = compress(data, compression); err != nil {
			return "", err
		}
	}
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, data, 0644)
}

func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressGzip:
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unknown compression %q (gz, zst)", c)
	}
}
