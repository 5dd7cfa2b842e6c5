// Package manifest holds the lava animation manifest: base images, frame
// list, tile geometry and playback rate.
package manifest

import "slices"

// Manifest is a validated lava animation description. Frames order is the
// output order.
type Manifest struct {
	Version       int // 0 when the document carries no version
	FPS           float64
	CellSize      int
	Width         int // optional, 0 when not declared
	Height        int // optional, 0 when not declared
	Density       float64
	Alpha         bool
	DiffImageSize int
	Images        []Image
	Frames        []Frame
}

// Image is a reference to a still-image asset, relative to the manifest.
type Image struct {
	URL string
}

// Kind is the wire discriminator of a frame, the "type" field.
type Kind string

const (
	KindKey  Kind = "key"
	KindDiff Kind = "diff"
)

// Frame is either a KeyFrame or a DiffFrame. The set is closed.
type Frame interface {
	Kind() Kind
	isFrame()
}

// KeyFrame outputs a base image unmodified.
type KeyFrame struct {
	ImageIndex int
}

func (KeyFrame) Kind() Kind { return KindKey }
func (KeyFrame) isFrame()   {}

// DiffFrame outputs a transparent canvas with tile copies applied in
// authored order. Copies that overlap are resolved by that order: a later
// copy overwrites an earlier one.
type DiffFrame struct {
	copies []TileCopy
}

// NewDiffFrame keeps copies in the given order.
func NewDiffFrame(copies ...TileCopy) DiffFrame {
	return DiffFrame{copies: slices.Clone(copies)}
}

func (DiffFrame) Kind() Kind { return KindDiff }
func (DiffFrame) isFrame()   {}

// Copies returns the tile copies in compositing order.
func (d DiffFrame) Copies() []TileCopy {
	return slices.Clone(d.copies)
}

func (d DiffFrame) Len() int { return len(d.copies) }

// TileCopy moves a block of Width x Height tiles from a base image to the
// canvas. Tile indices are row-major in the grid of their own image.
type TileCopy struct {
	SourceImage int
	SourceTile  int
	Width       int
	Height      int
	DestTile    int
}

// FrameCounts returns how many key and diff frames the manifest has.
func (m *Manifest) FrameCounts() (keys, diffs int) {
	for _, f := range m.Frames {
		switch f.(type) {
		case KeyFrame:
			keys++
		case DiffFrame:
			diffs++
		}
	}
	return keys, diffs
}
