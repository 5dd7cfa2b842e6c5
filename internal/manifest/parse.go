package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Schema names the layout of diff entries in a manifest document.
type Schema string

const (
	// SchemaCanonical diffs are [sourceImage, sourceTile, w, h, destTile].
	SchemaCanonical Schema = "canonical"
	// SchemaLegacy diffs are [sourceTile, w, h, destTile] against the image
	// of the last key frame.
	SchemaLegacy Schema = "legacy"
)

type wireManifest struct {
	Version       json.RawMessage   `json:"version,omitempty"`
	FPS           *float64          `json:"fps"`
	CellSize      *int              `json:"cellSize"`
	DiffImageSize int               `json:"diffImageSize,omitempty"`
	Width         int               `json:"width,omitempty"`
	Height        int               `json:"height,omitempty"`
	Density       float64           `json:"density,omitempty"`
	Alpha         bool              `json:"alpha,omitempty"`
	Images        []wireImage       `json:"images"`
	Frames        []json.RawMessage `json:"frames"`
}

type wireImage struct {
	URL string `json:"url"`
}

type wireFrame struct {
	Type       *string  `json:"type"`
	ImageIndex *int     `json:"imageIndex,omitempty"`
	Diffs      *[][]int `json:"diffs,omitempty"`
}

// diffEntry converts one wire diff entry. lastKey is the image index of the
// closest preceding key frame, or 0.
type diffEntry func(frame, entry int, values []int, lastKey int) (TileCopy, error)

// Parse decodes and validates a canonical manifest. It performs no I/O.
func Parse(raw []byte) (*Manifest, error) {
	return decode(raw, canonicalEntry)
}

// ParseSchema selects the diff layout explicitly.
func ParseSchema(raw []byte, schema Schema) (*Manifest, error) {
	switch schema {
	case SchemaCanonical, "":
		return Parse(raw)
	case SchemaLegacy:
		return ParseLegacy(raw)
	default:
		return nil, fmt.Errorf("unknown manifest schema %q", schema)
	}
}

func canonicalEntry(frame, entry int, v []int, _ int) (TileCopy, error) {
	if len(v) != 5 {
		return TileCopy{}, newError(ErrMalformedManifest, frame, entry, "diffs",
			"expected 5 values [sourceImage, sourceTile, w, h, destTile], got %d", len(v))
	}
	return TileCopy{SourceImage: v[0], SourceTile: v[1], Width: v[2], Height: v[3], DestTile: v[4]}, nil
}

func decode(raw []byte, conv diffEntry) (*Manifest, error) {
	var w wireManifest
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, Malformed("document", "%v", err)
	}

	version, err := parseVersion(w.Version)
	if err != nil {
		return nil, err
	}

	if w.FPS == nil {
		return nil, Malformed("fps", "missing")
	}
	if *w.FPS <= 0 {
		return nil, Malformed("fps", "must be positive, got %v", *w.FPS)
	}
	if w.CellSize == nil {
		return nil, Malformed("cellSize", "missing")
	}
	if *w.CellSize <= 0 {
		return nil, Malformed("cellSize", "must be positive, got %d", *w.CellSize)
	}
	if w.Width < 0 || w.Height < 0 {
		return nil, Malformed("width/height", "must not be negative")
	}
	if len(w.Images) == 0 {
		return nil, Malformed("images", "at least one image is required")
	}
	for i, img := range w.Images {
		if img.URL == "" {
			return nil, Malformed("images", "image %d has no url", i)
		}
	}
	if w.Frames == nil {
		return nil, Malformed("frames", "missing")
	}

	m := &Manifest{
		Version:       version,
		FPS:           *w.FPS,
		CellSize:      *w.CellSize,
		Width:         w.Width,
		Height:        w.Height,
		Density:       w.Density,
		Alpha:         w.Alpha,
		DiffImageSize: w.DiffImageSize,
		Images:        make([]Image, len(w.Images)),
		Frames:        make([]Frame, 0, len(w.Frames)),
	}
	for i, img := range w.Images {
		m.Images[i] = Image{URL: img.URL}
	}

	lastKey := 0
	for i, rawFrame := range w.Frames {
		f, err := decodeFrame(i, rawFrame, len(m.Images), lastKey, conv)
		if err != nil {
			return nil, err
		}
		if k, ok := f.(KeyFrame); ok {
			lastKey = k.ImageIndex
		}
		m.Frames = append(m.Frames, f)
	}
	return m, nil
}

func parseVersion(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "v1" {
			return 1, nil
		}
		return 0, Malformed("version", "unsupported version %q", s)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == 1 {
			return 1, nil
		}
		return 0, Malformed("version", "unsupported version %d", n)
	}
	return 0, Malformed("version", "expected \"v1\" or 1, got %s", raw)
}

func decodeFrame(i int, raw json.RawMessage, images, lastKey int, conv diffEntry) (Frame, error) {
	// The discriminator decides which fields are read, so it goes first.
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, newError(ErrMalformedManifest, i, -1, "type", "%v", err)
	}
	if head.Type == nil {
		return nil, newError(ErrMalformedManifest, i, -1, "type", "missing")
	}
	switch kind := Kind(*head.Type); kind {
	case KindKey, KindDiff:
	default:
		return nil, newError(ErrUnknownFrameKind, i, -1, "type", "%q is neither key nor diff", kind)
	}

	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, newError(ErrMalformedManifest, i, -1, "frame", "%v", err)
	}

	switch Kind(*head.Type) {
	case KindKey:
		if w.ImageIndex == nil {
			return nil, newError(ErrMalformedManifest, i, -1, "imageIndex", "missing")
		}
		idx := *w.ImageIndex
		if idx < 0 || idx >= images {
			return nil, newError(ErrIndexOutOfRange, i, -1, "imageIndex",
				"%d not in [0, %d)", idx, images)
		}
		return KeyFrame{ImageIndex: idx}, nil

	case KindDiff:
		if w.Diffs == nil {
			return nil, newError(ErrMalformedManifest, i, -1, "diffs", "missing")
		}
		copies := make([]TileCopy, 0, len(*w.Diffs))
		for j, values := range *w.Diffs {
			c, err := conv(i, j, values, lastKey)
			if err != nil {
				return nil, err
			}
			if err := checkCopy(i, j, c, images); err != nil {
				return nil, err
			}
			copies = append(copies, c)
		}
		return DiffFrame{copies: copies}, nil

	default:
		return nil, newError(ErrUnknownFrameKind, i, -1, "type", "%q is neither key nor diff", *head.Type)
	}
}

func checkCopy(frame, entry int, c TileCopy, images int) error {
	if c.SourceImage < 0 || c.SourceImage >= images {
		return newError(ErrIndexOutOfRange, frame, entry, "sourceImageIndex",
			"%d not in [0, %d)", c.SourceImage, images)
	}
	if c.SourceTile < 0 {
		return newError(ErrIndexOutOfRange, frame, entry, "sourceTileIndex", "negative: %d", c.SourceTile)
	}
	if c.DestTile < 0 {
		return newError(ErrIndexOutOfRange, frame, entry, "destTileIndex", "negative: %d", c.DestTile)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return newError(ErrMalformedManifest, frame, entry, "tileCount",
			"tile counts must be positive, got %dx%d", c.Width, c.Height)
	}
	return nil
}
