package manifest

import (
	"image"
)

// CheckImages validates the manifest against the decoded base image sizes,
// in manifest order. It is the second half of load-time validation: after
// it succeeds every image and tile index in the manifest addresses a real
// tile.
//
// Blocks are checked against the tile grids, in tiles: a block reaching
// past the last row or column is ErrTileOutOfBounds. Partial edge tiles of
// images that are not a multiple of the cell size are left to the
// reconstructor, which refuses blocks that leave the pixel bounds.
func (m *Manifest) CheckImages(sizes []image.Point) error {
	if len(sizes) != len(m.Images) {
		return Malformed("images", "manifest lists %d images, %d decoded", len(m.Images), len(sizes))
	}
	for i, s := range sizes {
		if s.X <= 0 || s.Y <= 0 {
			return Malformed("images", "image %d (%s) is empty: %dx%d", i, m.Images[i].URL, s.X, s.Y)
		}
	}

	canvas := sizes[0]
	if m.Width != 0 && m.Width != canvas.X {
		return Malformed("width", "declared %d, image 0 is %d wide", m.Width, canvas.X)
	}
	if m.Height != 0 && m.Height != canvas.Y {
		return Malformed("height", "declared %d, image 0 is %d high", m.Height, canvas.Y)
	}

	canvasTiles := TileCount(canvas, m.CellSize)
	for i, f := range m.Frames {
		d, ok := f.(DiffFrame)
		if !ok {
			continue
		}
		for j, c := range d.copies {
			src := sizes[c.SourceImage]
			if n := TileCount(src, m.CellSize); c.SourceTile >= n {
				return newError(ErrIndexOutOfRange, i, j, "sourceTileIndex",
					"%d not in [0, %d) for image %d", c.SourceTile, n, c.SourceImage)
			}
			if c.DestTile >= canvasTiles {
				return newError(ErrIndexOutOfRange, i, j, "destTileIndex",
					"%d not in [0, %d)", c.DestTile, canvasTiles)
			}
			if !c.fits(c.SourceTile, src, m.CellSize) {
				return TileOutOfBounds(i, j, "sourceTileIndex",
					"block of %dx%d tiles at tile %d exceeds the grid of image %d", c.Width, c.Height, c.SourceTile, c.SourceImage)
			}
			if !c.fits(c.DestTile, canvas, m.CellSize) {
				return TileOutOfBounds(i, j, "destTileIndex",
					"block of %dx%d tiles at tile %d exceeds the canvas grid", c.Width, c.Height, c.DestTile)
			}
		}
	}
	return nil
}

// fits reports whether the block, placed at tile index, stays inside the
// tile grid of an image of the given size. The index must be in the grid.
func (c TileCopy) fits(index int, size image.Point, cellSize int) bool {
	cols, rows := TilesPerRow(size.X, cellSize), TilesPerRow(size.Y, cellSize)
	row, col := TileRowCol(index, cols)
	return c.Width <= cols-col && c.Height <= rows-row
}
