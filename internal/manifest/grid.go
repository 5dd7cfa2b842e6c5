package manifest

import "image"

// TilesPerRow returns ceil(widthPx / cellSize), the width of an image's tile
// grid. It is also used for rows with the height in place of the width.
func TilesPerRow(widthPx, cellSize int) int {
	return (widthPx + cellSize - 1) / cellSize
}

// TileRowCol splits a row-major tile index.
func TileRowCol(index, tilesPerRow int) (row, col int) {
	return index / tilesPerRow, index % tilesPerRow
}

// TileIndex is the inverse of TileRowCol.
func TileIndex(row, col, tilesPerRow int) int {
	return row*tilesPerRow + col
}

// TileOrigin returns the pixel position of the top-left corner of a tile.
func TileOrigin(index, tilesPerRow, cellSize int) image.Point {
	row, col := TileRowCol(index, tilesPerRow)
	return image.Pt(col*cellSize, row*cellSize)
}

// TileCount is the number of tiles in the grid of an image of the given size.
func TileCount(size image.Point, cellSize int) int {
	return TilesPerRow(size.X, cellSize) * TilesPerRow(size.Y, cellSize)
}

// SourceRect is the pixel rectangle the copy reads from a source image that
// is srcWidthPx wide.
func (c TileCopy) SourceRect(srcWidthPx, cellSize int) image.Rectangle {
	origin := TileOrigin(c.SourceTile, TilesPerRow(srcWidthPx, cellSize), cellSize)
	return image.Rectangle{Min: origin, Max: origin.Add(c.Size(cellSize))}
}

// DestRect is the pixel rectangle the copy writes on a canvas that is
// canvasWidthPx wide.
func (c TileCopy) DestRect(canvasWidthPx, cellSize int) image.Rectangle {
	origin := TileOrigin(c.DestTile, TilesPerRow(canvasWidthPx, cellSize), cellSize)
	return image.Rectangle{Min: origin, Max: origin.Add(c.Size(cellSize))}
}

// Size is the pixel size of the copied block.
func (c TileCopy) Size(cellSize int) image.Point {
	return image.Pt(c.Width*cellSize, c.Height*cellSize)
}
