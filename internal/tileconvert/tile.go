// Package tileconvert implements the per-tile conversion core: turning one
// tile's classified band data into a map of attribute combination to H3
// cell stack, using whichever of cluster mode or sweep mode the density
// heuristic in §4.3 selects.
package tileconvert

import (
	"github.com/pspoerri/geotiff2h3/internal/geo"
)

// Tile is a rectangular pixel-space window onto the raster. Tiles
// tesselate the raster without overlap; edge tiles may be smaller than
// the nominal tile size.
type Tile struct {
	OriginCol, OriginRow int
	Width, Height        int
}

// ArrayPosition converts a tile-relative pixel to its row-major position
// within a dense per-band array of length Width*Height.
func (t Tile) ArrayPosition(col, row int) int {
	return row*t.Width + col
}

// PixelFromArrayPosition is the inverse of ArrayPosition.
func (t Tile) PixelFromArrayPosition(pos int) (col, row int) {
	return pos % t.Width, pos / t.Width
}

// CenterPixel returns the tile-relative pixel nearest the tile's center.
func (t Tile) CenterPixel() (col, row int) {
	return t.Width / 2, t.Height / 2
}

// Bounds computes the tile's geographic bounding rectangle from the two
// opposite pixel corners, via the given geotransform.
func (t Tile) Bounds(gt geo.Geotransform) geo.Rect {
	a := gt.PixelToCoordinateF(float64(t.OriginCol), float64(t.OriginRow))
	b := gt.PixelToCoordinateF(float64(t.OriginCol+t.Width), float64(t.OriginRow+t.Height))
	return geo.RectFromCorners(a, b)
}

// TileTesselation splits a raster of the given pixel size into a grid of
// non-overlapping tiles of at most tileWidth x tileHeight; edge tiles are
// clipped to the raster extent.
func TileTesselation(rasterWidth, rasterHeight, tileWidth, tileHeight int) []Tile {
	var tiles []Tile
	for row := 0; row < rasterHeight; row += tileHeight {
		h := tileHeight
		if row+h > rasterHeight {
			h = rasterHeight - row
		}
		for col := 0; col < rasterWidth; col += tileWidth {
			w := tileWidth
			if col+w > rasterWidth {
				w = rasterWidth - col
			}
			tiles = append(tiles, Tile{OriginCol: col, OriginRow: row, Width: w, Height: h})
		}
	}
	return tiles
}
