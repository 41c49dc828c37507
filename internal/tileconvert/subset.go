package tileconvert

import "github.com/pspoerri/geotiff2h3/internal/value"

// Subset is one tile's payload handed to a worker: the tile descriptor, a
// copy of the geotransform coefficients, the H3 resolution, and for each
// band a dense row-major vector of classified values, one per pixel.
// Owned by exactly one worker at a time.
type Subset struct {
	Tile         Tile
	GeoCoeffs    [6]float64
	H3Resolution int
	BandData     [][]value.Classified // len(BandData) == band count, each len == Tile.Width*Tile.Height
}
