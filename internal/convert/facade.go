// Package convert implements the RasterConverter facade (§4.6): validating
// a dataset and band configuration, generating a tiling, and driving the
// conversion pipeline to produce a GroupedResult.
package convert

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/pspoerri/geotiff2h3/internal/geo"
	"github.com/pspoerri/geotiff2h3/internal/h3grid"
	"github.com/pspoerri/geotiff2h3/internal/metrics"
	"github.com/pspoerri/geotiff2h3/internal/pipeline"
	"github.com/pspoerri/geotiff2h3/internal/raster"
	"github.com/pspoerri/geotiff2h3/internal/tileconvert"
	"github.com/pspoerri/geotiff2h3/internal/value"
)

// Result is the outcome of a conversion: the grouped cell stacks, plus the
// value type each input band was read as (for downstream serialization,
// which is out of scope here).
type Result struct {
	Grouped        *tileconvert.GroupedResult
	BandValueTypes []value.Kind
}

// entryCacheSize bounds the cell-center memoization cache each
// RasterConverter's TileConverter uses during cluster-mode entry search.
const entryCacheSize = 4096

// RasterConverter validates a dataset and band configuration once at
// construction, then drives one or more conversion runs over it.
type RasterConverter struct {
	dataset    raster.Dataset
	bands      []BandSpec
	resolution int
	grid       h3grid.Grid
	metrics    *metrics.Metrics
	gt         geo.Geotransform
	converter  *tileconvert.Converter
}

// New validates ds, bands, and resolution per §4.6 and returns a ready
// RasterConverter, or one of the sentinel errors in errors.go.
func New(ds raster.Dataset, bands []BandSpec, resolution int, grid h3grid.Grid, m *metrics.Metrics) (*RasterConverter, error) {
	bandCount := ds.BandCount()
	for _, b := range bands {
		if b.Index < 1 || b.Index > bandCount {
			return nil, fmt.Errorf("%w: band %d (dataset has %d bands)", ErrBandOutOfRange, b.Index, bandCount)
		}
	}

	if proj := ds.Projection(); proj != "" {
		if epsg, ok := parseEPSG(proj); ok {
			if epsg != 4326 {
				return nil, fmt.Errorf("%w: dataset declares EPSG:%d", ErrInvalidSRS, epsg)
			}
		} else {
			log.Printf("warning: could not parse projection %q, proceeding as if it were EPSG:4326", proj)
		}
	}

	if resolution < 0 || resolution > 15 {
		return nil, fmt.Errorf("%w: %d", ErrResolutionOutOfRange, resolution)
	}

	coeffs, err := ds.GeoTransformCoeffs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGeotransform, err)
	}
	gt, err := geo.NewGeotransform(coeffs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeotransformFailed, err)
	}

	if m == nil {
		m = metrics.New()
	}

	return &RasterConverter{
		dataset:    ds,
		bands:      bands,
		resolution: resolution,
		grid:       grid,
		metrics:    m,
		gt:         gt,
		converter:  tileconvert.NewConverter(grid, entryCacheSize),
	}, nil
}

// parseEPSG does a minimal textual scan for an EPSG code inside a
// WKT/PROJ.4-style projection string (e.g. `AUTHORITY["EPSG","4326"]` or
// `EPSG:4326`). It does not attempt a full WKT parse; ok is false when no
// recognizable code is found, which the caller treats as "unparseable".
func parseEPSG(proj string) (code int, ok bool) {
	const marker = "EPSG"
	idx := strings.Index(proj, marker)
	if idx < 0 {
		return 0, false
	}
	rest := proj[idx+len(marker):]
	var digits strings.Builder
	seenDigit := false
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
			seenDigit = true
		case seenDigit:
			// first non-digit after the run of digits ends the scan
			goto done
		default:
			// skip separators like ':', '"', ',' before the digits start
		}
	}
done:
	if digits.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

// Convert tiles the full raster and delegates to ConvertTiles.
func (c *RasterConverter) Convert(ctx context.Context, numWorkers, tileSize int, compact bool, progress chan<- pipeline.Progress) (*Result, error) {
	width, height := c.dataset.SizePixels()
	tiles := tileconvert.TileTesselation(width, height, tileSize, tileSize)
	return c.ConvertTiles(ctx, numWorkers, tiles, compact, progress)
}

// ConvertTiles runs the pipeline described in §4.5 over the given tiles.
func (c *RasterConverter) ConvertTiles(ctx context.Context, numWorkers int, tiles []tileconvert.Tile, compact bool, progress chan<- pipeline.Progress) (*Result, error) {
	readTile := func(tile tileconvert.Tile) (tileconvert.Subset, error) {
		bandData := make([][]value.Classified, len(c.bands))
		for i, spec := range c.bands {
			raw, err := c.dataset.ReadWindow(spec.Index, raster.Window{
				OriginX: tile.OriginCol,
				OriginY: tile.OriginRow,
				Width:   tile.Width,
				Height:  tile.Height,
			}, spec.Classifier.ValueType())
			if err != nil {
				return tileconvert.Subset{}, fmt.Errorf("%w: band %d at tile (%d,%d): %v",
					ErrRasterRead, spec.Index, tile.OriginCol, tile.OriginRow, err)
			}
			classified := make([]value.Classified, len(raw))
			for j, v := range raw {
				classified[j] = spec.Classifier.Classify(v)
			}
			bandData[i] = classified
		}
		return tileconvert.Subset{
			Tile:         tile,
			GeoCoeffs:    c.gt.C,
			H3Resolution: c.resolution,
			BandData:     bandData,
		}, nil
	}

	grouped, err := pipeline.Run(ctx, pipeline.Config{
		Tiles:      tiles,
		ReadTile:   readTile,
		Converter:  c.converter,
		Grid:       c.grid,
		NumWorkers: numWorkers,
		Compact:    compact,
		Progress:   progress,
		Metrics:    c.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	valueTypes := make([]value.Kind, len(c.bands))
	for i, spec := range c.bands {
		valueTypes[i] = spec.Classifier.ValueType()
	}

	return &Result{Grouped: grouped, BandValueTypes: valueTypes}, nil
}

