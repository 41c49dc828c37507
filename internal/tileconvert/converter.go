package tileconvert

import (
	"fmt"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pspoerri/geotiff2h3/internal/geo"
	"github.com/pspoerri/geotiff2h3/internal/h3grid"
	"github.com/pspoerri/geotiff2h3/internal/regiongrow"
)

// modeSweepBias is the deliberate bias toward the simpler sweep algorithm
// in the §4.3 density heuristic: cluster mode only wins when the number of
// fitting hexes, scaled by this factor, exceeds the tile's pixel count.
// Tunable; not derived from first principles.
const modeSweepBias = 0.9

// sweepFlushThreshold is the bucket size at which sweep mode opportunistically
// flushes a per-attribute bucket into the stack rather than holding it in
// memory for the rest of the tile (§4.3.2).
const sweepFlushThreshold = 20_000

// Mode identifies which algorithm converted a given tile, reported for
// observability (see internal/metrics).
type Mode string

const (
	ModeCluster Mode = "cluster"
	ModeSweep   Mode = "sweep"
)

// Converter converts one tile's subset into a GroupedResult, choosing
// between cluster mode and sweep mode per the density heuristic.
type Converter struct {
	Grid h3grid.Grid

	// entryCacheSize bounds a per-call LRU used to memoize cell-center
	// lookups during cluster-mode entry search and hex-region growth; 0
	// disables the cache (every lookup goes straight to Grid).
	entryCacheSize int
}

// NewConverter returns a Converter backed by grid, memoizing up to
// cacheSize cell-center lookups per Convert call. A cacheSize of 0
// disables memoization.
func NewConverter(grid h3grid.Grid, cacheSize int) *Converter {
	return &Converter{Grid: grid, entryCacheSize: cacheSize}
}

// SelectMode applies the §4.3 density heuristic for a tile of the given
// pixel count against its geographic area and target H3 resolution.
func (c *Converter) SelectMode(tileBoundsAreaM2 float64, pixelCount int, res int) (Mode, error) {
	hexArea, err := c.Grid.HexAreaM2(res)
	if err != nil {
		return "", err
	}
	if hexArea <= 0 {
		return ModeSweep, nil
	}
	h := int(ceilDiv(tileBoundsAreaM2, hexArea))
	if h < 1 {
		h = 1
	}
	if modeSweepBias*float64(h) > float64(pixelCount) {
		return ModeCluster, nil
	}
	return ModeSweep, nil
}

func ceilDiv(a, b float64) float64 {
	if a <= 0 {
		return 0
	}
	q := a / b
	if q == float64(int64(q)) {
		return q
	}
	return float64(int64(q)) + 1
}

// Convert runs TileConverter over subset, returning only cells whose
// center lies inside the tile's geographic bounds and whose pixel carries
// a present attribute vector.
func (c *Converter) Convert(subset Subset, compact bool) (*GroupedResult, Mode, error) {
	gt, err := geo.NewGeotransform(subset.GeoCoeffs)
	if err != nil {
		return nil, "", fmt.Errorf("tile geotransform: %w", err)
	}
	bounds := subset.Tile.Bounds(gt)

	pixelCount := subset.Tile.Width * subset.Tile.Height
	mode, err := c.SelectMode(geo.Area(bounds), pixelCount, subset.H3Resolution)
	if err != nil {
		return nil, "", fmt.Errorf("selecting conversion mode: %w", err)
	}

	var cache *lru.Cache[h3grid.Cell, geo.Point]
	if c.entryCacheSize > 0 {
		cache, _ = lru.New[h3grid.Cell, geo.Point](c.entryCacheSize)
	}

	switch mode {
	case ModeCluster:
		result, err := c.convertCluster(gt, bounds, subset, compact, cache)
		return result, mode, err
	default:
		result, err := c.convertSweep(gt, bounds, subset, compact, cache)
		return result, mode, err
	}
}

func (c *Converter) center(cell h3grid.Cell, cache *lru.Cache[h3grid.Cell, geo.Point]) (geo.Point, error) {
	if cache != nil {
		if p, ok := cache.Get(cell); ok {
			return p, nil
		}
	}
	p, err := c.Grid.Center(cell)
	if err != nil {
		return geo.Point{}, err
	}
	if cache != nil {
		cache.Add(cell, p)
	}
	return p, nil
}

func buildAttributesByPosition(subset Subset) map[int]Attributes {
	numBands := len(subset.BandData)
	positions := subset.Tile.Width * subset.Tile.Height
	out := make(map[int]Attributes, positions)
	for pos := 0; pos < positions; pos++ {
		attrs := make(Attributes, numBands)
		present := false
		for b, band := range subset.BandData {
			if pos >= len(band) {
				continue
			}
			attrs[b] = band[pos]
			if attrs[b].IsPresent() {
				present = true
			}
		}
		if present {
			out[pos] = attrs
		}
	}
	return out
}

// convertCluster implements §4.3.1: pixel-driven region growing, suited to
// dense rasters where pixels are sparse relative to fitting hexes.
func (c *Converter) convertCluster(
	gt geo.Geotransform,
	bounds geo.Rect,
	subset Subset,
	compact bool,
	cache *lru.Cache[h3grid.Cell, geo.Point],
) (*GroupedResult, error) {
	byPos := buildAttributesByPosition(subset)
	occupied := regiongrow.MapOccupied[Attributes](byPos)

	indexesToAdd := make(map[attrKey]*clusterBucket)
	result := NewGroupedResult()

	for len(byPos) > 0 {
		var seed int
		for pos := range byPos {
			seed = pos
			break
		}

		cluster := regiongrow.Grow(occupied, seed, subset.Tile.Width, subset.Tile.Height)

		entry, found, err := c.findEntryCell(gt, bounds, subset, cluster, cache)
		if err != nil {
			return nil, err
		}
		if found {
			if err := c.growHexRegion(entry, gt, bounds, subset, cluster, byPos, indexesToAdd, cache); err != nil {
				return nil, err
			}
		}

		for pos := range cluster {
			delete(byPos, pos)
		}
	}

	for key, bucket := range indexesToAdd {
		_ = key
		stack := result.StackFor(bucket.attributes)
		if err := stack.AppendToResolution(c.Grid, subset.H3Resolution, bucket.cells, compact); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type clusterBucket struct {
	attributes Attributes
	cells      []h3grid.Cell
}

// findEntryCell walks cluster positions looking for the first H3 cell
// whose center lies in tile_bounds and whose corresponding pixel, via the
// geotransform inverse, is itself inside the cluster (§4.3.1 step 2a).
func (c *Converter) findEntryCell(
	gt geo.Geotransform,
	bounds geo.Rect,
	subset Subset,
	cluster map[int]struct{},
	cache *lru.Cache[h3grid.Cell, geo.Point],
) (h3grid.Cell, bool, error) {
	for pos := range cluster {
		col, row := subset.Tile.PixelFromArrayPosition(pos)
		absCol := subset.Tile.OriginCol + col
		absRow := subset.Tile.OriginRow + row
		coord := gt.PixelToCoordinateF(float64(absCol), float64(absRow))

		cell, err := c.Grid.CellFromPoint(coord, subset.H3Resolution)
		if err != nil {
			return 0, false, fmt.Errorf("entry cell lookup: %w", err)
		}
		center, err := c.center(cell, cache)
		if err != nil {
			return 0, false, fmt.Errorf("entry cell center: %w", err)
		}
		if !geo.Contains(bounds, center) {
			continue
		}
		indexPos := pixelPositionFor(gt, subset, center)
		if _, ok := cluster[indexPos]; ok {
			return cell, true, nil
		}
	}
	return 0, false, nil
}

// pixelPositionFor maps a geographic coordinate back to its tile-relative
// array position via the geotransform inverse. It returns -1 when the
// rounded pixel falls outside the tile.
func pixelPositionFor(gt geo.Geotransform, subset Subset, coord geo.Point) int {
	px := gt.CoordinateToPixelRounded(coord)
	col := px.Col - subset.Tile.OriginCol
	row := px.Row - subset.Tile.OriginRow
	if col < 0 || row < 0 || col >= subset.Tile.Width || row >= subset.Tile.Height {
		return -1
	}
	return subset.Tile.ArrayPosition(col, row)
}

// growHexRegion performs the H3-grid flood fill from entry (§4.3.1 step
// 2b): a FIFO walk where growth only continues from cells that were
// actually attributed, matching the reference implementation.
func (c *Converter) growHexRegion(
	entry h3grid.Cell,
	gt geo.Geotransform,
	bounds geo.Rect,
	subset Subset,
	cluster map[int]struct{},
	byPos map[int]Attributes,
	indexesToAdd map[attrKey]*clusterBucket,
	cache *lru.Cache[h3grid.Cell, geo.Point],
) error {
	queue := []h3grid.Cell{entry}
	visited := make(map[h3grid.Cell]struct{})
	scheduled := map[h3grid.Cell]struct{}{entry: {}}

	for len(queue) > 0 {
		cell := queue[0]
		queue = queue[1:]
		visited[cell] = struct{}{}
		delete(scheduled, cell)

		center, err := c.center(cell, cache)
		if err != nil {
			return fmt.Errorf("hex region growth center lookup: %w", err)
		}
		if !geo.Contains(bounds, center) {
			continue
		}
		pos := pixelPositionFor(gt, subset, center)
		if _, ok := cluster[pos]; !ok {
			continue
		}
		attrs, ok := byPos[pos]
		if !ok {
			continue
		}

		key := attrs.Key()
		bucket, ok := indexesToAdd[key]
		if !ok {
			bucket = &clusterBucket{attributes: attrs}
			indexesToAdd[key] = bucket
		}
		bucket.cells = append(bucket.cells, cell)

		neighbors, err := c.Grid.GridDisk1(cell)
		if err != nil {
			return fmt.Errorf("k-ring neighbors: %w", err)
		}
		for _, n := range neighbors {
			if _, v := visited[n]; v {
				continue
			}
			if _, s := scheduled[n]; s {
				continue
			}
			scheduled[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return nil
}

// convertSweep implements §4.3.2: hex-driven traversal, suited to sparse
// rasters where hexes are sparse relative to pixels.
func (c *Converter) convertSweep(
	gt geo.Geotransform,
	bounds geo.Rect,
	subset Subset,
	compact bool,
	cache *lru.Cache[h3grid.Cell, geo.Point],
) (*GroupedResult, error) {
	result := NewGroupedResult()
	buckets := make(map[attrKey]*clusterBucket)

	centerCol, centerRow := subset.Tile.CenterPixel()
	seedCoord := gt.PixelToCoordinateF(
		float64(subset.Tile.OriginCol+centerCol),
		float64(subset.Tile.OriginRow+centerRow),
	)
	seed, err := c.Grid.CellFromPoint(seedCoord, subset.H3Resolution)
	if err != nil {
		return nil, fmt.Errorf("sweep seed cell: %w", err)
	}

	queue := []h3grid.Cell{seed}
	visited := make(map[h3grid.Cell]struct{})
	scheduled := map[h3grid.Cell]struct{}{seed: {}}

	flush := func(key attrKey) error {
		bucket := buckets[key]
		if bucket == nil || len(bucket.cells) == 0 {
			return nil
		}
		stack := result.StackFor(bucket.attributes)
		if err := stack.AppendToResolution(c.Grid, subset.H3Resolution, bucket.cells, compact); err != nil {
			return err
		}
		bucket.cells = nil
		return nil
	}

	for len(queue) > 0 {
		cell := queue[0]
		queue = queue[1:]
		visited[cell] = struct{}{}
		delete(scheduled, cell)

		center, err := c.center(cell, cache)
		if err != nil {
			return nil, fmt.Errorf("sweep center lookup: %w", err)
		}
		if !geo.Contains(bounds, center) {
			continue
		}

		pos := pixelPositionFor(gt, subset, center)
		attrs := readAttributesAt(subset, pos)
		if attrs.IsPresent() {
			key := attrs.Key()
			bucket, ok := buckets[key]
			if !ok {
				bucket = &clusterBucket{attributes: attrs}
				buckets[key] = bucket
			}
			bucket.cells = append(bucket.cells, cell)
			if len(bucket.cells) > sweepFlushThreshold {
				if err := flush(key); err != nil {
					return nil, err
				}
			}
		}

		neighbors, err := c.Grid.GridDisk1(cell)
		if err != nil {
			return nil, fmt.Errorf("k-ring neighbors: %w", err)
		}
		for _, n := range neighbors {
			if _, v := visited[n]; v {
				continue
			}
			if _, s := scheduled[n]; s {
				continue
			}
			scheduled[n] = struct{}{}
			queue = append(queue, n)
		}
	}

	for key := range buckets {
		if err := flush(key); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// readAttributesAt reads every band's classified value at array position
// pos, treating an out-of-range read as no-data and logging a warning —
// never a fatal error — per §7.
func readAttributesAt(subset Subset, pos int) Attributes {
	attrs := make(Attributes, len(subset.BandData))
	for b, band := range subset.BandData {
		if pos < 0 || pos >= len(band) {
			log.Printf("warning: tile (%d,%d) band %d: position %d out of range (len %d), treating as no-data",
				subset.Tile.OriginCol, subset.Tile.OriginRow, b, pos, len(band))
			continue // no-data: leaves attrs[b] as the zero Classified
		}
		attrs[b] = band[pos]
	}
	return attrs
}
