package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/pspoerri/geotiff2h3/internal/geo"
	"github.com/pspoerri/geotiff2h3/internal/h3grid"
	"github.com/pspoerri/geotiff2h3/internal/tileconvert"
	"github.com/pspoerri/geotiff2h3/internal/value"
)

// fakeGrid is a minimal 1:1 pixel<->cell grid, identical in spirit to the
// one tileconvert tests use, sized for a single-band single-pixel-per-tile
// fixture.
type fakeGrid struct{ w, h int }

func fakeCell(col, row int) h3grid.Cell { return h3grid.Cell(uint64(row)*1_000_000 + uint64(col) + 1) }
func fakeParts(c h3grid.Cell) (col, row int) {
	v := uint64(c) - 1
	return int(v % 1_000_000), int(v / 1_000_000)
}

func (g fakeGrid) CellFromPoint(p geo.Point, res int) (h3grid.Cell, error) {
	col, row := int(p.X+0.5), int(p.Y+0.5)
	if col < 0 || row < 0 || col >= g.w || row >= g.h {
		return 0, fmt.Errorf("point outside bounds")
	}
	return fakeCell(col, row), nil
}
func (g fakeGrid) Center(c h3grid.Cell) (geo.Point, error) {
	col, row := fakeParts(c)
	return geo.Point{X: float64(col), Y: float64(row)}, nil
}
func (g fakeGrid) GridDisk1(c h3grid.Cell) ([]h3grid.Cell, error) {
	col, row := fakeParts(c)
	out := []h3grid.Cell{c}
	for _, d := range [][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
		nc, nr := col+d[0], row+d[1]
		if nc < 0 || nr < 0 || nc >= g.w || nr >= g.h {
			continue
		}
		out = append(out, fakeCell(nc, nr))
	}
	return out, nil
}
func (g fakeGrid) HexAreaM2(res int) (float64, error) { return 1000, nil } // biases toward sweep
func (g fakeGrid) CompactCells(cells []h3grid.Cell) ([]h3grid.Cell, error) {
	return cells, nil
}
func (g fakeGrid) Resolution(c h3grid.Cell) int { return 5 }

var identityCoeffs = [6]float64{0, 1, 0, 0, 0, 1}

// tilePixel places one present pixel per 1x1 tile at the tile's origin, so
// each tile in this fixture is trivially a single-cell result.
func tileReaderFor(values map[[2]int]uint8) TileReader {
	return func(tile tileconvert.Tile) (tileconvert.Subset, error) {
		band := make([]value.Classified, tile.Width*tile.Height)
		if v, ok := values[[2]int{tile.OriginCol, tile.OriginRow}]; ok {
			band[0] = value.Some(value.Uint8(v))
		}
		return tileconvert.Subset{
			Tile:         tile,
			GeoCoeffs:    identityCoeffs,
			H3Resolution: 5,
			BandData:     [][]value.Classified{band},
		}, nil
	}
}

func TestPipelineRunMergesAllTiles(t *testing.T) {
	const w, h = 4, 4
	grid := fakeGrid{w: w, h: h}
	conv := tileconvert.NewConverter(grid, 16)

	tiles := []tileconvert.Tile{
		{OriginCol: 0, OriginRow: 0, Width: 1, Height: 1},
		{OriginCol: 1, OriginRow: 0, Width: 1, Height: 1},
		{OriginCol: 2, OriginRow: 0, Width: 1, Height: 1},
		{OriginCol: 3, OriginRow: 0, Width: 1, Height: 1},
	}
	values := map[[2]int]uint8{
		{0, 0}: 1,
		{1, 0}: 1,
		{2, 0}: 2,
	}

	progress := make(chan Progress, len(tiles))
	result, err := Run(context.Background(), Config{
		Tiles:      tiles,
		ReadTile:   tileReaderFor(values),
		Converter:  conv,
		Grid:       grid,
		NumWorkers: 2,
		Compact:    false,
		Progress:   progress,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Len() != 2 {
		t.Fatalf("result.Len() = %d, want 2 distinct attribute groups", result.Len())
	}

	totalCells := 0
	result.Range(func(attrs tileconvert.Attributes, stack *h3grid.HexStack) {
		totalCells += stack.Len()
	})
	if totalCells != 3 {
		t.Fatalf("total cells = %d, want 3", totalCells)
	}

	close(progress)
	seen := 0
	for range progress {
		seen++
	}
	if seen != len(tiles) {
		t.Errorf("progress messages = %d, want %d", seen, len(tiles))
	}
}

// compactingGrid is a 1:1 pixel<->cell grid, like fakeGrid, but with a
// CompactCells that performs real compaction: cells are encoded as
// res*1_000_000+id, and any complete run of 7 consecutive ids under the
// same parent (id/7) collapses to one parent cell one resolution coarser —
// the same scheme accumulate's tests use, reused here to exercise
// compaction through the whole pipeline rather than just the accumulator.
type compactingGrid struct{ n int }

func compactCell(res, id int) h3grid.Cell { return h3grid.Cell(uint64(res)*1_000_000 + uint64(id)) }
func compactParts(c h3grid.Cell) (res, id int) {
	return int(uint64(c) / 1_000_000), int(uint64(c) % 1_000_000)
}

func (g compactingGrid) CellFromPoint(p geo.Point, res int) (h3grid.Cell, error) {
	id := int(p.X + 0.5)
	if id < 0 || id >= g.n {
		return 0, fmt.Errorf("point outside bounds")
	}
	return compactCell(7, id), nil
}
func (g compactingGrid) Center(c h3grid.Cell) (geo.Point, error) {
	_, id := compactParts(c)
	return geo.Point{X: float64(id), Y: 0}, nil
}
func (g compactingGrid) GridDisk1(c h3grid.Cell) ([]h3grid.Cell, error) {
	res, id := compactParts(c)
	out := []h3grid.Cell{c}
	if id-1 >= 0 {
		out = append(out, compactCell(res, id-1))
	}
	if id+1 < g.n {
		out = append(out, compactCell(res, id+1))
	}
	return out, nil
}
func (g compactingGrid) HexAreaM2(res int) (float64, error) { return 1000, nil } // biases toward sweep
func (g compactingGrid) Resolution(c h3grid.Cell) int {
	res, _ := compactParts(c)
	return res
}
func (g compactingGrid) CompactCells(cells []h3grid.Cell) ([]h3grid.Cell, error) {
	byParent := make(map[[2]int][]int)
	for _, c := range cells {
		res, id := compactParts(c)
		key := [2]int{res, id / 7}
		byParent[key] = append(byParent[key], id)
	}
	var out []h3grid.Cell
	for key, ids := range byParent {
		res := key[0]
		if len(ids) == 7 && res > 0 {
			out = append(out, compactCell(res-1, key[1]))
			continue
		}
		for _, id := range ids {
			out = append(out, compactCell(res, id))
		}
	}
	return out, nil
}

// TestPipelineRunHonorsCompactFlag covers invariant #4: with a full
// compactable sibling set (seven adjacent single-pixel tiles sharing one
// attribute), compact=true must yield the hierarchical compaction of
// exactly the set compact=false produces — not a fully compacted result
// regardless of the flag.
func TestPipelineRunHonorsCompactFlag(t *testing.T) {
	const n = 7
	grid := compactingGrid{n: n}
	values := map[[2]int]uint8{}
	tiles := make([]tileconvert.Tile, n)
	for i := 0; i < n; i++ {
		tiles[i] = tileconvert.Tile{OriginCol: i, OriginRow: 0, Width: 1, Height: 1}
		values[[2]int{i, 0}] = 9
	}

	run := func(compact bool) *tileconvert.GroupedResult {
		conv := tileconvert.NewConverter(grid, 16)
		result, err := Run(context.Background(), Config{
			Tiles:      tiles,
			ReadTile:   tileReaderFor(values),
			Converter:  conv,
			Grid:       grid,
			NumWorkers: 2,
			Compact:    compact,
		})
		if err != nil {
			t.Fatalf("Run(compact=%v): %v", compact, err)
		}
		return result
	}

	uncompacted := run(false)
	compacted := run(true)

	if uncompacted.Len() != 1 {
		t.Fatalf("uncompacted.Len() = %d, want 1 attribute group", uncompacted.Len())
	}
	if compacted.Len() != 1 {
		t.Fatalf("compacted.Len() = %d, want 1 attribute group", compacted.Len())
	}

	var uncompactedCells, compactedCells []h3grid.Cell
	uncompacted.Range(func(_ tileconvert.Attributes, stack *h3grid.HexStack) { uncompactedCells = stack.Cells() })
	compacted.Range(func(_ tileconvert.Attributes, stack *h3grid.HexStack) { compactedCells = stack.Cells() })

	if len(uncompactedCells) != n {
		t.Fatalf("uncompacted cell count = %d, want %d (no compaction)", len(uncompactedCells), n)
	}

	wantCompacted, err := grid.CompactCells(uncompactedCells)
	if err != nil {
		t.Fatalf("CompactCells: %v", err)
	}
	if len(compactedCells) != len(wantCompacted) {
		t.Fatalf("compacted cell count = %d, want %d (hierarchical compaction of the compact=false set)", len(compactedCells), len(wantCompacted))
	}
	if len(compactedCells) != 1 {
		t.Fatalf("compacted cell count = %d, want 1 (seven siblings collapse to their parent)", len(compactedCells))
	}
	gotRes, gotID := compactParts(compactedCells[0])
	if gotRes != 6 || gotID != 0 {
		t.Errorf("compacted cell = (res=%d, id=%d), want (res=6, id=0)", gotRes, gotID)
	}
}

func TestPipelineRunPropagatesReaderError(t *testing.T) {
	grid := fakeGrid{w: 4, h: 4}
	conv := tileconvert.NewConverter(grid, 16)

	tiles := []tileconvert.Tile{{OriginCol: 0, OriginRow: 0, Width: 1, Height: 1}}
	failing := func(tile tileconvert.Tile) (tileconvert.Subset, error) {
		return tileconvert.Subset{}, fmt.Errorf("simulated raster read failure")
	}

	_, err := Run(context.Background(), Config{
		Tiles:      tiles,
		ReadTile:   failing,
		Converter:  conv,
		Grid:       grid,
		NumWorkers: 2,
	})
	if err == nil {
		t.Fatal("expected an error from a failing reader, got nil")
	}
}
