package h3grid

import (
	"fmt"

	"github.com/pspoerri/geotiff2h3/internal/geo"
)

// fakeGrid implements Grid over a trivial synthetic cell encoding for
// tests that don't want to depend on the real H3 math: a cell is encoded
// as resolution*1_000_000 + id, and "compaction" groups cells whose id is
// in the same consecutive run of 7 (siblings 0-6, 7-13, ...) at a given
// resolution into a single parent cell one resolution coarser.
type fakeGrid struct {
	// pointToID maps a geo.Point to a synthetic leaf id, for
	// CellFromPoint in tests that need it.
	pointToID map[geo.Point]int
	centers   map[Cell]geo.Point
	neighbors map[Cell][]Cell
}

func newFakeGrid() *fakeGrid {
	return &fakeGrid{
		pointToID: make(map[geo.Point]int),
		centers:   make(map[Cell]geo.Point),
		neighbors: make(map[Cell][]Cell),
	}
}

func fakeCell(res, id int) Cell {
	return Cell(uint64(res)*1_000_000 + uint64(id))
}

func fakeCellParts(c Cell) (res, id int) {
	return int(uint64(c) / 1_000_000), int(uint64(c) % 1_000_000)
}

func (g *fakeGrid) CellFromPoint(p geo.Point, res int) (Cell, error) {
	id, ok := g.pointToID[p]
	if !ok {
		return 0, fmt.Errorf("no fake cell registered for point %+v", p)
	}
	return fakeCell(res, id), nil
}

func (g *fakeGrid) Center(c Cell) (geo.Point, error) {
	p, ok := g.centers[c]
	if !ok {
		return geo.Point{}, fmt.Errorf("no center registered for cell %d", c)
	}
	return p, nil
}

func (g *fakeGrid) GridDisk1(c Cell) ([]Cell, error) {
	return append([]Cell{c}, g.neighbors[c]...), nil
}

func (g *fakeGrid) HexAreaM2(res int) (float64, error) {
	return 1, nil
}

func (g *fakeGrid) Resolution(c Cell) int {
	res, _ := fakeCellParts(c)
	return res
}

// CompactCells groups cells by resolution, then within each resolution
// collapses complete runs of 7 consecutive ids (same id/7 bucket) into a
// single parent cell at resolution-1 whose id is id/7.
func (g *fakeGrid) CompactCells(cells []Cell) ([]Cell, error) {
	byRes := make(map[int]map[int]bool)
	for _, c := range cells {
		res, id := fakeCellParts(c)
		if byRes[res] == nil {
			byRes[res] = make(map[int]bool)
		}
		byRes[res][id] = true
	}

	var out []Cell
	for res, ids := range byRes {
		byParent := make(map[int][]int)
		for id := range ids {
			parent := id / 7
			byParent[parent] = append(byParent[parent], id)
		}
		for parent, siblingIDs := range byParent {
			if len(siblingIDs) == 7 && res > 0 {
				out = append(out, fakeCell(res-1, parent))
				continue
			}
			for _, id := range siblingIDs {
				out = append(out, fakeCell(res, id))
			}
		}
	}
	return out, nil
}
