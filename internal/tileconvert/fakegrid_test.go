package tileconvert

import (
	"fmt"

	"github.com/pspoerri/geotiff2h3/internal/geo"
	"github.com/pspoerri/geotiff2h3/internal/h3grid"
)

// fakeGrid is a test double for h3grid.Grid that maps cells 1:1 onto an
// integer pixel grid (col, row), with 4-connected "1-ring" neighbors. It
// does not model real H3 geometry; it exists to exercise Converter's
// traversal and bucketing logic independent of the real library's cell
// packing.
type fakeGrid struct {
	width, height int
	hexArea       float64
	res           int
}

func newFakeGrid(width, height int, hexArea float64, res int) *fakeGrid {
	return &fakeGrid{width: width, height: height, hexArea: hexArea, res: res}
}

func fakeCellFor(col, row int) h3grid.Cell {
	return h3grid.Cell(uint64(row)*1_000_000 + uint64(col) + 1)
}

func fakeCellParts(c h3grid.Cell) (col, row int) {
	v := uint64(c) - 1
	return int(v % 1_000_000), int(v / 1_000_000)
}

func (g *fakeGrid) CellFromPoint(p geo.Point, res int) (h3grid.Cell, error) {
	col := int(p.X + 0.5)
	row := int(p.Y + 0.5)
	if col < 0 || row < 0 || col >= g.width || row >= g.height {
		return 0, fmt.Errorf("point %+v outside fake grid bounds", p)
	}
	return fakeCellFor(col, row), nil
}

func (g *fakeGrid) Center(c h3grid.Cell) (geo.Point, error) {
	col, row := fakeCellParts(c)
	return geo.Point{X: float64(col), Y: float64(row)}, nil
}

func (g *fakeGrid) GridDisk1(c h3grid.Cell) ([]h3grid.Cell, error) {
	col, row := fakeCellParts(c)
	out := []h3grid.Cell{c}
	for _, d := range [][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
		nc, nr := col+d[0], row+d[1]
		if nc < 0 || nr < 0 || nc >= g.width || nr >= g.height {
			continue
		}
		out = append(out, fakeCellFor(nc, nr))
	}
	return out, nil
}

func (g *fakeGrid) HexAreaM2(res int) (float64, error) {
	return g.hexArea, nil
}

func (g *fakeGrid) CompactCells(cells []h3grid.Cell) ([]h3grid.Cell, error) {
	seen := make(map[h3grid.Cell]bool, len(cells))
	var out []h3grid.Cell
	for _, c := range cells {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func (g *fakeGrid) Resolution(c h3grid.Cell) int {
	return g.res
}
