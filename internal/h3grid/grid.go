// Package h3grid wraps the external H3 discrete-global-grid capability
// (cell-from-coordinate, cell center, k-ring neighbors, compaction) behind
// a narrow Grid interface, and builds the core HexStack data model on top
// of it. Resolution arithmetic and compaction themselves are the external
// library's job (github.com/uber/h3-go/v4) — this package only adapts to
// it and adds the hierarchical-stack bookkeeping the spec requires.
package h3grid

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/pspoerri/geotiff2h3/internal/geo"
)

// Cell is an opaque H3 cell identifier at one of 16 resolutions.
type Cell = h3.Cell

// Grid is the external H3 capability consumed by the conversion engine.
type Grid interface {
	// CellFromPoint returns the H3 cell at the given resolution whose
	// index covers p.
	CellFromPoint(p geo.Point, res int) (Cell, error)

	// Center returns the geographic center coordinate of a cell.
	Center(c Cell) (geo.Point, error)

	// GridDisk1 returns the 1-ring neighbors of c (distance <= 1),
	// including c itself.
	GridDisk1(c Cell) ([]Cell, error)

	// HexAreaM2 returns the average hexagon area at res, in square
	// meters.
	HexAreaM2(res int) (float64, error)

	// CompactCells replaces runs of seven sibling children with their
	// parent, recursively, wherever a full set of siblings is present.
	CompactCells(cells []Cell) ([]Cell, error)

	// Resolution returns the resolution encoded in a cell index.
	Resolution(c Cell) int
}

// uberGrid adapts Grid to github.com/uber/h3-go/v4.
type uberGrid struct{}

// NewGrid returns the production Grid backed by the real H3 library.
func NewGrid() Grid { return uberGrid{} }

func (uberGrid) CellFromPoint(p geo.Point, res int) (Cell, error) {
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: p.Y, Lng: p.X}, res)
	if err != nil {
		return 0, fmt.Errorf("cell from point: %w", err)
	}
	return cell, nil
}

func (uberGrid) Center(c Cell) (geo.Point, error) {
	ll, err := c.LatLng()
	if err != nil {
		return geo.Point{}, fmt.Errorf("cell center: %w", err)
	}
	return geo.Point{X: ll.Lng, Y: ll.Lat}, nil
}

func (uberGrid) GridDisk1(c Cell) ([]Cell, error) {
	cells, err := c.GridDisk(1)
	if err != nil {
		return nil, fmt.Errorf("grid disk: %w", err)
	}
	return cells, nil
}

func (uberGrid) HexAreaM2(res int) (float64, error) {
	area, err := h3.HexagonAreaAvgM2(res)
	if err != nil {
		return 0, fmt.Errorf("hex area at resolution %d: %w", res, err)
	}
	return area, nil
}

func (uberGrid) CompactCells(cells []Cell) ([]Cell, error) {
	compacted, err := h3.CompactCells(cells)
	if err != nil {
		return nil, fmt.Errorf("compact cells: %w", err)
	}
	return compacted, nil
}

func (uberGrid) Resolution(c Cell) int {
	return c.Resolution()
}
