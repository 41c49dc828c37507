package h3grid

// HexStack is a hierarchical container of H3 cells across resolutions.
// It is core data-model work, not part of the external H3 capability: the
// grouping by resolution and the merge/compaction bookkeeping belong to
// the conversion engine, while the compaction primitive itself (replacing
// seven sibling children by their parent) is delegated to the Grid
// collaborator.
type HexStack struct {
	byResolution map[int][]Cell
}

// NewHexStack returns an empty stack.
func NewHexStack() *HexStack {
	return &HexStack{byResolution: make(map[int][]Cell)}
}

// Len returns the total number of cells across all resolutions.
func (s *HexStack) Len() int {
	n := 0
	for _, cells := range s.byResolution {
		n += len(cells)
	}
	return n
}

// Cells returns every cell in the stack, across all resolutions, in no
// particular order.
func (s *HexStack) Cells() []Cell {
	out := make([]Cell, 0, s.Len())
	for _, cells := range s.byResolution {
		out = append(out, cells...)
	}
	return out
}

// AppendToResolution appends cells at the given resolution. If compact is
// set, the stack's existing cells at that resolution plus the new ones are
// immediately compacted via the Grid collaborator; this is the
// "opportunistic compaction" path sweep mode uses for oversized buckets.
// A nil grid is only valid when compact is false.
func (s *HexStack) AppendToResolution(grid Grid, res int, cells []Cell, compact bool) error {
	if len(cells) == 0 {
		return nil
	}
	s.byResolution[res] = append(s.byResolution[res], cells...)
	if compact {
		return s.compactResolution(grid, res)
	}
	return nil
}

// Append merges another stack's cells into this one, resolution by
// resolution. Per §4.4, merge is deliberately uncompacted: no grid calls
// happen here regardless of the compact flag, trading peak memory for
// speed; compact is accepted for API symmetry with append_to_resolution
// and is ignored. Callers that want compaction call Compact afterwards.
func (s *HexStack) Append(other *HexStack, compact bool) error {
	for res, cells := range other.byResolution {
		if len(cells) == 0 {
			continue
		}
		s.byResolution[res] = append(s.byResolution[res], cells...)
	}
	return nil
}

// Compact runs a full compaction on every resolution present in the
// stack, repeatedly replacing seven complete children by their parent.
// Intended to run exactly once, after all per-tile partials have been
// merged in (§4.4's finalize).
func (s *HexStack) Compact(grid Grid) error {
	// A single pass can promote cells from resolution r into resolution
	// r-1, where they might now complete another set of seven siblings
	// that a prior pass over r-1 already finished looking at. Repeat until
	// a pass produces no further reduction in total cell count.
	for {
		before := s.Len()

		// Snapshot the resolutions present before compacting this pass:
		// compaction mutates the map by deleting and re-adding keys, which
		// has unspecified iteration order for newly added keys if done
		// while ranging.
		resolutions := make([]int, 0, len(s.byResolution))
		for res := range s.byResolution {
			resolutions = append(resolutions, res)
		}
		for _, res := range resolutions {
			if err := s.compactResolution(grid, res); err != nil {
				return err
			}
		}

		if s.Len() == before {
			return nil
		}
	}
}

// compactResolution compacts cells at a single resolution bucket, then
// redistributes the result by each cell's actual post-compaction
// resolution: a complete set of seven siblings collapses into one parent
// cell one resolution coarser, so the compacted set is no longer
// homogeneous in resolution. This is what makes a HexStack genuinely
// hierarchical rather than just a flat per-resolution bucket list.
func (s *HexStack) compactResolution(grid Grid, res int) error {
	cells := s.byResolution[res]
	if len(cells) == 0 {
		delete(s.byResolution, res)
		return nil
	}
	compacted, err := grid.CompactCells(cells)
	if err != nil {
		return err
	}
	delete(s.byResolution, res)
	for _, c := range compacted {
		r := grid.Resolution(c)
		s.byResolution[r] = append(s.byResolution[r], c)
	}
	return nil
}
