// Package accumulate implements the aggregator side of the conversion
// pipeline (§4.4): merging each tile's partial GroupedResult into one
// running total, and producing the final compacted result once every tile
// has been merged in.
package accumulate

import (
	"fmt"

	"github.com/pspoerri/geotiff2h3/internal/h3grid"
	"github.com/pspoerri/geotiff2h3/internal/tileconvert"
)

// GroupedAccumulator merges per-tile GroupedResults into a single running
// total. It is not safe for concurrent use: the pipeline runs exactly one
// aggregator goroutine, and every Merge call must come from it.
type GroupedAccumulator struct {
	total *tileconvert.GroupedResult
}

// New returns an empty accumulator.
func New() *GroupedAccumulator {
	return &GroupedAccumulator{total: tileconvert.NewGroupedResult()}
}

// Merge folds partial into the running total. Per §4.4, merging never
// compacts: each attribute bucket's stack simply appends partial's cells,
// trading peak memory for avoiding repeated compaction passes mid-run.
func (a *GroupedAccumulator) Merge(partial *tileconvert.GroupedResult) error {
	var mergeErr error
	partial.Range(func(attrs tileconvert.Attributes, stack *h3grid.HexStack) {
		if mergeErr != nil {
			return
		}
		dest := a.total.StackFor(attrs)
		if err := dest.Append(stack, false); err != nil {
			mergeErr = fmt.Errorf("merging tile result: %w", err)
		}
	})
	return mergeErr
}

// Finalize compacts every attribute bucket's stack exactly once, after all
// tiles have been merged in, but only if compact is set. It is the only
// point in the pipeline where compaction runs over the whole accumulated
// result at once; with compact false the accumulated cells are left exactly
// as merged.
func (a *GroupedAccumulator) Finalize(grid h3grid.Grid, compact bool) error {
	if !compact {
		return nil
	}
	var finalizeErr error
	a.total.Range(func(_ tileconvert.Attributes, stack *h3grid.HexStack) {
		if finalizeErr != nil {
			return
		}
		if err := stack.Compact(grid); err != nil {
			finalizeErr = fmt.Errorf("finalizing compaction: %w", err)
		}
	})
	return finalizeErr
}

// Take returns the accumulated result. Intended to be called once, after
// Finalize (or directly, if the caller opted out of final compaction).
func (a *GroupedAccumulator) Take() *tileconvert.GroupedResult {
	return a.total
}
