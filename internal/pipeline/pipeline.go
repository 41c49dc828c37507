// Package pipeline wires the reader, worker pool, and aggregator stages
// described in §4.5 together over bounded channels, using errgroup to give
// the whole run a single scoped lifetime: any stage's failure cancels the
// rest and is joined before Run returns.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pspoerri/geotiff2h3/internal/accumulate"
	"github.com/pspoerri/geotiff2h3/internal/h3grid"
	"github.com/pspoerri/geotiff2h3/internal/metrics"
	"github.com/pspoerri/geotiff2h3/internal/tileconvert"
)

// Progress is one update emitted per tile merged into the accumulator.
// TileID is a random id the reader stage assigns to the tile when queueing
// it; it travels with the tile through its worker to this update.
type Progress struct {
	TileID     uuid.UUID
	TilesTotal int
	TilesDone  int
}

// TileReader extracts one tile's classified band data from the raster
// capability and builds its ConversionSubset. It runs only on the reader
// stage — the raster dataset is a single-reader resource (§5).
type TileReader func(tile tileconvert.Tile) (tileconvert.Subset, error)

// Config parameterizes one pipeline run.
type Config struct {
	Tiles      []tileconvert.Tile
	ReadTile   TileReader
	Converter  *tileconvert.Converter
	Grid       h3grid.Grid
	NumWorkers int
	Compact    bool

	// Progress, if non-nil, receives one message per tile merged. The
	// pipeline never blocks indefinitely on a full progress channel: sends
	// are best-effort via select/default.
	Progress chan<- Progress

	Metrics *metrics.Metrics
}

type job struct {
	id     uuid.UUID
	subset tileconvert.Subset
}

type tileResult struct {
	id      uuid.UUID
	partial *tileconvert.GroupedResult
	mode    tileconvert.Mode
}

// Run drives one complete conversion: reader → bounded jobs queue → worker
// pool → bounded results queue → single aggregator → final result. All
// goroutines are guaranteed to have exited, one way or another, before Run
// returns (§5, "scoped lifetimes").
func Run(ctx context.Context, cfg Config) (*tileconvert.GroupedResult, error) {
	n := cfg.NumWorkers
	if n < 1 {
		n = 1
	}

	jobs := make(chan job, n)
	results := make(chan tileResult, n)

	group, groupCtx := errgroup.WithContext(ctx)

	// Reader stage: the sole accessor of the raster capability (§5,
	// "single-reader"). Extraction happens here, never in a worker, so the
	// dataset is never touched by more than one goroutine at a time.
	group.Go(func() error {
		defer close(jobs)
		for _, tile := range cfg.Tiles {
			subset, err := cfg.ReadTile(tile)
			if err != nil {
				return fmt.Errorf("reading tile at (%d,%d): %w", tile.OriginCol, tile.OriginRow, err)
			}
			id := uuid.New()
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			case jobs <- job{id: id, subset: subset}:
				if cfg.Metrics != nil {
					cfg.Metrics.JobQueueDepth.Set(float64(len(jobs)))
				}
			}
		}
		return nil
	})

	// Worker pool: each worker converts already-extracted subsets, never
	// touching the raster capability itself.
	for w := 0; w < n; w++ {
		group.Go(func() error {
			for {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				case j, ok := <-jobs:
					if !ok {
						return nil
					}
					partial, mode, err := cfg.Converter.Convert(j.subset, cfg.Compact)
					if err != nil {
						return fmt.Errorf("converting tile at (%d,%d): %w", j.subset.Tile.OriginCol, j.subset.Tile.OriginRow, err)
					}
					if cfg.Metrics != nil {
						cfg.Metrics.ModeSelections.WithLabelValues(string(mode)).Inc()
					}
					select {
					case <-groupCtx.Done():
						return groupCtx.Err()
					case results <- tileResult{id: j.id, partial: partial, mode: mode}:
						if cfg.Metrics != nil {
							cfg.Metrics.ResultQueueDepth.Set(float64(len(results)))
						}
					}
				}
			}
		})
	}

	// Closer: once every worker has returned, no more sends to results can
	// happen, so it's safe to close it — this is what lets the aggregator's
	// range loop terminate.
	go func() {
		_ = group.Wait()
		close(results)
	}()

	acc := accumulate.New()
	total := len(cfg.Tiles)
	done := 0
	for r := range results {
		if err := acc.Merge(r.partial); err != nil {
			return nil, fmt.Errorf("merging tile result: %w", err)
		}
		done++
		if cfg.Metrics != nil {
			cfg.Metrics.TilesMerged.Inc()
		}
		if cfg.Progress != nil {
			select {
			case cfg.Progress <- Progress{TileID: r.id, TilesTotal: total, TilesDone: done}:
			default:
			}
		}
	}

	// The results channel only closes after group.Wait() returns, so any
	// stage error is already available here.
	if err := groupErrAfterClose(group); err != nil {
		return nil, err
	}

	if err := acc.Finalize(cfg.Grid, cfg.Compact); err != nil {
		return nil, fmt.Errorf("finalizing result: %w", err)
	}
	return acc.Take(), nil
}

// groupErrAfterClose re-observes the errgroup's outcome. Wait is safe to
// call more than once on a group that has already completed: it simply
// returns the same recorded error again.
func groupErrAfterClose(group *errgroup.Group) error {
	return group.Wait()
}
