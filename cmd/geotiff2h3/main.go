// Command geotiff2h3 converts a georeferenced raster into a newline-
// delimited JSON dump of H3 cell stacks, one line per distinct band
// attribute combination. It stands in for the result-serialization
// collaborator the conversion core itself leaves out of scope.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	h3 "github.com/uber/h3-go/v4"

	"github.com/pspoerri/geotiff2h3/internal/classify"
	"github.com/pspoerri/geotiff2h3/internal/cog"
	"github.com/pspoerri/geotiff2h3/internal/convert"
	"github.com/pspoerri/geotiff2h3/internal/h3grid"
	"github.com/pspoerri/geotiff2h3/internal/pipeline"
	"github.com/pspoerri/geotiff2h3/internal/raster"
	"github.com/pspoerri/geotiff2h3/internal/tileconvert"
	"github.com/pspoerri/geotiff2h3/internal/value"
)

// bandFlags collects repeated -band flag values; each one is
// "index:kind:nodata", e.g. "1:uint8:0".
type bandFlags []string

func (b *bandFlags) String() string { return strings.Join(*b, ",") }
func (b *bandFlags) Set(v string) error {
	*b = append(*b, v)
	return nil
}

func main() {
	var (
		resolution  int
		tileSize    int
		concurrency int
		compact     bool
		verbose     bool
		output      string
		bands       bandFlags
	)

	flag.IntVar(&resolution, "resolution", 9, "H3 resolution [0,15]")
	flag.IntVar(&tileSize, "tile-size", 512, "Pixel tile size the raster is split into")
	flag.IntVar(&concurrency, "concurrency", runtime.NumCPU(), "Number of parallel tile converters")
	flag.BoolVar(&compact, "compact", true, "Hierarchically compact output cells")
	flag.BoolVar(&verbose, "verbose", false, "Log per-tile progress")
	flag.StringVar(&output, "output", "", "Output NDJSON path (default: stdout)")
	flag.Var(&bands, "band", `Band to classify as "index:kind:nodata", e.g. "1:uint8:0"; repeatable`)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: geotiff2h3 [flags] <input.tif>\n\n")
		fmt.Fprintf(os.Stderr, "Convert a georeferenced raster to H3 hex cell stacks.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(1)
	}
	inputPath := args[0]

	if len(bands) == 0 {
		bands = bandFlags{"1:uint8:0"}
	}
	specs, err := parseBandSpecs(bands)
	if err != nil {
		log.Fatalf("Parsing -band flags: %v", err)
	}

	reader, err := cog.Open(inputPath)
	if err != nil {
		log.Fatalf("Opening %s: %v", inputPath, err)
	}
	defer reader.Close()

	dataset := raster.NewCogDataset(reader)
	grid := h3grid.NewGrid()

	rc, err := convert.New(dataset, specs, resolution, grid, nil)
	if err != nil {
		log.Fatalf("Configuring converter: %v", err)
	}

	var progress chan pipeline.Progress
	if verbose {
		progress = make(chan pipeline.Progress, concurrency)
		go func() {
			for p := range progress {
				log.Printf("progress: tile %s merged (%d/%d)", p.TileID, p.TilesDone, p.TilesTotal)
			}
		}()
	}

	start := time.Now()
	result, err := rc.Convert(context.Background(), concurrency, tileSize, compact, progress)
	if progress != nil {
		close(progress)
	}
	if err != nil {
		log.Fatalf("Converting %s: %v", inputPath, err)
	}
	if verbose {
		log.Printf("Converted in %v, %d distinct attribute groups", time.Since(start).Round(time.Millisecond), result.Grouped.Len())
	}

	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			log.Fatalf("Creating %s: %v", output, err)
		}
		defer f.Close()
		out = f
	}

	if err := writeNDJSON(out, result); err != nil {
		log.Fatalf("Writing output: %v", err)
	}
}

func parseBandSpecs(flags bandFlags) ([]convert.BandSpec, error) {
	specs := make([]convert.BandSpec, 0, len(flags))
	for _, raw := range flags {
		parts := strings.Split(raw, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("band spec %q: want \"index:kind:nodata\"", raw)
		}
		index, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("band spec %q: bad index: %w", raw, err)
		}
		kind, err := parseKind(parts[1])
		if err != nil {
			return nil, fmt.Errorf("band spec %q: %w", raw, err)
		}
		sentinel, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("band spec %q: bad no-data value: %w", raw, err)
		}
		specs = append(specs, convert.BandSpec{
			Index:      index,
			Classifier: classify.NewNoDataClassifier(valueFromKind(kind, sentinel)),
		})
	}
	return specs, nil
}

func parseKind(s string) (value.Kind, error) {
	switch s {
	case "uint8":
		return value.KindUint8, nil
	case "uint16":
		return value.KindUint16, nil
	case "uint32":
		return value.KindUint32, nil
	case "int16":
		return value.KindInt16, nil
	case "int32":
		return value.KindInt32, nil
	case "float32":
		return value.KindFloat32, nil
	case "float64":
		return value.KindFloat64, nil
	default:
		return 0, fmt.Errorf("unknown band kind %q", s)
	}
}

func valueFromKind(kind value.Kind, f float64) value.Value {
	switch kind {
	case value.KindUint8:
		return value.Uint8(uint8(f))
	case value.KindUint16:
		return value.Uint16(uint16(f))
	case value.KindUint32:
		return value.Uint32(uint32(f))
	case value.KindInt16:
		return value.Int16(int16(f))
	case value.KindInt32:
		return value.Int32(int32(f))
	case value.KindFloat32:
		return value.Float32(float32(f))
	default:
		return value.Float64(f)
	}
}

// ndjsonEntry is the wire shape of one GroupedResult bucket.
type ndjsonEntry struct {
	Attributes []ndjsonAttr `json:"attributes"`
	Cells      []string     `json:"cells"`
}

type ndjsonAttr struct {
	Present bool    `json:"present"`
	Kind    string  `json:"kind,omitempty"`
	Value   float64 `json:"value,omitempty"`
}

func writeNDJSON(f *os.File, result *convert.Result) error {
	w := bufio.NewWriter(f)
	defer w.Flush()

	enc := json.NewEncoder(w)
	var encErr error
	result.Grouped.Range(func(attrs tileconvert.Attributes, stack *h3grid.HexStack) {
		if encErr != nil {
			return
		}
		entry := ndjsonEntry{
			Attributes: make([]ndjsonAttr, len(attrs)),
			Cells:      make([]string, 0, stack.Len()),
		}
		for i, c := range attrs {
			if v, ok := c.Value(); ok {
				entry.Attributes[i] = ndjsonAttr{Present: true, Kind: v.Kind().String(), Value: v.Float64Value()}
			} else {
				entry.Attributes[i] = ndjsonAttr{Present: false}
			}
		}
		for _, cell := range stack.Cells() {
			entry.Cells = append(entry.Cells, h3.Cell(cell).String())
		}
		if err := enc.Encode(entry); err != nil {
			encErr = err
		}
	})
	return encErr
}
