package raster

import (
	"fmt"

	"github.com/pspoerri/geotiff2h3/internal/cog"
	"github.com/pspoerri/geotiff2h3/internal/value"
)

// CogDataset adapts a decoded GeoTIFF/COG reader to the Dataset capability.
// It exposes a single band — the reader's own ReadFloatTile only ever
// extracts the first sample per pixel (elevation-style single-band
// rasters), so BandCount is always 1 regardless of the source file's
// SamplesPerPixel.
type CogDataset struct {
	reader *cog.Reader
}

// NewCogDataset wraps an already-open COG reader.
func NewCogDataset(r *cog.Reader) *CogDataset {
	return &CogDataset{reader: r}
}

func (d *CogDataset) BandCount() int { return 1 }

func (d *CogDataset) SizePixels() (width, height int) {
	return d.reader.Width(), d.reader.Height()
}

func (d *CogDataset) GeoTransformCoeffs() ([6]float64, error) {
	geo := d.reader.GeoInfo()
	if geo.PixelSizeX == 0 {
		return [6]float64{}, fmt.Errorf("no pixel scale in GeoTIFF tags")
	}
	// North-up convention: x grows with column, y shrinks with row.
	return [6]float64{
		geo.OriginX, geo.PixelSizeX, 0,
		geo.OriginY, 0, -geo.PixelSizeY,
	}, nil
}

func (d *CogDataset) Projection() string {
	epsg := d.reader.GeoInfo().EPSG
	if epsg == 0 {
		return ""
	}
	return fmt.Sprintf("EPSG:%d", epsg)
}

// ReadWindow stitches the window from the reader's internal tile grid at
// full resolution (level 0), converting each float32 sample to the
// requested value.Kind.
func (d *CogDataset) ReadWindow(band int, win Window, kind value.Kind) ([]value.Value, error) {
	if band != 1 {
		return nil, fmt.Errorf("band %d out of range (dataset has 1 band)", band)
	}

	tileSize := d.reader.IFDTileSize(0)
	tw, th := tileSize[0], tileSize[1]
	if tw == 0 || th == 0 {
		return nil, fmt.Errorf("GeoTIFF reports zero-sized internal tiles")
	}

	out := make([]value.Value, win.Width*win.Height)

	firstTileCol := win.OriginX / tw
	firstTileRow := win.OriginY / th
	lastTileCol := (win.OriginX + win.Width - 1) / tw
	lastTileRow := (win.OriginY + win.Height - 1) / th

	for tileRow := firstTileRow; tileRow <= lastTileRow; tileRow++ {
		for tileCol := firstTileCol; tileCol <= lastTileCol; tileCol++ {
			data, dw, dh, err := d.reader.ReadFloatTile(0, tileCol, tileRow)
			if err != nil {
				return nil, fmt.Errorf("reading COG tile (%d,%d): %w", tileCol, tileRow, err)
			}

			tileOriginX := tileCol * tw
			tileOriginY := tileRow * th

			for row := 0; row < dh; row++ {
				absRow := tileOriginY + row
				winRow := absRow - win.OriginY
				if winRow < 0 || winRow >= win.Height {
					continue
				}
				for col := 0; col < dw; col++ {
					absCol := tileOriginX + col
					winCol := absCol - win.OriginX
					if winCol < 0 || winCol >= win.Width {
						continue
					}
					var v float32
					if data != nil {
						v = data[row*dw+col]
					}
					out[winRow*win.Width+winCol] = convertSample(v, kind)
				}
			}
		}
	}

	return out, nil
}

// convertSample converts a decoded float32 sample to the requested
// value.Kind, truncating for integer kinds.
func convertSample(v float32, kind value.Kind) value.Value {
	switch kind {
	case value.KindUint8:
		return value.Uint8(uint8(v))
	case value.KindUint16:
		return value.Uint16(uint16(v))
	case value.KindUint32:
		return value.Uint32(uint32(v))
	case value.KindInt16:
		return value.Int16(int16(v))
	case value.KindInt32:
		return value.Int32(int32(v))
	case value.KindFloat32:
		return value.Float32(v)
	default:
		return value.Float64(float64(v))
	}
}
