package convert

import "github.com/pspoerri/geotiff2h3/internal/classify"

// BandSpec declares one input band to read and how to classify its raw
// values into attribute values.
type BandSpec struct {
	// Index is the 1-indexed raster band to read, matching the GDAL
	// convention raster.Dataset.ReadWindow expects.
	Index int

	Classifier classify.Classifier
}
