package convert

import "errors"

// Sentinel error kinds surfaced by the facade (§7). Use errors.Is to test
// for a specific kind; wrapped errors carry additional context via %w.
var (
	// ErrBandOutOfRange means a configured band index exceeds the
	// dataset's band count.
	ErrBandOutOfRange = errors.New("band index out of range")

	// ErrInvalidSRS means the dataset declares a parseable spatial
	// reference other than EPSG:4326.
	ErrInvalidSRS = errors.New("raster spatial reference is not EPSG:4326")

	// ErrNoGeotransform means the dataset has no geotransform at all.
	ErrNoGeotransform = errors.New("raster has no geotransform")

	// ErrGeotransformFailed means a geotransform was present but singular
	// (not invertible).
	ErrGeotransformFailed = errors.New("raster geotransform is not invertible")

	// ErrResolutionOutOfRange means the requested H3 resolution falls
	// outside [0, 15].
	ErrResolutionOutOfRange = errors.New("H3 resolution out of range [0,15]")

	// ErrRasterRead wraps a failure returned by the raster capability
	// during pipeline execution.
	ErrRasterRead = errors.New("raster read failed")

	// ErrConversionFailed is the umbrella error wrapping an abnormal
	// worker or aggregator exit.
	ErrConversionFailed = errors.New("conversion failed")
)
