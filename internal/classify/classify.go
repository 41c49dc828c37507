// Package classify turns raw numeric pixel values read from a raster band
// into classified attribute values, or marks them as no-data.
package classify

import "github.com/pspoerri/geotiff2h3/internal/value"

// Classifier maps a raw pixel value to a classified value. It also selects
// which numeric type should be read from the band in the first place.
type Classifier interface {
	// ValueType reports which value.Kind a raw pixel is read as before
	// being passed to Classify.
	ValueType() value.Kind

	// Classify maps a raw value to a classified value. A no-data result
	// means the pixel does not contribute to any attribute combination.
	Classify(raw value.Value) value.Classified
}

// NoDataClassifier passes every raw value through unchanged except for one
// configured sentinel, which is treated as no-data. This mirrors the
// classifier used by the source converter's own fixture:
// NoData::new(Value::Uint8(0)).
type NoDataClassifier struct {
	Sentinel value.Value
}

// NewNoDataClassifier returns a classifier that treats sentinel as no-data.
func NewNoDataClassifier(sentinel value.Value) NoDataClassifier {
	return NoDataClassifier{Sentinel: sentinel}
}

func (c NoDataClassifier) ValueType() value.Kind { return c.Sentinel.Kind() }

func (c NoDataClassifier) Classify(raw value.Value) value.Classified {
	if raw.Equal(c.Sentinel) {
		return value.NoData
	}
	return value.Some(raw)
}

// ThresholdClassifier buckets a raw numeric value into one of len(Cuts)+1
// ordered classes. Cuts must be sorted ascending. A raw value equal to or
// below NoDataBelow is treated as no-data when HasNoDataBelow is set.
type ThresholdClassifier struct {
	Kind          value.Kind
	Cuts          []float64
	HasNoDataBelow bool
	NoDataBelow   float64
}

func (c ThresholdClassifier) ValueType() value.Kind { return c.Kind }

func (c ThresholdClassifier) Classify(raw value.Value) value.Classified {
	f := raw.Float64Value()
	if c.HasNoDataBelow && f <= c.NoDataBelow {
		return value.NoData
	}
	class := 0
	for _, cut := range c.Cuts {
		if f < cut {
			break
		}
		class++
	}
	return value.Some(value.Uint32(uint32(class)))
}
