package geo

import "testing"

func TestRectFromCornersNormalizes(t *testing.T) {
	r := RectFromCorners(Point{X: 5, Y: -5}, Point{X: -5, Y: 5})
	if r.Min != (Point{X: -5, Y: -5}) || r.Max != (Point{X: 5, Y: 5}) {
		t.Errorf("unexpected normalized rect: %+v", r)
	}
}

func TestAreaAndContains(t *testing.T) {
	r := Rect{Min: Point{X: 0, Y: 0}, Max: Point{X: 2, Y: 3}}
	if got := Area(r); got != 6 {
		t.Errorf("Area() = %v, want 6", got)
	}
	if !Contains(r, Point{X: 0, Y: 0}) {
		t.Error("closed interval must include the min corner")
	}
	if !Contains(r, Point{X: 2, Y: 3}) {
		t.Error("closed interval must include the max corner")
	}
	if Contains(r, Point{X: 2.1, Y: 0}) {
		t.Error("point outside rect must not be contained")
	}
}

func TestGeotransformRoundTrip(t *testing.T) {
	// A 1-degree-per-pixel grid anchored at (-10, 10) with row flipping
	// north-up, the common GDAL convention.
	gt, err := NewGeotransform([6]float64{-10, 1, 0, 10, 0, -1})
	if err != nil {
		t.Fatalf("NewGeotransform: %v", err)
	}

	p := gt.PixelToCoordinate(Pixel{Col: 3, Row: 2})
	wantX, wantY := -7.0, 8.0
	if p.X != wantX || p.Y != wantY {
		t.Fatalf("PixelToCoordinate = %+v, want (%v, %v)", p, wantX, wantY)
	}

	col, row := gt.CoordinateToPixel(p)
	if col != 3 || row != 2 {
		t.Errorf("CoordinateToPixel round-trip = (%v, %v), want (3, 2)", col, row)
	}
}

func TestGeotransformSingularRejected(t *testing.T) {
	_, err := NewGeotransform([6]float64{0, 0, 0, 0, 0, 0})
	if err == nil {
		t.Fatal("expected an error for a singular (non-invertible) geotransform")
	}
}
