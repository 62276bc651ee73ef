// Package geom provides the distance, angle and containment primitives that
// every higher phase of the pipeline is built on. Grounded on trajognize's
// algo.py (get_distance, get_angle_deg, is_point_inside_ellipse) and
// algo_blob.py (is_blob_chain_appropriate_as_barcode).
package geom

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Positioned is anything with a 2D center, satisfied by model.ColorBlob,
// model.MotionBlob and *model.Barcode without this package importing model.
type Positioned interface {
	Pos() (float64, float64)
}

// Oriented additionally carries a radian orientation, as barcodes and
// motion blobs do.
type Oriented interface {
	Positioned
	OrientationRad() float64
}

// Distance is the Euclidean distance between two positioned things.
func Distance(a, b Positioned) float64 {
	ax, ay := a.Pos()
	bx, by := b.Pos()
	return math.Hypot(ax-bx, ay-by)
}

// AngleBetweenDeg is the angle in degrees between two orientations, folded
// to [0,180].
func AngleBetweenDeg(aRad, bRad float64) float64 {
	angle := radToDeg(aRad) - radToDeg(bRad)
	for angle < 0 {
		angle += 360
	}
	for angle >= 360 {
		angle -= 360
	}
	if angle < 180 {
		return angle
	}
	return 360 - angle
}

func radToDeg(r float64) float64 { return r * 180 / math.Pi }

// EllipseLike is the shape used by every containment test: a center, two
// semi-axes, and a rotation.
type EllipseLike interface {
	CenterXY() (float64, float64)
	Axes() (a, b float64)
	OrientationRad() float64
}

// PointInsideEllipse reports whether point lies inside ellipse, scaled by
// mul. Mirrors is_point_inside_ellipse: a cheap radial pre-check against
// the major and then the minor semi-axis short-circuits the common cases
// before paying for the rotation into the ellipse's frame.
func PointInsideEllipse(point Positioned, center Positioned, axisA, axisB, orientation, mul float64) bool {
	px, py := point.Pos()
	cx, cy := center.Pos()
	dx := cx - px
	dy := cy - py
	d := math.Hypot(dx, dy)
	if d > axisA*mul {
		return false
	}
	if d < axisB*mul {
		return true
	}
	x := dx*math.Cos(orientation) + dy*math.Sin(orientation)
	y := -dx*math.Sin(orientation) + dy*math.Cos(orientation)
	return x*x/(axisA*axisA)+y*y/(axisB*axisB) <= mul*mul
}

// Chain-appropriateness constants, see IsBlobChainAppropriate.
const defaultMinInteriorAngleDeg = 100.0

// IsBlobChainAppropriate decides whether a length-len(chain) ordered run of
// blob centers is straight and well-ordered enough to bind a barcode.
// checkDistance, if > 0, additionally requires every consecutive pair to be
// within that distance (used when validating against a stored chain rather
// than a freshly discovered one).
func IsBlobChainAppropriate(chain []Positioned, checkDistance float64) bool {
	n := len(chain)
	if checkDistance > 0 {
		for j := 0; j < n-1; j++ {
			if Distance(chain[j], chain[j+1]) > checkDistance {
				return false
			}
		}
	}
	// ordering check: every non-consecutive pair must be strictly farther
	// than either of its bracketing adjacent pairs.
	for j := 0; j < n-2; j++ {
		for jj := j + 2; jj < n; jj++ {
			d12 := Distance(chain[j], chain[j+1])
			d1x := Distance(chain[j], chain[jj])
			d2x := Distance(chain[j+1], chain[jj])
			if d1x <= d12 || d1x <= d2x {
				return false
			}
		}
	}
	// straightness check: every interior vertex angle must exceed 100 degrees.
	for j := 1; j < n-1; j++ {
		x0, y0 := chain[j-1].Pos()
		x1, y1 := chain[j].Pos()
		x2, y2 := chain[j+1].Pos()
		v1x, v1y := x0-x1, y0-y1
		v2x, v2y := x2-x1, y2-y1
		mag := math.Hypot(v1x, v1y) * math.Hypot(v2x, v2y)
		if mag == 0 {
			return false
		}
		cosAngle := clamp((v1x*v2x+v1y*v2y)/mag, -1, 1)
		angleDeg := radToDeg(math.Acos(cosAngle))
		if angleDeg <= defaultMinInteriorAngleDeg {
			return false
		}
	}
	return true
}

// clamp restricts v to [lo,hi]; the straightness check above uses it.
func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp is the exported form of clamp.
func Clamp[T constraints.Ordered](v, lo, hi T) T { return clamp(v, lo, hi) }

// Abs returns the absolute value of v.
func Abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
