// Package model defines the shared data types that flow through every phase
// of the trajognize pipeline: blobs, barcodes, trajectories and conflicts.
//
// The blob/barcode/trajectory graph is cyclic in every direction (a blob
// names the barcodes that use it, a barcode names its blobs, a trajectory
// names its barcodes by frame offset). Rather than pointers we use
// frame-local integer indices throughout, mirroring an arena-per-frame
// layout: a blob index is a position in that frame's blob slice, and a
// BarcodeIndex is a (colorid, position) pair into that frame's per-colorid
// barcode slices.
package model

import "math"

// NoBlob is the sentinel stored in Barcode.BlobIndices for a still-missing
// chip position.
const NoBlob = -1

// Point is a 2D location in image pixel coordinates.
type Point struct {
	X, Y float64
}

// Ellipse is a region used both for motion-blob extents and for the
// "is this near a barcode" containment tests throughout the pipeline.
type Ellipse struct {
	CenterX, CenterY float64
	AxisA, AxisB     float64 // semi-major, semi-minor
	Orientation      float64 // radians
}

// Center returns the ellipse's center as a Point.
func (e Ellipse) Center() Point { return Point{e.CenterX, e.CenterY} }

// ColorBlob is a single detected colored dot on one frame. BarcodeIndices is
// the mutable back-reference list: every barcode that currently claims this
// blob is named here, and the consistency checker verifies both directions.
type ColorBlob struct {
	Color           int
	CenterX, CenterY float64
	Radius          float64
	BarcodeIndices  []BarcodeIndex
}

// Pos implements the small "has a center" shape distance/containment helpers
// expect (see internal/geom).
func (b ColorBlob) Pos() (float64, float64) { return b.CenterX, b.CenterY }

// CenterXY gives ColorBlob the same center accessor as the other detection
// types. ColorBlob has no Axes or OrientationRad, so it never supplies the
// ellipse side of a containment test.
func (b ColorBlob) CenterXY() (float64, float64) { return b.CenterX, b.CenterY }

// MotionBlob marks a detected region of frame-to-frame motion.
type MotionBlob struct {
	CenterX, CenterY float64
	AxisA, AxisB     float64
	Orientation      float64
}

func (m MotionBlob) Pos() (float64, float64) { return m.CenterX, m.CenterY }
func (m MotionBlob) Ellipse() Ellipse {
	return Ellipse{m.CenterX, m.CenterY, m.AxisA, m.AxisB, m.Orientation}
}
func (m MotionBlob) CenterXY() (float64, float64)   { return m.CenterX, m.CenterY }
func (m MotionBlob) Axes() (float64, float64)       { return m.AxisA, m.AxisB }
func (m MotionBlob) OrientationRad() float64        { return m.Orientation }

// BarcodeIndex names one barcode as (colorid index, position in that frame's
// per-colorid barcode slice). It is always frame-local.
type BarcodeIndex struct {
	K int
	I int
}

// MFix is the independent-bit classification mask carried by every barcode.
// Any subset of bits may be set simultaneously subject to the exclusions
// documented per-bit below; mfix == 0 means the barcode has been permanently
// destroyed (as opposed to DELETED, which is a reversible soft-delete).
type MFix uint32

const (
	// FULLFOUND: all MCHIPS blobs present.
	FULLFOUND MFix = 1 << iota
	// SHARESID: another not-deleted barcode on the same frame has the same colorid.
	SHARESID
	// SHARESBLOB: shares at least one blob with another not-deleted barcode,
	// or overlaps one geometrically.
	SHARESBLOB
	// PARTLYFOUND_FROM_TDIST: created by temporal-distance propagation.
	PARTLYFOUND_FROM_TDIST
	// DELETED: soft-deleted; may be undeleted while mfix remains nonzero.
	DELETED
	// CHOSEN: selected as part of the final per-identity trajectory.
	CHOSEN
	// FULLNOCLUSTER: fullfound and not part of a larger multi-barcode cluster.
	FULLNOCLUSTER
	// CHANGEDID: original identity before a color-change reassignment, kept for audit.
	CHANGEDID
	// VIRTUAL: synthesized with no blobs, to fill gaps in a chosen trajectory.
	VIRTUAL
	// DEBUG: marks suspicious records (oversized gap, etc).
	DEBUG
)

var mfixNames = []struct {
	bit  MFix
	name string
}{
	{FULLFOUND, "FULLFOUND"},
	{SHARESID, "SHARESID"},
	{SHARESBLOB, "SHARESBLOB"},
	{PARTLYFOUND_FROM_TDIST, "PARTLYFOUND_FROM_TDIST"},
	{DELETED, "DELETED"},
	{CHOSEN, "CHOSEN"},
	{FULLNOCLUSTER, "FULLNOCLUSTER"},
	{CHANGEDID, "CHANGEDID"},
	{VIRTUAL, "VIRTUAL"},
	{DEBUG, "DEBUG"},
}

// String renders the set bits, comma separated, or "NONE" for a permanently
// deleted barcode (mfix == 0).
func (m MFix) String() string {
	if m == 0 {
		return "NONE"
	}
	s := ""
	for _, e := range mfixNames {
		if m&e.bit != 0 {
			if s != "" {
				s += ","
			}
			s += e.name
		}
	}
	return s
}

// Legend renders one comment line per known bit, used for the barcode
// output file header.
func Legend() []string {
	lines := make([]string, 0, len(mfixNames))
	for _, e := range mfixNames {
		lines = append(lines, "#   "+e.name+" = "+itoa(int(e.bit)))
	}
	return lines
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Barcode is one frame's realization of one identity.
type Barcode struct {
	CenterX, CenterY float64
	Orientation      float64 // radians, (-pi, pi]
	MFix             MFix
	BlobIndices      []int // length MCHIPS; NoBlob for a missing position
}

func (b *Barcode) Pos() (float64, float64) { return b.CenterX, b.CenterY }
func (b *Barcode) Ellipse(axisA, axisB float64) Ellipse {
	return Ellipse{b.CenterX, b.CenterY, axisA, axisB, b.Orientation}
}
func (b *Barcode) CenterXY() (float64, float64) { return b.CenterX, b.CenterY }
func (b *Barcode) OrientationRad() float64      { return b.Orientation }

// NewBarcode allocates a barcode with an MCHIPS-length blob list, every
// position initialized to NoBlob unless blobIndices is supplied.
func NewBarcode(centerX, centerY, orientation float64, mfix MFix, mchips int, blobIndices []int) *Barcode {
	bi := make([]int, mchips)
	if len(blobIndices) > 0 {
		copy(bi, blobIndices)
		for i := len(blobIndices); i < mchips; i++ {
			bi[i] = NoBlob
		}
	} else {
		for i := range bi {
			bi[i] = NoBlob
		}
	}
	return &Barcode{CenterX: centerX, CenterY: centerY, Orientation: orientation, MFix: mfix, BlobIndices: bi}
}

// IsDeleted reports whether the soft-delete bit is set, or the barcode has
// already been permanently destroyed (mfix == 0, which is also "deleted"
// for every purpose downstream).
func (b *Barcode) IsDeleted() bool {
	return b.MFix == 0 || b.MFix&DELETED != 0
}

// FoldAngle folds a radian angle into (-pi, pi].
func FoldAngle(theta float64) float64 {
	a := math.Atan2(math.Sin(theta), math.Cos(theta))
	if a <= -math.Pi {
		a = math.Pi
	}
	return a
}

// TrajState is the lifecycle state of a Trajectory (and reused for Conflict).
type TrajState int

const (
	StateDeleted TrajState = iota
	StateInitialized
	StateForcedEnd
	StateChosen
	StateChangedID
)

func (s TrajState) String() string {
	switch s {
	case StateDeleted:
		return "DELETED"
	case StateInitialized:
		return "INITIALIZED"
	case StateForcedEnd:
		return "FORCED_END"
	case StateChosen:
		return "CHOSEN"
	case StateChangedID:
		return "CHANGEDID"
	default:
		return "UNKNOWN"
	}
}

// Trajectory is an ordered run of per-frame barcodes for one identity.
type Trajectory struct {
	K                  int // current colorid index; may differ from the one it was built under, see change-colorid
	FirstFrame         int
	BarcodeIndices     []int // barcode position per frame, starting at FirstFrame
	FullfoundCount     int
	FullnoclusterCount int
	ColorblobCount     []int // per-chip-position found count, length MCHIPS
	SharesblobCount    int
	OffsetCount        float64 // free score adjuster, decremented on shared-blob losers, never reset
	State              TrajState
}

// NewTrajectory allocates an empty, INITIALIZED trajectory starting at firstframe.
func NewTrajectory(firstFrame, k, mchips int) *Trajectory {
	return &Trajectory{
		K:              k,
		FirstFrame:     firstFrame,
		BarcodeIndices: make([]int, 0, 64),
		ColorblobCount: make([]int, mchips),
		State:          StateInitialized,
	}
}

// LastFrame returns the last frame number covered by the trajectory.
func (t *Trajectory) LastFrame() int {
	return t.FirstFrame + len(t.BarcodeIndices) - 1
}

// Conflict is a contiguous span of chosen barcodes exhibiting a problem.
type Conflict struct {
	CType          string // "gap", "overlap", "nub"
	FirstFrame     int
	CWith          map[int]struct{} // colorids this conflict is shared with, for "overlap"
	BarcodeIndices []int
	State          TrajState // reuses TrajState; DELETED marks "resolved"
}

// LastFrame returns the last frame covered by the conflict span.
func (c *Conflict) LastFrame() int {
	return c.FirstFrame + len(c.BarcodeIndices) - 1
}

// MetaTraj groups consecutive trajectories of the same identity for
// diagnostic reporting before enhancement runs.
type MetaTraj struct {
	Trajs []BarcodeIndex // (k, trajectory-index) pairs, in order
	Score float64
}
