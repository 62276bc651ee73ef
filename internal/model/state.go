package model

// Frame bundles everything known about a single video frame: the blob
// detections and the barcodes built on top of them, indexed by colorid.
type Frame struct {
	ColorBlobs []ColorBlob
	MDBlobs    []MotionBlob
	// Barcodes[k] is the list of barcodes for colorid k on this frame.
	Barcodes [][]*Barcode
	// SpatialNear[i][0] / [1] are blob indices within MAX_INRAT_DIST / 2*MAX_INRAT_DIST of blob i.
	SpatialNear [][2][]int
	// TemporalPrev[i] is the list of previous-frame blob indices considered the same physical dot as blob i.
	TemporalPrev [][]int
	// ClusterOf[i] is the cluster index of blob i (see internal/index).
	ClusterOf []int
	Clusters  [][]int
	// MDIndex[i] is the motion blob index under blob i, or -1.
	MDIndex []int
}

// NewFrame allocates a Frame with nColorIDs empty barcode buckets.
func NewFrame(nColorIDs int) *Frame {
	return &Frame{Barcodes: make([][]*Barcode, nColorIDs)}
}

// State is the full in-memory dataset threaded through every phase of the
// pipeline: one Variables-equivalent bundle passed as an explicit context
// parameter rather than held in package-level globals.
type State struct {
	ColorIDs     []string // colorids[k] is e.g. "RGB"
	Frames       []*Frame
	Trajectories [][]*Trajectory // Trajectories[k] = trajectories of colorid k
	// TrajsOnFrame[frame][k] = set of trajectory indices of colorid k covering that frame.
	TrajsOnFrame []map[int]map[int]struct{}
}

// NewState allocates an empty State for nFrames frames and the given colorid table.
func NewState(colorIDs []string, nFrames int) *State {
	s := &State{
		ColorIDs:     colorIDs,
		Frames:       make([]*Frame, nFrames),
		Trajectories: make([][]*Trajectory, len(colorIDs)),
		TrajsOnFrame: make([]map[int]map[int]struct{}, nFrames),
	}
	for f := 0; f < nFrames; f++ {
		s.Frames[f] = NewFrame(len(colorIDs))
		s.TrajsOnFrame[f] = make(map[int]map[int]struct{}, len(colorIDs))
		for k := range colorIDs {
			s.TrajsOnFrame[f][k] = make(map[int]struct{})
		}
	}
	return s
}

// FrameCount returns the number of frames held by the state.
func (s *State) FrameCount() int { return len(s.Frames) }

// NumColorIDs returns the number of identities in the colorid table.
func (s *State) NumColorIDs() int { return len(s.ColorIDs) }
