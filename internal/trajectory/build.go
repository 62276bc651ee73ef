package trajectory

import (
	"github.com/ethology-lab/trajognize/internal/barcode"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
)

// sharesOrOverlaps reports whether two barcodes on the same frame name a
// common blob or overlap geometrically, the relation behind the SHARESBLOB
// flag and the sharesblob trajectory counter.
func sharesOrOverlaps(a, b *model.Barcode, settings config.Settings) bool {
	return barcode.SharesAnyBlob(a, b) || barcode.CouldBeSharesBlob(a, b, settings.MaxInRatDist, settings.MCHIPS)
}

// BarcodeFitsToTrajLast reports whether bc could be the next element of a
// trajectory whose last element is last. Mirrors
// algo_trajectory.py's barcode_fits_to_trajlast: a static distance gate at
// MAX_PERFRAME_DIST, then a motion-corroborated gate at MAX_PERFRAME_DIST_MD
// using the motion blobs under either barcode's blobs.
func BarcodeFitsToTrajLast(
	last, bc *model.Barcode,
	lastFrame, frame *model.Frame,
	settings config.Settings,
) bool {
	d := geom.Distance(last, bc)
	if d <= settings.MaxPerframeDist {
		return true
	}
	if d > settings.MaxPerframeDistMD {
		return false
	}
	md := mdBlobUnder(bc, frame)
	lastMD := mdBlobUnder(last, lastFrame)
	switch {
	case md != nil && lastMD != nil:
		// both frames show motion here; rarely this far apart otherwise.
		return true
	case lastMD != nil && geom.PointInsideEllipse(bc, *lastMD, lastMD.AxisA, lastMD.AxisB, lastMD.Orientation, 1.2):
		return true
	case md != nil && geom.PointInsideEllipse(last, *md, md.AxisA, md.AxisB, md.Orientation, 1.2):
		return true
	}
	return false
}

// mdBlobUnder returns the first motion blob found under any of the
// barcode's blobs, or nil.
func mdBlobUnder(bc *model.Barcode, frame *model.Frame) *model.MotionBlob {
	for _, bi := range bc.BlobIndices {
		if bi == model.NoBlob || bi >= len(frame.MDIndex) {
			continue
		}
		if mi := frame.MDIndex[bi]; mi > -1 {
			return &frame.MDBlobs[mi]
		}
	}
	return nil
}

// InitializeTrajectoriesFrame runs phase 8's build step on one frame:
// every surviving barcode either extends the unique trajectory it fits, or
// branches a new trajectory if that trajectory was already extended this
// frame, or starts a fresh one when nothing fits. A barcode enters at most
// one trajectory per frame. Must be called frame by frame in order.
// Grounded on algo_trajectory.py's initialize_trajectories.
func InitializeTrajectoriesFrame(state *model.State, frameNum int, settings config.Settings) {
	frame := state.Frames[frameNum]
	if frameNum == 0 {
		for k, bcs := range frame.Barcodes {
			for i, bc := range bcs {
				if bc.IsDeleted() {
					continue
				}
				StartNewTraj(state, k, frameNum, i, bc, settings)
			}
		}
		return
	}

	prev := state.Frames[frameNum-1]
	for k, bcs := range frame.Barcodes {
		for i, bc := range bcs {
			if bc.IsDeleted() {
				continue
			}
			found := 0
			for trajIdx := range state.TrajsOnFrame[frameNum-1][k] {
				t := state.Trajectories[k][trajIdx]
				if t.State != model.StateInitialized {
					continue
				}
				_, already := state.TrajsOnFrame[frameNum][k][trajIdx]
				lastIdx := t.BarcodeIndices[len(t.BarcodeIndices)-1]
				if already {
					// traj was already extended this frame; compare against
					// its previous-frame element instead.
					lastIdx = t.BarcodeIndices[len(t.BarcodeIndices)-2]
				}
				last := prev.Barcodes[k][lastIdx]
				if !BarcodeFitsToTrajLast(last, bc, prev, frame, settings) {
					continue
				}
				found++
				if found > 1 {
					continue // barcode already placed somewhere this frame
				}
				if !already {
					AppendBarcodeToTraj(state, k, trajIdx, frameNum, i, bc)
				} else {
					// split: the traj was extended by another barcode, so
					// this one starts a new branch.
					StartNewTraj(state, k, frameNum, i, bc, settings)
				}
			}
			if found == 0 {
				StartNewTraj(state, k, frameNum, i, bc, settings)
			}
		}
	}
}

// AppendBarcodeToTraj records one frame's barcode onto the end of a
// trajectory, updating the running quality counters Score reads and the
// TrajsOnFrame index. Grounded on algo_trajectory.py's
// append_barcode_to_traj.
func AppendBarcodeToTraj(state *model.State, k, trajIdx, frameNum, bcIndex int, bc *model.Barcode) {
	t := state.Trajectories[k][trajIdx]
	t.BarcodeIndices = append(t.BarcodeIndices, bcIndex)
	if bc.MFix&model.FULLFOUND != 0 {
		t.FullfoundCount++
		if bc.MFix&model.FULLNOCLUSTER != 0 {
			t.FullnoclusterCount++
		}
	}
	if bc.MFix&model.SHARESBLOB != 0 {
		t.SharesblobCount++
	}
	for p, i := range bc.BlobIndices {
		if i != model.NoBlob {
			t.ColorblobCount[p]++
		}
	}
	if state.TrajsOnFrame[frameNum][k] == nil {
		state.TrajsOnFrame[frameNum][k] = make(map[int]struct{})
	}
	state.TrajsOnFrame[frameNum][k][trajIdx] = struct{}{}
}

// StartNewTraj allocates a trajectory for colorid k starting at frameNum
// with bc as its first element, and returns its index. Grounded on
// algo_trajectory.py's start_new_traj.
func StartNewTraj(state *model.State, k, frameNum, bcIndex int, bc *model.Barcode, settings config.Settings) int {
	t := model.NewTrajectory(frameNum, k, settings.MCHIPS)
	state.Trajectories[k] = append(state.Trajectories[k], t)
	trajIdx := len(state.Trajectories[k]) - 1
	AppendBarcodeToTraj(state, k, trajIdx, frameNum, bcIndex, bc)
	return trajIdx
}

// MarkBarcodesFromTrajs propagates trajectory states down to barcode mfix
// bits: barcodes of not-chosen trajectories get DELETED, barcodes of chosen
// trajectories get CHOSEN (and DELETED cleared). Returns (chosen, deleted)
// counts. Grounded on algo_trajectory.py's mark_barcodes_from_trajs.
func MarkBarcodesFromTrajs(state *model.State, only int) (chosen, deleted int) {
	for k := range state.Trajectories {
		if only >= 0 && k != only {
			continue
		}
		for _, t := range state.Trajectories[k] {
			if t.State == model.StateChosen {
				continue
			}
			for offset, bi := range t.BarcodeIndices {
				bc := state.Frames[t.FirstFrame+offset].Barcodes[k][bi]
				if bc.MFix != 0 && bc.MFix&model.DELETED == 0 {
					bc.MFix |= model.DELETED
					deleted++
				}
			}
		}
		for _, t := range state.Trajectories[k] {
			if t.State != model.StateChosen {
				continue
			}
			for offset, bi := range t.BarcodeIndices {
				bc := state.Frames[t.FirstFrame+offset].Barcodes[k][bi]
				bc.MFix &^= model.DELETED
				bc.MFix |= model.CHOSEN
				chosen++
			}
		}
	}
	return chosen, deleted
}
