package trajectory

import (
	"strings"

	"github.com/ethology-lab/trajognize/internal/barcode"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

// ChangeColorID rewrites a trajectory previously flagged for a color change
// (MarkTrajChosen retargeted its K to the destination colorid) into an
// actual trajectory of that colorid. For every frame the original barcode
// is permanently deleted (mfix = 0) and a new PARTLYFOUND barcode is
// created under the destination colorid with the mismatching chip dropped
// and a missing sentinel inserted at its destination position, reversing
// the blob list when the colorid overlap is reversed. Blob back-references
// are repointed and barcode parameters recomputed. Grounded on
// algo_trajectory.py's change_colorid.
func ChangeColorID(state *model.State, k, trajIdx int, settings config.Settings) *model.Trajectory {
	t := state.Trajectories[k][trajIdx]
	kk := t.K // destination colorid, set by MarkTrajChosen
	if kk == k {
		return nil // no retarget happened, nothing to rewrite
	}
	t.State = model.StateChangedID
	strid := settings.ColorIDs[k].StrID
	newStrid := settings.ColorIDs[kk].StrID
	mchips := settings.MCHIPS

	fromC, toC, reversed := colorChangeMapping(strid, newStrid, mchips)

	var newTraj *model.Trajectory
	newTrajIdx := -1
	for offset, bi := range t.BarcodeIndices {
		frameNum := t.FirstFrame + offset
		frame := state.Frames[frameNum]
		old := frame.Barcodes[k][bi]

		blobIndices := make([]int, 0, mchips)
		blobIndices = append(blobIndices, old.BlobIndices...)
		// drop the mismatching chip and open a slot at its new position.
		blobIndices = append(blobIndices[:fromC], blobIndices[fromC+1:]...)
		blobIndices = append(blobIndices, 0)
		copy(blobIndices[toC+1:], blobIndices[toC:])
		blobIndices[toC] = model.NoBlob
		if reversed {
			for i, j := 0, len(blobIndices)-1; i < j; i, j = i+1, j-1 {
				blobIndices[i], blobIndices[j] = blobIndices[j], blobIndices[i]
			}
		}

		nb := model.NewBarcode(old.CenterX, old.CenterY, old.Orientation,
			model.PARTLYFOUND_FROM_TDIST|model.CHANGEDID, mchips, blobIndices)
		frame.Barcodes[kk] = append(frame.Barcodes[kk], nb)
		ii := len(frame.Barcodes[kk]) - 1

		// permanent deletion of the original, with back-reference cleanup.
		for _, blobi := range old.BlobIndices {
			if blobi != model.NoBlob {
				barcode.RemoveBlobBarcodeIndex(&frame.ColorBlobs[blobi], k, bi)
			}
		}
		old.MFix = 0

		barcode.UpdateBlobBarcodeIndices(nb, kk, ii, frame.ColorBlobs)
		barcode.CalculateParams(nb, newStrid, frame.ColorBlobs, settings.AvgInRatDist)

		if newTraj == nil {
			newTrajIdx = StartNewTraj(state, kk, frameNum, ii, nb, settings)
			newTraj = state.Trajectories[kk][newTrajIdx]
		} else {
			AppendBarcodeToTraj(state, kk, newTrajIdx, frameNum, ii, nb)
		}
		// the frame no longer hosts the old trajectory under k.
		delete(state.TrajsOnFrame[frameNum][k], trajIdx)
	}
	if newTraj != nil {
		newTraj.State = model.StateChosen
	}
	return newTraj
}

// colorChangeMapping determines which chip position of the source colorid
// is dropped (fromC), where the missing sentinel lands in the destination
// (toC), and whether the overlap is against the reversed destination.
// Assumes CouldBeAnotherColorID already accepted the pair; palindromic
// MCHIPS-1 overlaps are unsupported, matching the data-model assumption
// that every colorid and its reverse are distinct.
func colorChangeMapping(strid, newStrid string, mchips int) (fromC, toC int, reversed bool) {
	rev := reverse(newStrid)
	head := strid[1:]
	tail := strid[:mchips-1]
	// the kept token sits either at the start of the destination (the open
	// slot goes to the end) or at the end (the open slot goes to the front).
	slot := func(idx int) int {
		if idx == 0 {
			return mchips - 1
		}
		return 0
	}
	switch {
	case strings.Contains(newStrid, head):
		fromC, toC = 0, slot(strings.Index(newStrid, head))
	case strings.Contains(rev, head):
		reversed = true
		fromC, toC = 0, slot(strings.Index(rev, head))
	case strings.Contains(newStrid, tail):
		fromC, toC = mchips-1, slot(strings.Index(newStrid, tail))
	case strings.Contains(rev, tail):
		reversed = true
		fromC, toC = mchips-1, slot(strings.Index(rev, tail))
	}
	return fromC, toC, reversed
}
