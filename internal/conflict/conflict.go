// Package conflict implements the phase-10 conflict database: it
// enumerates the problem spans left in the chosen output (oversized gaps,
// shared-blob overlaps, unclaimed barcode runs) and attempts to resolve the
// overlap conflicts by swapping shared blobs for nearby unused ones.
// Grounded on trajognize's algo_conflict.py.
package conflict

import (
	"github.com/charmbracelet/log"

	"github.com/ethology-lab/trajognize/internal/barcode"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
	"github.com/ethology-lab/trajognize/internal/trajectory"
)

// Database holds the per-colorid conflict lists of one scan.
type Database struct {
	Gap     [][]*model.Conflict
	Overlap [][]*model.Conflict
	Nub     [][]*model.Conflict
	// Resolved counts the overlap-conflict frames the resolver fixed.
	Resolved int
}

// GetGapConflicts returns, per colorid, the contiguous runs of chosen
// barcodes stamped DEBUG by the virtual-gap filler (too large a spatial
// gap between neighboring chosen trajectories). Grounded on
// algo_conflict.py's get_gap_conflicts.
func GetGapConflicts(state *model.State) [][]*model.Conflict {
	conflicts := make([][]*model.Conflict, state.NumColorIDs())
	for frameNum, frame := range state.Frames {
		chosen := barcode.ChosenIndices(frame.Barcodes)
		for k, i := range chosen {
			if i < 0 {
				continue
			}
			bc := frame.Barcodes[k][i]
			if bc.MFix&model.DEBUG == 0 {
				continue
			}
			appendToRun(&conflicts[k], "gap", frameNum, i, nil)
		}
	}
	return conflicts
}

// GetOverlapConflicts returns, per colorid, the contiguous runs of chosen
// barcodes flagged SHARESBLOB, recording which other chosen colorids each
// run collides with. Grounded on algo_conflict.py's get_overlap_conflicts.
func GetOverlapConflicts(state *model.State, settings config.Settings) [][]*model.Conflict {
	conflicts := make([][]*model.Conflict, state.NumColorIDs())
	for frameNum, frame := range state.Frames {
		chosen := barcode.ChosenIndices(frame.Barcodes)
		for k, i := range chosen {
			if i < 0 {
				continue
			}
			bc := frame.Barcodes[k][i]
			if bc.MFix&model.SHARESBLOB == 0 {
				continue
			}
			cwith := make(map[int]struct{})
			for kk, ii := range chosen {
				if kk == k || ii < 0 {
					continue
				}
				other := frame.Barcodes[kk][ii]
				if other.MFix&model.SHARESBLOB != 0 &&
					(barcode.SharesAnyBlob(bc, other) || barcode.CouldBeSharesBlob(bc, other, settings.MaxInRatDist, settings.MCHIPS)) {
					cwith[kk] = struct{}{}
				}
			}
			appendToRun(&conflicts[k], "overlap", frameNum, i, cwith)
		}
	}
	return conflicts
}

// GetNubConflicts returns, per colorid, runs of free barcodes belonging to
// soft-deleted trajectories that no chosen barcode claims and that do not
// overlap any chosen identity on their frames: detections the selection
// left entirely unexplained. Grounded on algo_conflict.py's
// get_nub_conflicts.
func GetNubConflicts(state *model.State, settings config.Settings) [][]*model.Conflict {
	conflicts := make([][]*model.Conflict, state.NumColorIDs())
	for k := range state.Trajectories {
		for _, t := range state.Trajectories[k] {
			if t.State != model.StateDeleted {
				continue
			}
			for offset, i := range t.BarcodeIndices {
				frameNum := t.FirstFrame + offset
				frame := state.Frames[frameNum]
				if !barcode.IsFree(frame.Barcodes, k, i, frame.ColorBlobs) {
					continue
				}
				bc := frame.Barcodes[k][i]
				chosen := barcode.ChosenIndices(frame.Barcodes)
				overlapsChosen := false
				for kk, ii := range chosen {
					if ii < 0 {
						continue
					}
					if barcode.CouldBeSharesBlob(bc, frame.Barcodes[kk][ii], settings.MaxInRatDist, settings.MCHIPS) {
						overlapsChosen = true
						break
					}
				}
				if overlapsChosen {
					continue
				}
				appendToRun(&conflicts[k], "nub", frameNum, i, nil)
			}
		}
	}
	return conflicts
}

// appendToRun extends the current contiguous conflict run of a colorid, or
// opens a new one when the last run ended before frameNum-1.
func appendToRun(runs *[]*model.Conflict, ctype string, frameNum, i int, cwith map[int]struct{}) {
	n := len(*runs)
	if n == 0 || (*runs)[n-1].LastFrame() < frameNum-1 {
		*runs = append(*runs, &model.Conflict{
			CType:      ctype,
			FirstFrame: frameNum,
			CWith:      cwith,
			State:      model.StateInitialized,
		})
		n++
	} else if cwith != nil {
		for kk := range cwith {
			if (*runs)[n-1].CWith == nil {
				(*runs)[n-1].CWith = make(map[int]struct{})
			}
			(*runs)[n-1].CWith[kk] = struct{}{}
		}
	}
	(*runs)[n-1].BarcodeIndices = append((*runs)[n-1].BarcodeIndices, i)
}

// ResolveOverlapConflicts walks every overlap conflict and, frame by
// frame, tries to swap each shared blob for a nearby unused blob of the
// same color that sits under the previous frame's chosen barcode position.
// A swap is accepted only if the resulting chain (when complete) still
// passes the blob-chain appropriateness check, or (when partial) every
// remaining blob stays under the previous barcode's ellipse. A conflict
// whose every frame resolves is marked resolved (state DELETED). Returns
// the number of resolved frames. Grounded on algo_conflict.py's
// resolve_overlap_conflicts.
func ResolveOverlapConflicts(state *model.State, conflicts [][]*model.Conflict, settings config.Settings) int {
	resolved := 0
	for k := range conflicts {
		strid := settings.ColorIDs[k].StrID
		for _, c := range conflicts[k] {
			if c.State == model.StateDeleted {
				continue
			}
			if c.FirstFrame == 0 {
				continue // no previous frame to anchor the swap on
			}
			frameNum := c.FirstFrame - 1
			prevChosen := barcode.ChosenIndices(state.Frames[frameNum].Barcodes)
			oldResolved := resolved
			for _, i := range c.BarcodeIndices {
				frameNum++
				oldChosen := prevChosen
				frame := state.Frames[frameNum]
				prevChosen = barcode.ChosenIndices(frame.Barcodes)
				if oldChosen[k] < 0 {
					continue
				}
				oldBC := state.Frames[frameNum-1].Barcodes[k][oldChosen[k]]
				bc := frame.Barcodes[k][i]
				nub := barcode.NotUsedBlobIndices(frame.ColorBlobs, frame.Barcodes)

				allShared, allResolved := 0, 0
				for kk := range c.CWith {
					ii := prevChosen[kk]
					if ii < 0 {
						continue
					}
					with := frame.Barcodes[kk][ii]
					if with.MFix&model.SHARESBLOB == 0 {
						continue
					}
					for p, sbi := range bc.BlobIndices {
						if sbi == model.NoBlob || !containsInt(with.BlobIndices, sbi) {
							continue
						}
						allShared++
						if trySwapSharedBlob(state, frameNum, k, i, p, sbi, nub, oldBC, strid, settings) {
							allResolved++
						}
					}
				}
				if allShared == allResolved {
					resolved++
					bc.MFix &^= model.SHARESBLOB
				}
			}
			if resolved-oldResolved == frameNum-c.FirstFrame+1 {
				c.State = model.StateDeleted
			}
		}
	}
	return resolved
}

// trySwapSharedBlob attempts to replace the shared blob at chip position p
// of barcode (k,i) with an unused blob of the same color that lies under
// the previous frame's barcode ellipse and close to the predicted chip
// position. Returns true on success.
func trySwapSharedBlob(
	state *model.State,
	frameNum, k, i, p, sharedBlob int,
	nub []int,
	oldBC *model.Barcode,
	strid string,
	settings config.Settings,
) bool {
	frame := state.Frames[frameNum]
	bc := frame.Barcodes[k][i]
	shared := frame.ColorBlobs[sharedBlob]
	axisA := settings.MaxInRatDist * float64(settings.MCHIPS) / 2
	axisB := settings.MaxInRatDist / 2

	for _, bi := range nub {
		blob := frame.ColorBlobs[bi]
		if blob.Color != shared.Color {
			continue
		}
		if !geom.PointInsideEllipse(blob, oldBC, axisA, axisB, oldBC.Orientation, 1.2) {
			continue
		}
		if trajectory.DistanceAtPosition(bc, p, blob, settings.AvgInRatDist) > settings.MaxInRatDist {
			continue
		}
		trial := append([]int(nil), bc.BlobIndices...)
		trial[p] = bi
		complete := true
		for _, x := range trial {
			if x == model.NoBlob {
				complete = false
				break
			}
		}
		if complete {
			chain := make([]geom.Positioned, len(trial))
			for idx, x := range trial {
				chain[idx] = frame.ColorBlobs[x]
			}
			if !geom.IsBlobChainAppropriate(chain, settings.MaxInRatDist+10) {
				continue
			}
		} else {
			// partial: accept only if every remaining blob is still under
			// the previous barcode, i.e. there was no motion.
			skip := false
			for _, x := range trial {
				if x == model.NoBlob {
					continue
				}
				if !geom.PointInsideEllipse(frame.ColorBlobs[x], oldBC, axisA, axisB, oldBC.Orientation, 1.2) {
					skip = true
					break
				}
			}
			if skip {
				continue
			}
		}
		barcode.RemoveBlobBarcodeIndex(&frame.ColorBlobs[sharedBlob], k, i)
		bc.BlobIndices[p] = bi
		barcode.UpdateBlobBarcodeIndices(bc, k, i, frame.ColorBlobs)
		barcode.CalculateParams(bc, strid, frame.ColorBlobs, settings.AvgInRatDist)
		return true
	}
	return false
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// CreateDatabaseAndTryResolve runs the full phase-10 conflict scan:
// gap conflicts, overlap conflicts (with a resolution attempt), and
// not-used-barcode conflicts. Grounded on algo_conflict.py's
// create_conflict_database_and_try_resolve.
func CreateDatabaseAndTryResolve(state *model.State, settings config.Settings, logger *log.Logger) *Database {
	numChosen := 0
	for _, frame := range state.Frames {
		for _, i := range barcode.ChosenIndices(frame.Barcodes) {
			if i >= 0 {
				numChosen++
			}
		}
	}
	logger.Info("conflict scan starting", "chosen", numChosen)
	db := &Database{}
	if numChosen == 0 {
		return db
	}

	db.Gap = GetGapConflicts(state)
	logger.Info("gap conflicts", "barcodes", countConflictBarcodes(db.Gap))

	db.Overlap = GetOverlapConflicts(state, settings)
	logger.Info("overlap conflicts", "barcodes", countConflictBarcodes(db.Overlap))
	db.Resolved = ResolveOverlapConflicts(state, db.Overlap, settings)
	logger.Info("overlap conflicts resolved", "frames", db.Resolved)

	db.Nub = GetNubConflicts(state, settings)
	logger.Info("not-used-barcode conflicts", "barcodes", countConflictBarcodes(db.Nub))
	return db
}

func countConflictBarcodes(conflicts [][]*model.Conflict) int {
	n := 0
	for _, perColor := range conflicts {
		for _, c := range perColor {
			n += len(c.BarcodeIndices)
		}
	}
	return n
}
