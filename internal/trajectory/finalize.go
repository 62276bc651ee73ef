package trajectory

import (
	"math"

	"github.com/charmbracelet/log"

	"github.com/ethology-lab/trajognize/internal/barcode"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
)

// FinalizeTrajectories runs phase 10: extend chosen trajectories outward
// with a doubled frame limit, fill every remaining per-identity gap with
// interpolated virtual barcodes, enhance the virtuals with recovered
// barcodes and blobs, and refresh the shared mfix flags frame-wise.
// Grounded on algo_trajectory.py's finalize_trajectories.
func FinalizeTrajectories(state *model.State, settings config.Settings, logger *log.Logger) {
	frameLimit := settings.FindBestTrajectories.FrameLimit * 2
	virtual, rebirth := ExtendChosenTrajs(state, -1, frameLimit, settings, logger)
	logger.Info("chosen trajectories extended", "virtual", virtual, "rebirth", rebirth)

	metas := ListMetaTrajs(state, settings)
	logger.Info("meta trajectories before gap filling", "count", len(metas))

	virtual = AddVirtualBarcodesToGaps(state, settings, logger)
	logger.Info("gaps filled with virtual barcodes", "count", virtual)

	changes := EnhanceVirtualBarcodes(state, settings)
	logger.Info("virtual barcodes enhanced", "changes", changes)

	RefreshSharedFlags(state, settings)
}

// chosenTrajsByFrame returns the indices of colorid k's chosen
// trajectories, ordered by first frame.
func chosenTrajsByFrame(state *model.State, k int) []int {
	var out []int
	for i, t := range state.Trajectories[k] {
		if t.State == model.StateChosen {
			out = append(out, i)
		}
	}
	for a := 1; a < len(out); a++ {
		for b := a; b > 0 && state.Trajectories[k][out[b]].FirstFrame < state.Trajectories[k][out[b-1]].FirstFrame; b-- {
			out[b], out[b-1] = out[b-1], out[b]
		}
	}
	return out
}

// AddVirtualBarcodesToGaps fills every remaining gap between, before and
// after a colorid's chosen trajectories with VIRTUAL|CHOSEN barcodes.
// Between two trajectories center and orientation are linearly
// interpolated (orientation modulo 2*pi); before the first and after the
// last the endpoint's values are carried flat. Oversized gaps (farther
// than MaxAllowedDistBetweenTrajs, or longer than 25 frames at over
// 250 px) additionally get DEBUG for the conflict scan. Grounded on
// algo_trajectory.py's add_virtual_barcodes_to_gaps.
func AddVirtualBarcodesToGaps(state *model.State, settings config.Settings, logger *log.Logger) int {
	virtual := 0
	nFrames := state.FrameCount()
	for k := range state.Trajectories {
		chosen := chosenTrajsByFrame(state, k)
		if len(chosen) == 0 {
			continue
		}

		// prepend flat virtuals before the first chosen trajectory.
		first := state.Trajectories[k][chosen[0]]
		if first.FirstFrame > 0 {
			bc := edgeBarcode(state, first, k, false)
			prefix := make([]int, first.FirstFrame)
			for frameNum := 0; frameNum < first.FirstFrame; frameNum++ {
				nb := model.NewBarcode(bc.CenterX, bc.CenterY, bc.Orientation,
					model.VIRTUAL|model.CHOSEN, settings.MCHIPS, nil)
				state.Frames[frameNum].Barcodes[k] = append(state.Frames[frameNum].Barcodes[k], nb)
				prefix[frameNum] = len(state.Frames[frameNum].Barcodes[k]) - 1
				state.TrajsOnFrame[frameNum][k][chosen[0]] = struct{}{}
				virtual++
			}
			first.BarcodeIndices = append(prefix, first.BarcodeIndices...)
			first.FirstFrame = 0
		}

		// interpolate between consecutive chosen trajectories.
		for c := 0; c+1 < len(chosen); c++ {
			t := state.Trajectories[k][chosen[c]]
			next := state.Trajectories[k][chosen[c+1]]
			a := t.LastFrame()
			b := next.FirstFrame
			if b <= a+1 {
				continue
			}
			bcA := edgeBarcode(state, t, k, true)
			bcB := edgeBarcode(state, next, k, false)
			dist := geom.Distance(bcA, bcB)
			debug := false
			if dist > MaxAllowedDistBetweenTrajs(a, b, true) {
				logger.Warn("large distance between neighboring chosen trajectories",
					"colorid", settings.ColorIDs[k].StrID, "dist", dist, "from", a, "to", b)
				debug = true
			}
			if b-a > 25 && dist > 250 {
				debug = true
			}
			dx := (bcB.CenterX - bcA.CenterX) / float64(b-a)
			dy := (bcB.CenterY - bcA.CenterY) / float64(b-a)
			do := bcB.Orientation - bcA.Orientation
			for do > math.Pi {
				do -= 2 * math.Pi
			}
			for do < -math.Pi {
				do += 2 * math.Pi
			}
			do /= float64(b - a)
			j := 1
			for frameNum := a + 1; frameNum < b; frameNum++ {
				mfix := model.VIRTUAL | model.CHOSEN
				if debug {
					mfix |= model.DEBUG
				}
				nb := model.NewBarcode(bcA.CenterX+float64(j)*dx, bcA.CenterY+float64(j)*dy,
					model.FoldAngle(bcA.Orientation+float64(j)*do), mfix, settings.MCHIPS, nil)
				state.Frames[frameNum].Barcodes[k] = append(state.Frames[frameNum].Barcodes[k], nb)
				t.BarcodeIndices = append(t.BarcodeIndices, len(state.Frames[frameNum].Barcodes[k])-1)
				state.TrajsOnFrame[frameNum][k][chosen[c]] = struct{}{}
				virtual++
				j++
			}
		}

		// append flat virtuals after the last chosen trajectory.
		last := state.Trajectories[k][chosen[len(chosen)-1]]
		if last.LastFrame() < nFrames-1 {
			bc := edgeBarcode(state, last, k, true)
			for frameNum := last.LastFrame() + 1; frameNum < nFrames; frameNum++ {
				nb := model.NewBarcode(bc.CenterX, bc.CenterY, bc.Orientation,
					model.VIRTUAL|model.CHOSEN, settings.MCHIPS, nil)
				state.Frames[frameNum].Barcodes[k] = append(state.Frames[frameNum].Barcodes[k], nb)
				last.BarcodeIndices = append(last.BarcodeIndices, len(state.Frames[frameNum].Barcodes[k])-1)
				state.TrajsOnFrame[frameNum][k][chosen[len(chosen)-1]] = struct{}{}
				virtual++
			}
		}
	}
	return virtual
}

// EnhanceVirtualBarcodes sweeps every chosen trajectory and tries to turn
// synthetic data back into measured data: a blobless VIRTUAL barcode
// adopts the nearest free same-colorid barcode (permanently deleting the
// donor), and a chosen partial barcode adopts the nearest unused blob of
// each still-missing color when it lies within MAX_INRAT_DIST of its
// predicted chip position. Returns the number of changes. Grounded on
// algo_trajectory.py's enhance_virtual_barcodes.
func EnhanceVirtualBarcodes(state *model.State, settings config.Settings) int {
	alphabet := config.NewColorAlphabet(settings.ColorIDs)
	changes := 0
	for k := range state.Trajectories {
		strid := settings.ColorIDs[k].StrID
		for _, trajIdx := range chosenTrajsByFrame(state, k) {
			t := state.Trajectories[k][trajIdx]
			for offset, j := range t.BarcodeIndices {
				frameNum := t.FirstFrame + offset
				frame := state.Frames[frameNum]
				bc := frame.Barcodes[k][j]

				if bc.MFix&model.VIRTUAL != 0 && countFilled(bc) == 0 {
					minDist := MaxAllowedDistBetweenTrajs(0, 0, true)
					cbi := -1
					for bi := range frame.Barcodes[k] {
						if bi == j || !barcode.IsFree(frame.Barcodes, k, bi, frame.ColorBlobs) {
							continue
						}
						if d := geom.Distance(bc, frame.Barcodes[k][bi]); d < minDist {
							minDist = d
							cbi = bi
						}
					}
					if cbi >= 0 {
						donor := frame.Barcodes[k][cbi]
						bc.CenterX, bc.CenterY = donor.CenterX, donor.CenterY
						bc.Orientation = donor.Orientation
						bc.MFix = donor.MFix &^ model.DELETED
						bc.MFix |= model.CHOSEN
						bc.BlobIndices = append([]int(nil), donor.BlobIndices...)
						barcode.UpdateBlobBarcodeIndices(bc, k, j, frame.ColorBlobs)
						for _, blobi := range donor.BlobIndices {
							if blobi != model.NoBlob {
								barcode.RemoveBlobBarcodeIndex(&frame.ColorBlobs[blobi], k, cbi)
							}
						}
						donor.MFix = 0
						barcode.CalculateParams(bc, strid, frame.ColorBlobs, settings.AvgInRatDist)
						if bc.MFix&model.FULLFOUND != 0 {
							t.FullfoundCount++
							if bc.MFix&model.FULLNOCLUSTER != 0 {
								t.FullnoclusterCount++
							}
						}
						changes++
					}
				}

				if bc.MFix&model.CHOSEN != 0 && countFilled(bc) > 0 && countFilled(bc) < settings.MCHIPS {
					for p, blobi := range bc.BlobIndices {
						if blobi != model.NoBlob {
							continue
						}
						want, ok := alphabet.ToInt(rune(strid[p]))
						if !ok {
							continue
						}
						best := -1
						minDist := settings.MaxInRatDist
						for bi := range frame.ColorBlobs {
							blob := frame.ColorBlobs[bi]
							if blob.Color != want {
								continue
							}
							if len(barcode.NotDeleted(blob.BarcodeIndices, frame.Barcodes, 0)) > 0 {
								continue
							}
							if d := DistanceAtPosition(bc, p, blob, settings.AvgInRatDist); d < minDist {
								minDist = d
								best = bi
							}
						}
						if best >= 0 {
							bc.BlobIndices[p] = best
							barcode.UpdateBlobBarcodeIndices(bc, k, j, frame.ColorBlobs)
							t.ColorblobCount[p]++
							changes++
							if countFilled(bc) == settings.MCHIPS {
								bc.MFix &^= model.PARTLYFOUND_FROM_TDIST
								bc.MFix |= model.FULLFOUND
								t.FullfoundCount++
							} else {
								bc.MFix |= model.PARTLYFOUND_FROM_TDIST
							}
							barcode.CalculateParams(bc, strid, frame.ColorBlobs, settings.AvgInRatDist)
						}
					}
				}
			}
		}
	}
	return changes
}

func countFilled(bc *model.Barcode) int {
	n := 0
	for _, i := range bc.BlobIndices {
		if i != model.NoBlob {
			n++
		}
	}
	return n
}

// BlobCenterOnBarcode predicts where the chip at position sits, given the
// barcode's center, orientation and the average chip spacing. Orientation
// points from the last chip toward the front (position 0), so positions
// past the chain midpoint lie against the orientation vector.
func BlobCenterOnBarcode(bc *model.Barcode, position int, avgInRatDist float64) (float64, float64) {
	d := float64(position) - float64(len(bc.BlobIndices)-1)/2
	return bc.CenterX - d*avgInRatDist*math.Cos(bc.Orientation),
		bc.CenterY - d*avgInRatDist*math.Sin(bc.Orientation)
}

// DistanceAtPosition is the distance between a blob and a barcode's
// predicted chip position.
func DistanceAtPosition(bc *model.Barcode, position int, blob model.ColorBlob, avgInRatDist float64) float64 {
	cx, cy := BlobCenterOnBarcode(bc, position, avgInRatDist)
	return math.Hypot(cx-blob.CenterX, cy-blob.CenterY)
}

// RefreshSharedFlags clears and recomputes SHARESID/SHARESBLOB on every
// frame from the current barcode population.
func RefreshSharedFlags(state *model.State, settings config.Settings) {
	for _, frame := range state.Frames {
		for _, bcs := range frame.Barcodes {
			for _, bc := range bcs {
				bc.MFix &^= model.SHARESID | model.SHARESBLOB
			}
		}
		barcode.SetSharedMFixFlags(frame.Barcodes, frame.ColorBlobs, settings.MaxInRatDist, settings.MCHIPS)
	}
}
