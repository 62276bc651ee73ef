package trajectory

import (
	"github.com/ethology-lab/trajognize/internal/barcode"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
)

// FillConnectionWithNub walks an established connection chain and fills the
// frame gaps between consecutive chain elements. On each intermediate frame
// it first tries to adopt a free same-colorid barcode (one whose blobs no
// live barcode claims) close to both surrounding anchors, undeleting it and
// appending it to the preceding trajectory; failing that it synthesizes a
// VIRTUAL|CHOSEN barcode carrying the preceding barcode's center and
// orientation. Returns (adopted, virtual) counts. Grounded on
// algo_trajectory.py's fill_connection_with_nub.
func FillConnectionWithNub(state *model.State, conn []model.BarcodeIndex, k int, settings config.Settings) (found, virtual int) {
	if len(conn) < 2 {
		return 0, 0
	}
	oldKK, oldJ := conn[0].K, conn[0].I
	oldTraj := state.Trajectories[oldKK][oldJ]
	for _, c := range conn[1:] {
		t := state.Trajectories[c.K][c.I]
		endFrame := oldTraj.LastFrame()
		startFrame := t.FirstFrame
		if startFrame-endFrame > 1 {
			oldBC := edgeBarcode(state, oldTraj, oldTraj.K, true)
			startBC := edgeBarcode(state, t, t.K, false)
			for frameNum := endFrame + 1; frameNum < startFrame; frameNum++ {
				frame := state.Frames[frameNum]
				adopted := false

				minDist := MaxAllowedDistBetweenTrajs(0, 0, true)
				cbi := -1
				for bi := range frame.Barcodes[oldKK] {
					if !barcode.IsFree(frame.Barcodes, oldKK, bi, frame.ColorBlobs) {
						continue
					}
					cand := frame.Barcodes[oldKK][bi]
					d := geom.Distance(oldBC, cand)
					if d < minDist && geom.Distance(cand, startBC) < MaxAllowedDistBetweenTrajs(0, 0, oldKK == c.K) {
						minDist = d
						cbi = bi
					}
				}
				if cbi >= 0 {
					cand := frame.Barcodes[oldKK][cbi]
					cand.MFix &^= model.DELETED
					barcode.UpdateBlobBarcodeIndices(cand, oldKK, cbi, frame.ColorBlobs)
					AppendBarcodeToTraj(state, oldKK, oldJ, frameNum, cbi, cand)
					oldBC = cand
					adopted = true
					found++
				}

				if !adopted {
					nb := model.NewBarcode(oldBC.CenterX, oldBC.CenterY, oldBC.Orientation,
						model.VIRTUAL|model.CHOSEN, settings.MCHIPS, nil)
					frame.Barcodes[oldKK] = append(frame.Barcodes[oldKK], nb)
					AppendBarcodeToTraj(state, oldKK, oldJ, frameNum, len(frame.Barcodes[oldKK])-1, nb)
					oldBC = nb
					virtual++
				}
			}
		}
		oldTraj = t
		oldKK, oldJ = c.K, c.I
	}
	return found, virtual
}
