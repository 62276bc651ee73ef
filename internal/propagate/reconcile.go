package propagate

import (
	"github.com/ethology-lab/trajognize/internal/barcode"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

// Reconcile runs phase 7: after forward and backward propagation have both
// added their PARTLYFOUND_FROM_TDIST candidates to a frame, run the
// per-colorid consolidation pass that merges complementary partials and
// kills the losers of any remaining same-colorid collision, then recompute
// the SHARESID/SHARESBLOB flags and the nocluster property across the
// frame. Grounded on algo_barcode.py's phase-7 sequence in main.py.
func Reconcile(frame *model.Frame, settings config.Settings, alphabet config.ColorAlphabet) {
	for k, bcs := range frame.Barcodes {
		barcode.RemoveCloseSharesID(bcs, frame.ColorBlobs, k, settings.ColorIDs[k].StrID,
			alphabet, settings.MaxInRatDist, settings.AvgInRatDist, model.PARTLYFOUND_FROM_TDIST)
	}
	barcode.SetSharedMFixFlags(frame.Barcodes, frame.ColorBlobs, settings.MaxInRatDist, settings.MCHIPS)
	barcode.SetNoClusterProperty(frame.Barcodes, frame.ColorBlobs, frame.Clusters, settings.MCHIPS)
}
