package barcode

import (
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

// DetectFullBarcodes runs phase 3 on a single frame: every blob chain that
// FindFullBarcodes finds for a colorid becomes a FULLFOUND barcode, wired into frame.Barcodes and registered against the
// blobs it claims. Grounded on algo.py's per-frame barcode detection step
// of main.py's phase 3.
func DetectFullBarcodes(frame *model.Frame, settings config.Settings, alphabet config.ColorAlphabet) {
	found := FindFullBarcodes(frame.ColorBlobs, frame.SpatialNear, frame.Barcodes, settings, alphabet)
	for k, bcs := range found {
		frame.Barcodes[k] = append(frame.Barcodes[k], bcs...)
		for i, bc := range bcs {
			UpdateBlobBarcodeIndices(bc, k, len(frame.Barcodes[k])-len(bcs)+i, frame.ColorBlobs)
		}
	}
}
