package barcode

import (
	"fmt"

	"github.com/ethology-lab/trajognize/internal/model"
)

// NotDeleted returns the subset of indices that refer to not-(permanently-
// or soft-)deleted barcodes, optionally further filtered to those whose
// mfix intersects mfixFilter (pass 0 to skip that filter).
func NotDeleted(indices []model.BarcodeIndex, barcodes [][]*model.Barcode, mfixFilter model.MFix) []model.BarcodeIndex {
	good := make([]model.BarcodeIndex, 0, len(indices))
	for _, ki := range indices {
		b := barcodes[ki.K][ki.I]
		if b.MFix != 0 && b.MFix&model.DELETED == 0 {
			if mfixFilter == 0 || b.MFix&mfixFilter != 0 {
				good = append(good, ki)
			}
		}
	}
	return good
}

// NotUsedBlobIndices returns the indices of blobs claimed by no
// not-deleted barcode.
func NotUsedBlobIndices(blobs []model.ColorBlob, barcodes [][]*model.Barcode) []int {
	var nub []int
	for i := range blobs {
		if len(NotDeleted(blobs[i].BarcodeIndices, barcodes, 0)) == 0 {
			nub = append(nub, i)
		}
	}
	return nub
}

// UpdateBlobBarcodeIndices records (k,i) as a user of every non-sentinel
// blob named by barcode.BlobIndices.
func UpdateBlobBarcodeIndices(bc *model.Barcode, k, i int, blobs []model.ColorBlob) {
	ki := model.BarcodeIndex{K: k, I: i}
	for _, blobi := range bc.BlobIndices {
		if blobi == model.NoBlob {
			continue
		}
		found := false
		for _, x := range blobs[blobi].BarcodeIndices {
			if x == ki {
				found = true
				break
			}
		}
		if !found {
			blobs[blobi].BarcodeIndices = append(blobs[blobi].BarcodeIndices, ki)
		}
	}
}

// RemoveBlobBarcodeIndex removes every occurrence of (k,i) from blob's
// back-reference list.
func RemoveBlobBarcodeIndex(blob *model.ColorBlob, k, i int) {
	ki := model.BarcodeIndex{K: k, I: i}
	out := blob.BarcodeIndices[:0]
	for _, x := range blob.BarcodeIndices {
		if x != ki {
			out = append(out, x)
		}
	}
	blob.BarcodeIndices = out
}

// IsFree reports whether a barcode is free to reuse: soft-deleted (but not
// permanently) and every blob it names is otherwise unclaimed.
func IsFree(barcodes [][]*model.Barcode, k, j int, blobs []model.ColorBlob) bool {
	bc := barcodes[k][j]
	if bc.MFix == 0 || bc.MFix&model.DELETED == 0 {
		return false
	}
	for _, i := range bc.BlobIndices {
		if i == model.NoBlob {
			continue
		}
		if len(NotDeleted(blobs[i].BarcodeIndices, barcodes, 0)) > 0 {
			return false
		}
	}
	return true
}

// ChosenIndices returns, for each colorid, the position of the barcode
// carrying the CHOSEN bit on this frame, or -1 if none does.
func ChosenIndices(barcodes [][]*model.Barcode) []int {
	out := make([]int, len(barcodes))
	for k := range out {
		out[k] = -1
		for i, bc := range barcodes[k] {
			if bc.MFix&model.CHOSEN != 0 {
				out[k] = i
				break
			}
		}
	}
	return out
}

// CheckConsistency verifies, for every frame, that every barcode's blob
// references and every blob's barcode back-references agree. Any mismatch
// indicates an algorithmic bug and halts the run.
func CheckConsistency(frames []*model.Frame) error {
	for frame, fr := range frames {
		for k, bcs := range fr.Barcodes {
			for i, bc := range bcs {
				if bc.MFix == 0 {
					continue
				}
				ki := model.BarcodeIndex{K: k, I: i}
				for _, j := range bc.BlobIndices {
					if j == model.NoBlob {
						continue
					}
					if !containsKI(fr.ColorBlobs[j].BarcodeIndices, ki) {
						return fmt.Errorf("%w: frame %d, blob %d does not back-reference colorid %d barcode #%d (mfix=%s)",
							ErrConsistency, frame, j, k, i, bc.MFix)
					}
				}
			}
		}
		for j, blob := range fr.ColorBlobs {
			for _, ki := range blob.BarcodeIndices {
				bc := fr.Barcodes[ki.K][ki.I]
				if bc.MFix == 0 {
					continue
				}
				if !containsInt(bc.BlobIndices, j) {
					return fmt.Errorf("%w: frame %d, colorid %d barcode #%d (mfix=%s) does not contain blob %d",
						ErrConsistency, frame, ki.K, ki.I, bc.MFix, j)
				}
			}
		}
	}
	return nil
}

func containsKI(s []model.BarcodeIndex, v model.BarcodeIndex) bool {
	for _, x := range s {
		if x == v {
			return true
		}
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
