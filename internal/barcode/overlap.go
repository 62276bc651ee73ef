package barcode

import (
	"math"

	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
)

// colorLookup is the one alphabet method this package needs; satisfied by
// config.ColorAlphabet without importing config.
type colorLookup interface{ ToInt(rune) (int, bool) }

// ellipseSemiAxes returns the semi-major/semi-minor pair used for the
// shares-blob containment double-check: MAX_INRAT_DIST*MCHIPS/2 along the
// chain, MAX_INRAT_DIST/2 across it.
func ellipseSemiAxes(maxInRatDist float64, mchips int) (a, b float64) {
	return maxInRatDist * float64(mchips) / 2, maxInRatDist / 2
}

// CouldBeSharesBlob reports whether two not-deleted barcodes on the same
// frame are close enough, and mutually ellipse-contained, to be considered
// the same physical animal seen under two identities. Grounded on
// algo_barcode.py's could_be_sharesblob: a cheap center-distance gate at
// MAX_INRAT_DIST*2, then containment of each center inside the other's
// chip-chain ellipse.
func CouldBeSharesBlob(a, b *model.Barcode, maxInRatDist float64, mchips int) bool {
	if geom.Distance(a, b) > maxInRatDist*2 {
		return false
	}
	axisA, axisB := ellipseSemiAxes(maxInRatDist, mchips)
	if !geom.PointInsideEllipse(b, a, axisA, axisB, a.Orientation, 1.0) {
		return false
	}
	if !geom.PointInsideEllipse(a, b, axisA, axisB, b.Orientation, 1.0) {
		return false
	}
	return true
}

// SharesAnyBlob reports whether two barcodes name a common non-sentinel
// blob index.
func SharesAnyBlob(a, b *model.Barcode) bool {
	for _, i := range a.BlobIndices {
		if i == model.NoBlob {
			continue
		}
		for _, j := range b.BlobIndices {
			if j == i {
				return true
			}
		}
	}
	return false
}

// SetSharedMFixFlags recomputes SHARESID and SHARESBLOB on every
// not-deleted barcode of a frame: both flags are cleared first, SHARESID is
// set on every colorid with at least two live barcodes, SHARESBLOB on every
// barcode whose blob is claimed by more than one live barcode or that
// geometrically overlaps another (CouldBeSharesBlob). Grounded on
// algo_barcode.py's set_shared_mfix_flags. Re-running it without
// intervening mutations is a no-op.
func SetSharedMFixFlags(barcodes [][]*model.Barcode, blobs []model.ColorBlob, maxInRatDist float64, mchips int) {
	for k := range barcodes {
		num := 0
		for _, bc := range barcodes[k] {
			bc.MFix &^= model.SHARESBLOB
			if !bc.IsDeleted() {
				num++
			}
		}
		for _, bc := range barcodes[k] {
			if num < 2 {
				bc.MFix &^= model.SHARESID
			} else if !bc.IsDeleted() {
				bc.MFix |= model.SHARESID
			}
		}
	}

	for i := range blobs {
		users := NotDeleted(blobs[i].BarcodeIndices, barcodes, 0)
		if len(users) > 1 {
			for _, ki := range users {
				barcodes[ki.K][ki.I].MFix |= model.SHARESBLOB
			}
		}
	}

	type ref struct {
		bc *model.Barcode
	}
	var all []ref
	for _, bcs := range barcodes {
		for _, bc := range bcs {
			if !bc.IsDeleted() {
				all = append(all, ref{bc})
			}
		}
	}
	for x := 0; x < len(all); x++ {
		for y := x + 1; y < len(all); y++ {
			if CouldBeSharesBlob(all[x].bc, all[y].bc, maxInRatDist, mchips) {
				all[x].bc.MFix |= model.SHARESBLOB
				all[y].bc.MFix |= model.SHARESBLOB
			}
		}
	}
}

// SetNoClusterProperty sets FULLNOCLUSTER on the single fullfound barcode
// of every blob cluster that has exactly MCHIPS blobs, all used by that one
// barcode and by nothing else. Grounded on algo_barcode.py's
// set_nocluster_property.
func SetNoClusterProperty(barcodes [][]*model.Barcode, blobs []model.ColorBlob, clusters [][]int, mchips int) {
	for _, cluster := range clusters {
		if len(cluster) != mchips {
			continue
		}
		owner := model.BarcodeIndex{K: -1, I: -1}
		ok := true
		for _, i := range cluster {
			users := NotDeleted(blobs[i].BarcodeIndices, barcodes, 0)
			if len(users) != 1 {
				ok = false
				break
			}
			if owner.K == -1 {
				owner = users[0]
			} else if owner != users[0] {
				ok = false
				break
			}
		}
		if ok && owner.K != -1 && barcodes[owner.K][owner.I].MFix&model.FULLFOUND != 0 {
			barcodes[owner.K][owner.I].MFix |= model.FULLNOCLUSTER
		}
	}
}

// RemoveCloseSharesID consolidates same-colorid barcodes that sit nearly
// on top of each other. When mfixFilter is PARTLYFOUND_FROM_TDIST, pairs
// where both carry that bit and whose combined blob set holds no color
// twice are merged into one barcode (within 2*MAX_INRAT_DIST; the other is
// permanently deleted and the union re-ordered, promoted to FULLFOUND if
// complete). In every case, remaining pairs within MAX_INRAT_DIST whose
// orientations differ by at most 90 degrees fight and the one with the
// larger summed blob radius wins; the loser is permanently deleted.
// Returns the number of barcodes removed. Grounded on algo_barcode.py's
// remove_close_sharesid.
func RemoveCloseSharesID(
	barcodes []*model.Barcode,
	blobs []model.ColorBlob,
	k int,
	strid string,
	alphabet colorLookup,
	maxInRatDist, avgInRatDist float64,
	mfixFilter model.MFix,
) int {
	count := 0
	mchips := len(strid)
	if len(barcodes) < 2 {
		return 0
	}
	for i := 0; i < len(barcodes); i++ {
		a := barcodes[i]
		if a.IsDeleted() {
			continue
		}
		for j := 0; j < i; j++ {
			b := barcodes[j]
			if b.IsDeleted() {
				continue
			}

			if mfixFilter == model.PARTLYFOUND_FROM_TDIST &&
				a.MFix&mfixFilter != 0 && b.MFix&mfixFilter != 0 &&
				geom.Distance(a, b) <= 2*maxInRatDist &&
				mergeIfDisjoint(a, b, blobs, k, i, j, strid, alphabet, mchips, avgInRatDist) {
				count++
				continue
			}

			if geom.Distance(a, b) > maxInRatDist {
				continue
			}
			if math.Cos(a.Orientation-b.Orientation) < 0 {
				continue
			}
			count++
			sumA := sumBlobRadii(a, blobs)
			sumB := sumBlobRadii(b, blobs)
			if sumB > sumA {
				permanentlyDelete(a, blobs, k, i)
				break
			}
			permanentlyDelete(b, blobs, k, j)
		}
	}
	return count
}

// mergeIfDisjoint unions b's blobs into a when no color would appear
// twice; b is permanently deleted, the merged set re-ordered against strid
// and a's parameters recomputed. Reports whether the merge happened.
func mergeIfDisjoint(
	a, b *model.Barcode,
	blobs []model.ColorBlob,
	k, ai, bi int,
	strid string,
	alphabet colorLookup,
	mchips int,
	avgInRatDist float64,
) bool {
	union := make(map[int]struct{})
	perColor := make(map[int]int)
	for _, set := range [2][]int{a.BlobIndices, b.BlobIndices} {
		for _, idx := range set {
			if idx == model.NoBlob {
				continue
			}
			if _, dup := union[idx]; dup {
				continue
			}
			union[idx] = struct{}{}
			perColor[blobs[idx].Color]++
		}
	}
	for _, n := range perColor {
		if n >= 2 {
			return false
		}
	}

	merged := make([]int, mchips)
	for p := range merged {
		merged[p] = model.NoBlob
	}
	for idx := range union {
		for p, r := range strid {
			want, ok := alphabet.ToInt(r)
			if ok && want == blobs[idx].Color && merged[p] == model.NoBlob {
				merged[p] = idx
				break
			}
		}
	}
	permanentlyDelete(b, blobs, k, bi)
	a.BlobIndices = merged
	UpdateBlobBarcodeIndices(a, k, ai, blobs)
	if len(union) == mchips {
		a.MFix &^= model.PARTLYFOUND_FROM_TDIST
		a.MFix |= model.FULLFOUND
	}
	CalculateParams(a, strid, blobs, avgInRatDist)
	return true
}

// permanentlyDelete destroys a barcode (mfix = 0) and cleans its blobs'
// back-references.
func permanentlyDelete(bc *model.Barcode, blobs []model.ColorBlob, k, i int) {
	for _, blobi := range bc.BlobIndices {
		if blobi != model.NoBlob {
			RemoveBlobBarcodeIndex(&blobs[blobi], k, i)
		}
	}
	bc.MFix = 0
}

func sumBlobRadii(bc *model.Barcode, blobs []model.ColorBlob) float64 {
	var sum float64
	for _, i := range bc.BlobIndices {
		if i != model.NoBlob {
			sum += blobs[i].Radius
		}
	}
	return sum
}

// RemoveOverlappingFullfound soft-deletes every fullfound barcode in a
// blob cluster that is fully overlapped, i.e. every one of its blobs is
// also claimed by at least one other not-deleted barcode. The overlapped
// set is snapshotted before any deletion so the pass is order-independent
// and idempotent. Returns the number of barcodes deleted. Grounded on
// algo_barcode.py's remove_overlapping_fullfound.
func RemoveOverlappingFullfound(barcodes [][]*model.Barcode, blobs []model.ColorBlob, cluster []int) int {
	barcodeCluster := make(map[model.BarcodeIndex]struct{})
	for _, i := range cluster {
		for _, ki := range NotDeleted(blobs[i].BarcodeIndices, barcodes, model.FULLFOUND) {
			barcodeCluster[ki] = struct{}{}
		}
	}
	var overlapped []model.BarcodeIndex
	for ki := range barcodeCluster {
		fully := true
		for _, i := range barcodes[ki.K][ki.I].BlobIndices {
			if i == model.NoBlob {
				continue
			}
			if len(NotDeleted(blobs[i].BarcodeIndices, barcodes, 0)) < 2 {
				fully = false
				break
			}
		}
		if fully {
			overlapped = append(overlapped, ki)
		}
	}
	for _, ki := range overlapped {
		barcodes[ki.K][ki.I].MFix |= model.DELETED
	}
	return len(overlapped)
}
