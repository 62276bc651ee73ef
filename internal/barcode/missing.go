package barcode

import (
	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
)

// FindMissingUnusedBlob tries to complete a partial barcode by filling its
// NoBlob positions from the pool of not-yet-used same-color blobs nearby.
// Grounded on algo_barcode.py's find_missing_unused_blob: for every missing
// chip position, candidates are the unused blobs of the right color within
// maxInRatDist*2 of the nearest already-known chip; the Cartesian product of
// per-position candidate lists is walked in index order and the first
// combination that forms an appropriate blob chain
// (geom.IsBlobChainAppropriate) is accepted. Returns false if no combination
// completes the barcode (or if it was already complete).
//
// ambiguous is set when more than one viable combination existed, mirroring
// the original's "more than one candidate" warning -- callers log it, they
// don't treat it as failure.
func FindMissingUnusedBlob(
	bc *model.Barcode,
	blobs []model.ColorBlob,
	barcodes [][]*model.Barcode,
	strid string,
	alphabet colorLookup,
	maxInRatDist float64,
) (filled bool, ambiguous bool) {
	missing := make([]int, 0)
	for pos, i := range bc.BlobIndices {
		if i == model.NoBlob {
			missing = append(missing, pos)
		}
	}
	if len(missing) == 0 {
		return false, false
	}

	unused := NotUsedBlobIndices(blobs, barcodes)
	reach := maxInRatDist * 2
	mchips := len(strid)
	candidates := make([][]int, len(missing))
	for mi, pos := range missing {
		want, ok := alphabet.ToInt(rune(strid[pos]))
		if !ok {
			continue
		}
		for _, bi := range unused {
			if blobs[bi].Color != want {
				continue
			}
			if nearestKnownWithin(bc, pos, blobs, blobs[bi], reach) {
				candidates[mi] = append(candidates[mi], bi)
			}
		}
		if len(candidates[mi]) == 0 {
			// fall back to any unused blob of the right color sitting under
			// the barcode's own chip-chain ellipse.
			axisA := float64(mchips) * maxInRatDist / 2
			axisB := maxInRatDist / 2
			for _, bi := range unused {
				if blobs[bi].Color != want {
					continue
				}
				if geom.PointInsideEllipse(blobs[bi], bc, axisA, axisB, bc.Orientation, 1.0) {
					candidates[mi] = append(candidates[mi], bi)
				}
			}
		}
		if len(candidates[mi]) == 0 {
			return false, false
		}
	}

	combos := 0
	var best []int
	combo := make([]int, len(missing))
	var walk func(mi int) bool
	walk = func(mi int) bool {
		if mi == len(missing) {
			trial := append([]int(nil), bc.BlobIndices...)
			for k, pos := range missing {
				trial[pos] = combo[k]
			}
			if chainAppropriate(trial, blobs, 0) {
				combos++
				if best == nil {
					best = append([]int(nil), combo...)
				}
				if combos > 1 {
					return true // ambiguity found; keep the first accepted combo
				}
			}
			return false
		}
		for _, c := range candidates[mi] {
			combo[mi] = c
			if walk(mi + 1) {
				return true
			}
		}
		return false
	}
	walk(0)

	if best == nil {
		return false, false
	}
	for k, pos := range missing {
		bc.BlobIndices[pos] = best[k]
	}
	return true, combos > 1
}

// nearestKnownWithin reports whether blob lies within reach of the chain
// position nearest to pos that already has a known blob assigned.
func nearestKnownWithin(bc *model.Barcode, pos int, blobs []model.ColorBlob, blob model.ColorBlob, reach float64) bool {
	best := -1
	bestGap := len(bc.BlobIndices) + 1
	for p, i := range bc.BlobIndices {
		if i == model.NoBlob || p == pos {
			continue
		}
		gap := p - pos
		if gap < 0 {
			gap = -gap
		}
		if gap < bestGap {
			bestGap = gap
			best = i
		}
	}
	if best == model.NoBlob || best < 0 {
		return true
	}
	return geom.Distance(blob, blobs[best]) <= reach
}

func chainAppropriate(blobIndices []int, blobs []model.ColorBlob, checkDistance float64) bool {
	chain := make([]geom.Positioned, 0, len(blobIndices))
	for _, i := range blobIndices {
		if i == model.NoBlob {
			return false
		}
		chain = append(chain, blobs[i])
	}
	return geom.IsBlobChainAppropriate(chain, checkDistance)
}
