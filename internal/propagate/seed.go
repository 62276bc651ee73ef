package propagate

import (
	"github.com/ethology-lab/trajognize/internal/barcode"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
)

// seed is a tentative candidate barcode position derived from one
// previous-frame barcode, before grouping and blob assignment.
type seed struct {
	fromK, fromI int
	center       model.Point
	orientation  float64
	blobGuess    []int // per-chip blob index on the current frame, NoBlob if unknown
}

// seedFromPrev projects a previous-frame barcode onto the current frame by
// following each of its blobs through the temporal distance list
// (temporalPrev, built backward: temporalPrev[i] names prior-frame blobs
// considered the same dot as current blob i). A chip position survives the
// projection only if at least one current blob maps back to its previous
// blob.
func seedFromPrev(prevBC *model.Barcode, temporalPrev [][]int, used []bool) (seed, bool) {
	n := len(prevBC.BlobIndices)
	s := seed{center: model.Point{X: prevBC.CenterX, Y: prevBC.CenterY}, orientation: prevBC.Orientation}
	s.blobGuess = make([]int, n)
	found := false
	for p := range s.blobGuess {
		s.blobGuess[p] = model.NoBlob
	}
	for curBlob, prevList := range temporalPrev {
		if used[curBlob] {
			// propagation only claims blobs no live barcode references.
			continue
		}
		for _, prevBlob := range prevList {
			for p, want := range prevBC.BlobIndices {
				if want == prevBlob {
					s.blobGuess[p] = curBlob
					found = true
				}
			}
		}
	}
	return s, found
}

// FindPartlyfoundFromTdist runs phase 5/6 on one frame: every not-deleted
// barcode on the adjacent frame (prevFrame when direction is forward, the
// frame "ahead" when backward) is projected through the temporal distance
// list, tentative seeds within mergeRadius of each other are grouped (the
// first seed of a group wins, see groupSeeds), missing chip positions are completed
// via barcode.FindMissingUnusedBlob, and the result is deduplicated against
// barcodes already standing on the frame before being appended as
// PARTLYFOUND_FROM_TDIST (or FULLFOUND, if completion finished the chain).
// Grounded on algo_barcode.py's find_partlyfound_from_tdist.
func FindPartlyfoundFromTdist(
	frame *model.Frame,
	prevBarcodes [][]*model.Barcode,
	temporalPrev [][]int,
	settings config.Settings,
	alphabet config.ColorAlphabet,
) {
	used := make([]bool, len(frame.ColorBlobs))
	for i := range frame.ColorBlobs {
		if len(barcode.NotDeleted(frame.ColorBlobs[i].BarcodeIndices, frame.Barcodes, 0)) > 0 {
			used[i] = true
		}
	}
	for k, strid := range settings.StrIDs() {
		var seeds []seed
		for i, prevBC := range prevBarcodes[k] {
			if prevBC.IsDeleted() {
				continue
			}
			s, ok := seedFromPrev(prevBC, temporalPrev, used)
			if !ok {
				continue
			}
			s.fromK, s.fromI = k, i
			seeds = append(seeds, s)
		}
		groups := groupSeeds(seeds)

		for _, g := range groups {
			bc := model.NewBarcode(g.center.X, g.center.Y, g.orientation, model.PARTLYFOUND_FROM_TDIST, settings.MCHIPS, g.blobGuess)
			if _, ambiguous := barcode.FindMissingUnusedBlob(bc, frame.ColorBlobs, frame.Barcodes, strid, alphabet, settings.MaxInRatDist); ambiguous {
				logger.Warn("multiple missing-blob completions, keeping the first", "colorid", strid)
			}
			complete := true
			for _, bi := range bc.BlobIndices {
				if bi == model.NoBlob {
					complete = false
					break
				}
			}
			if complete {
				bc.MFix |= model.FULLFOUND
			}
			barcode.CalculateParams(bc, strid, frame.ColorBlobs, settings.AvgInRatDist)

			if existing, idx := findDedupTarget(frame.Barcodes[k], bc, settings.MaxInRatDist); existing != nil {
				mergeIntoExisting(existing, bc, frame.ColorBlobs, k, idx)
				markUsed(existing, used)
				continue
			}
			frame.Barcodes[k] = append(frame.Barcodes[k], bc)
			barcode.UpdateBlobBarcodeIndices(bc, k, len(frame.Barcodes[k])-1, frame.ColorBlobs)
			markUsed(bc, used)
		}
	}
}

type seedGroup struct {
	center      model.Point
	orientation float64
	blobGuess   []int
}

// groupSeeds merges seeds within mergeRadius of the first seed of each
// group, keeping that first seed's center, orientation and blob guesses and
// filling only its unknown chip positions from the other members. Where
// members name different blobs for the same position, the first seed's blob
// is kept; distances to the old centers are not compared.
func groupSeeds(seeds []seed) []seedGroup {
	used := make([]bool, len(seeds))
	var groups []seedGroup
	for i := range seeds {
		if used[i] {
			continue
		}
		used[i] = true
		best := seeds[i]
		members := []seed{best}
		for j := i + 1; j < len(seeds); j++ {
			if used[j] {
				continue
			}
			if geom.Distance(point{best.center}, point{seeds[j].center}) < mergeRadius {
				used[j] = true
				members = append(members, seeds[j])
			}
		}
		// the first seed encountered wins; merge any chip positions the
		// winner left unknown from the runners-up.
		merged := append([]int(nil), best.blobGuess...)
		for _, m := range members[1:] {
			for p, bi := range merged {
				if bi == model.NoBlob && m.blobGuess[p] != model.NoBlob {
					merged[p] = m.blobGuess[p]
				}
			}
		}
		groups = append(groups, seedGroup{center: best.center, orientation: best.orientation, blobGuess: merged})
	}
	return groups
}

func markUsed(bc *model.Barcode, used []bool) {
	for _, bi := range bc.BlobIndices {
		if bi != model.NoBlob {
			used[bi] = true
		}
	}
}

type point struct{ p model.Point }

func (p point) Pos() (float64, float64) { return p.p.X, p.p.Y }

// findDedupTarget looks for an existing barcode of the same colorid within
// dedupRadius of the candidate, soft-deleted ones included and permanently
// deleted ones (mfix 0) skipped; if found, the candidate is merged into it
// (undeleting it if needed) rather than inserted fresh.
func findDedupTarget(existing []*model.Barcode, candidate *model.Barcode, maxInRatDist float64) (*model.Barcode, int) {
	for i, bc := range existing {
		if bc.MFix == 0 {
			continue // permanently gone, never reused as a dedup target
		}
		if geom.Distance(bc, candidate) < dedupRadius {
			return bc, i
		}
	}
	return nil, -1
}

// mergeIntoExisting folds a freshly completed candidate into an existing
// barcode slot: undeletes it, fills any chip position it was still missing,
// and keeps the existing slot's identity (frame-local index) intact so
// other references to it remain valid.
func mergeIntoExisting(existing, candidate *model.Barcode, blobs []model.ColorBlob, k, idx int) {
	existing.MFix &^= model.DELETED
	existing.MFix |= candidate.MFix &^ model.DELETED
	for p, bi := range candidate.BlobIndices {
		if bi == model.NoBlob {
			continue
		}
		if existing.BlobIndices[p] == model.NoBlob {
			existing.BlobIndices[p] = bi
			barcode.UpdateBlobBarcodeIndices(existing, k, idx, blobs)
		}
	}
}
