package barcode

import (
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
)

// FindFullBarcodes searches a frame for blob chains that match one
// colorid's color sequence in front-to-back order, and returns one
// FULLFOUND model.Barcode per chain found. Grounded on algo_barcode.py's
// barcode-detection driver in algo.py. A chain is started from each blob of
// the colorid's first color that no earlier chain of the same colorid has
// claimed, and is grown greedily (see growChain), so each start blob yields
// at most one chain and alternative chains through the same blobs are not
// enumerated.
//
// spatialNear is the level-0 near-list produced by internal/index.SpatialNear.
func FindFullBarcodes(
	blobs []model.ColorBlob,
	spatialNear [][2][]int,
	barcodes [][]*model.Barcode,
	settings config.Settings,
	alphabet config.ColorAlphabet,
) [][]*model.Barcode {
	out := make([][]*model.Barcode, len(settings.ColorIDs))

	for k, cid := range settings.ColorIDs {
		strid := cid.StrID
		// claims are per colorid: two identities may legitimately bind the
		// same blob (the shares-blob filter sorts that out in phase 4).
		claimed := make([]bool, len(blobs))
		want := make([]int, len(strid))
		for i, r := range strid {
			v, _ := alphabet.ToInt(r)
			want[i] = v
		}

		var found []*model.Barcode
		for start := range blobs {
			if claimed[start] || blobs[start].Color != want[0] {
				continue
			}
			if chain := growChain(start, want, blobs, spatialNear, claimed, settings.MaxInRatDist); chain != nil {
				bc := model.NewBarcode(0, 0, 0, model.FULLFOUND, settings.MCHIPS, chain)
				CalculateParams(bc, strid, blobs, settings.AvgInRatDist)
				for _, i := range chain {
					claimed[i] = true
				}
				found = append(found, bc)
			}
		}
		out[k] = found
	}
	return out
}

// growChain attempts to extend a chain starting at blob "start" through the
// wanted color sequence by repeatedly stepping to the nearest not-yet-
// claimed, not-yet-used level-0 neighbor of the right next color, among
// the candidates that keep the chain geometrically appropriate. Returns nil
// if the sequence cannot be completed.
func growChain(start int, want []int, blobs []model.ColorBlob, spatialNear [][2][]int, claimed []bool, maxInRatDist float64) []int {
	chain := []int{start}
	used := map[int]bool{start: true}

	for pos := 1; pos < len(want); pos++ {
		cur := chain[len(chain)-1]
		var bestCand int = -1
		bestDist := maxInRatDist * 2
		for _, cand := range spatialNear[cur][0] {
			if used[cand] || claimed[cand] || blobs[cand].Color != want[pos] {
				continue
			}
			trial := append(append([]int(nil), chain...), cand)
			if !chainPositioned(trial, blobs) {
				continue
			}
			d := geom.Distance(blobs[cur], blobs[cand])
			if d < bestDist {
				bestDist = d
				bestCand = cand
			}
		}
		if bestCand < 0 {
			return nil
		}
		chain = append(chain, bestCand)
		used[bestCand] = true
	}
	if !chainPositioned(chain, blobs) {
		return nil
	}
	return chain
}

func chainPositioned(indices []int, blobs []model.ColorBlob) bool {
	if len(indices) < 2 {
		return true
	}
	positions := make([]geom.Positioned, len(indices))
	for i, idx := range indices {
		positions[i] = blobs[idx]
	}
	return geom.IsBlobChainAppropriate(positions, 0)
}
