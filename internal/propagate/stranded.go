package propagate

import (
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
)

// RecoverStrandedClusters looks for blob clusters of at least two blobs on a
// frame in which at least one blob is claimed by no live barcode, and tries
// to identify them by searching nearby frames, forward and backward up to
// maxSkip frames away, for an existing barcode of some colorid whose
// position lines up with the cluster. A match is preferred if it is
// multi-blob, FULLFOUND or motion-corroborated (see bestMatchingBarcode),
// and must be within settings.MaxPerframeDistMD of the cluster's centroid;
// the threshold is the same at every searched frame distance. The new
// barcode takes the cluster's blobs by color, including blobs that other
// barcodes already claim. Grounded on algo_barcode.py's stranded-cluster
// recovery pass that follows find_partlyfound_from_tdist.
//
// frames is the full per-frame slice so the search can look both
// directions from frameNum; it does not mutate any frame but the one at
// frameNum.
func RecoverStrandedClusters(frames []*model.Frame, frameNum int, settings config.Settings, alphabet config.ColorAlphabet) {
	frame := frames[frameNum]
	claimed := make([]bool, len(frame.ColorBlobs))
	for k := range frame.Barcodes {
		for _, bc := range frame.Barcodes[k] {
			if bc.IsDeleted() {
				continue
			}
			for _, bi := range bc.BlobIndices {
				if bi != model.NoBlob {
					claimed[bi] = true
				}
			}
		}
	}

	for _, cluster := range frame.Clusters {
		allClaimed := true
		for _, bi := range cluster {
			if !claimed[bi] {
				allClaimed = false
				break
			}
		}
		if allClaimed || len(cluster) < 2 {
			continue
		}
		cx, cy := clusterCentroid(cluster, frame.ColorBlobs)

		k, strid, bestDist := -1, "", settings.MaxPerframeDistMD
		for skip := 1; skip <= maxSkip; skip++ {
			for _, dir := range []int{-1, 1} {
				f := frameNum + dir*skip
				if f < 0 || f >= len(frames) {
					continue
				}
				cand, candK, dist := bestMatchingBarcode(frames[f], cx, cy, settings.MaxPerframeDistMD)
				if cand != nil && dist < bestDist {
					bestDist = dist
					k = candK
					strid = settings.ColorIDs[candK].StrID
				}
			}
			if k != -1 {
				break
			}
		}
		if k == -1 {
			continue
		}

		bc := model.NewBarcode(cx, cy, 0, model.PARTLYFOUND_FROM_TDIST|model.DEBUG, settings.MCHIPS, nil)
		assignClusterBlobs(bc, cluster, frame.ColorBlobs, strid, alphabet)
		frame.Barcodes[k] = append(frame.Barcodes[k], bc)
		idx := len(frame.Barcodes[k]) - 1
		for _, bi := range bc.BlobIndices {
			if bi != model.NoBlob {
				claimed[bi] = true
			}
		}
		applyBackrefs(bc, k, idx, frame.ColorBlobs)
	}
}

func clusterCentroid(cluster []int, blobs []model.ColorBlob) (float64, float64) {
	var cx, cy float64
	for _, i := range cluster {
		cx += blobs[i].CenterX
		cy += blobs[i].CenterY
	}
	n := float64(len(cluster))
	return cx / n, cy / n
}

// bestMatchingBarcode finds, among not-deleted barcodes of any colorid on
// frame, the one nearest to (cx,cy), preferring multi-blob (>=2 chips),
// FULLFOUND or motion-corroborated (a motion blob under one of its chips)
// candidates, and returns it with its colorid index and distance.
func bestMatchingBarcode(frame *model.Frame, cx, cy, threshold float64) (*model.Barcode, int, float64) {
	var best *model.Barcode
	bestK := -1
	bestDist := threshold
	target := model.Point{X: cx, Y: cy}
	for k, bcs := range frame.Barcodes {
		for _, bc := range bcs {
			if bc.IsDeleted() {
				continue
			}
			d := geom.Distance(point{target}, bc)
			n := 0
			motion := false
			for _, bi := range bc.BlobIndices {
				if bi != model.NoBlob {
					n++
					if bi < len(frame.MDIndex) && frame.MDIndex[bi] > -1 {
						motion = true
					}
				}
			}
			if n < 2 && bc.MFix&model.FULLFOUND == 0 && !motion {
				d *= 1.5 // penalize single-chip, unconfirmed candidates
			}
			if d < bestDist {
				bestDist = d
				best = bc
				bestK = k
			}
		}
	}
	return best, bestK, bestDist
}

// assignClusterBlobs orders a cluster's blobs into bc's chip slots by
// matching each blob's color to the best-fit still-empty position in strid,
// first occurrence wins.
func assignClusterBlobs(bc *model.Barcode, cluster []int, blobs []model.ColorBlob, strid string, alphabet config.ColorAlphabet) {
	used := make([]bool, len(bc.BlobIndices))
	for _, bi := range cluster {
		color := blobs[bi].Color
		for p, r := range strid {
			if used[p] {
				continue
			}
			want, ok := alphabet.ToInt(r)
			if ok && want == color {
				bc.BlobIndices[p] = bi
				used[p] = true
				break
			}
		}
	}
}

func applyBackrefs(bc *model.Barcode, k, idx int, blobs []model.ColorBlob) {
	for _, bi := range bc.BlobIndices {
		if bi == model.NoBlob {
			continue
		}
		blobs[bi].BarcodeIndices = append(blobs[bi].BarcodeIndices, model.BarcodeIndex{K: k, I: idx})
	}
}
