package index

import (
	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
)

// TemporalPrev builds, for each current-frame blob, the list of
// previous-frame blob indices of the same color close enough to be
// considered the same physical dot. Backward-compatible: feeding "next" in
// place of "prev" computes the backward-direction temporal index.
func TemporalPrev(
	prevBlobs, blobs []model.ColorBlob,
	prevMD, md []model.MotionBlob,
	prevMDIndex, mdIndex []int,
	maxPerframeDist, maxPerframeDistMD float64,
) [][]int {
	n := len(blobs)
	m := len(prevBlobs)
	out := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if blobs[i].Color != prevBlobs[j].Color {
				continue
			}
			d := geom.Distance(blobs[i], prevBlobs[j])
			if d <= maxPerframeDist {
				out[i] = append(out[i], j)
				continue
			}
			if d > maxPerframeDistMD {
				continue
			}
			// dynamic case: look for motion-blob corroboration.
			iMD, jMD := mdIndex[i], prevMDIndex[j]
			switch {
			case iMD > -1 && jMD > -1:
				// both frames show motion here; rarely this far apart otherwise.
				out[i] = append(out[i], j)
			case iMD > -1 && jMD == -1 && geom.PointInsideEllipse(prevBlobs[j], md[iMD], md[iMD].AxisA, md[iMD].AxisB, md[iMD].Orientation, 1.2):
				// start of motion: prev was static, current sits under a fresh motion region.
				out[i] = append(out[i], j)
			case iMD == -1 && jMD > -1 && geom.PointInsideEllipse(blobs[i], prevMD[jMD], prevMD[jMD].AxisA, prevMD[jMD].AxisB, prevMD[jMD].Orientation, 1.2):
				// end of motion: current is static, but sat under prev's motion region.
				out[i] = append(out[i], j)
			}
		}
	}
	return out
}

// FindMDUnderBlobs returns, for each color blob, the index of the first
// motion blob whose ellipse contains it, or -1.
func FindMDUnderBlobs(blobs []model.ColorBlob, mdBlobs []model.MotionBlob) []int {
	out := make([]int, len(blobs))
	for i := range out {
		out[i] = -1
	}
	for i := range blobs {
		for j := range mdBlobs {
			if geom.PointInsideEllipse(blobs[i], mdBlobs[j], mdBlobs[j].AxisA, mdBlobs[j].AxisB, mdBlobs[j].Orientation, 1.2) {
				out[i] = j
				break
			}
		}
	}
	return out
}
