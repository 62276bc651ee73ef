// Package index builds the per-frame spatial and per-frame-pair temporal
// proximity structures every later phase consults, plus the connected
// components ("clusters") derived from them and the motion-blob
// association. Grounded on trajognize's algo_blob.py
// (create_spatial_distlists, create_temporal_distlists,
// find_clusters_in_sdistlists[_recursively]) and algo.py
// (find_md_under_blobs).
package index

import (
	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
)

// SpatialNear builds, for each blob, two neighbor lists: near[0] contains
// every other blob within maxInRatDist, near[1] every blob strictly beyond
// that but within 2*maxInRatDist. The result is symmetric by construction.
func SpatialNear(blobs []model.ColorBlob, maxInRatDist float64) [][2][]int {
	n := len(blobs)
	out := make([][2][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			d := geom.Distance(blobs[i], blobs[j])
			switch {
			case d <= maxInRatDist:
				out[i][0] = append(out[i][0], j)
				out[j][0] = append(out[j][0], i)
			case d <= 2*maxInRatDist:
				out[i][1] = append(out[i][1], j)
				out[j][1] = append(out[j][1], i)
			}
		}
	}
	return out
}
