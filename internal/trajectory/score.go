package trajectory

import (
	"math"

	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

// Score computes a trajectory's quality score for its own colorid. Two
// methods are supported, selected by settings.TrajScoreMethod, mirroring
// algo_trajectory.py's traj_score:
//
//   - Method 1 combines trajectory length, total per-chip blob coverage and
//     the averaged fullfound/fullnocluster quality bonus minus the
//     shared-blob penalty.
//   - Method 2 drops the length and coverage terms and clamps at zero, so
//     only quality (not duration) counts.
//
// Both methods fold in t.OffsetCount, the free score adjuster that
// selection decrements on shared-blob losers.
func Score(t *model.Trajectory, settings config.Settings) float64 {
	var sumColorblob int
	for _, c := range t.ColorblobCount {
		sumColorblob += c
	}
	quality := float64(t.FullfoundCount-t.SharesblobCount+2*t.FullnoclusterCount) / 3
	switch settings.TrajScoreMethod {
	case 2:
		s := float64(t.FullfoundCount-t.SharesblobCount+t.FullnoclusterCount)/2 + t.OffsetCount
		return math.Max(0, s)
	default:
		return float64(len(t.BarcodeIndices)) + float64(sumColorblob) + quality + t.OffsetCount
	}
}

// CrossScore scores a trajectory built under colorid kk as a candidate for
// destination colorid k. When k == kk it is identical to Score; otherwise
// the coverage term is replaced by the deviation from a single-color
// trajectory,
//
//	(sum(colorblob_count) - MCHIPS*min_position_count) / (MCHIPS-1)
//
// which is zero when every chip position was seen equally often and grows
// as one position lags behind the others.
func CrossScore(t *model.Trajectory, k, kk int, settings config.Settings) float64 {
	if k == kk {
		return Score(t, settings)
	}
	mchips := settings.MCHIPS
	if mchips <= 1 {
		return 0
	}
	least := IndexOfLeastColor(t)
	var sum int
	for _, c := range t.ColorblobCount {
		sum += c
	}
	dev := float64(sum-mchips*t.ColorblobCount[least]) / float64(mchips-1)
	switch settings.TrajScoreMethod {
	case 2:
		return math.Max(0, (dev-float64(t.SharesblobCount))/3+t.OffsetCount)
	default:
		return float64(len(t.BarcodeIndices)) + (dev-float64(t.SharesblobCount))/3 + t.OffsetCount
	}
}

// IndexOfLeastColor returns the chip position with the fewest found blobs
// over the trajectory's lifetime. On ties the first position wins, which
// keeps the color-change mismatch check deterministic.
func IndexOfLeastColor(t *model.Trajectory) int {
	least := 0
	for p := 1; p < len(t.ColorblobCount); p++ {
		if t.ColorblobCount[p] < t.ColorblobCount[least] {
			least = p
		}
	}
	return least
}

// IsTrajGood reports whether a trajectory's score clears threshold.
// Mirrors algo_trajectory.py's is_traj_good.
func IsTrajGood(t *model.Trajectory, settings config.Settings, threshold float64) bool {
	return Score(t, settings) >= threshold
}

// RecalculateScore re-derives a trajectory's sharesblob count from the
// current barcode state; shares change as competing barcodes are deleted
// during selection, so scores drift between passes. Grounded on
// algo_trajectory.py's recalculate_score.
func RecalculateScore(state *model.State, k, trajIdx int, settings config.Settings) {
	t := state.Trajectories[k][trajIdx]
	t.SharesblobCount = 0
	for offset, bi := range t.BarcodeIndices {
		frame := state.Frames[t.FirstFrame+offset]
		a := frame.Barcodes[k][bi]
		shared := false
		for kk := range frame.Barcodes {
			for _, b := range frame.Barcodes[kk] {
				if a == b || b.IsDeleted() {
					continue
				}
				if sharesOrOverlaps(a, b, settings) {
					shared = true
					break
				}
			}
			if shared {
				break
			}
		}
		if shared {
			t.SharesblobCount++
		}
	}
}
