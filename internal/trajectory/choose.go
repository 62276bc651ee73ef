package trajectory

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

// MarkTrajChosen marks trajectory (k, trajIdx) chosen for destination
// colorid dstK and soft-deletes every overlapping same-destination
// trajectory. If an overlapping trajectory is already CHOSEN, this one is
// deleted instead and -1 is returned; otherwise the number of deleted
// overlaps is returned. Deleted overlaps that share a blob with the chosen
// trajectory on a common frame get their OffsetCount decremented, so their
// later re-selection is penalized. Grounded on algo_trajectory.py's
// mark_traj_chosen.
func MarkTrajChosen(state *model.State, k, trajIdx, dstK int, settings config.Settings) int {
	t := state.Trajectories[k][trajIdx]
	if t.State == model.StateChosen {
		return 0
	}

	var chosenOverlap, deleteOverlap []int
	for frame := t.FirstFrame; frame <= t.LastFrame(); frame++ {
		for j := range state.TrajsOnFrame[frame][dstK] {
			if dstK == k && j == trajIdx {
				continue
			}
			x := state.Trajectories[dstK][j]
			switch x.State {
			case model.StateChosen:
				chosenOverlap = append(chosenOverlap, j)
			case model.StateDeleted, model.StateChangedID:
			default:
				deleteOverlap = append(deleteOverlap, j)
			}
		}
	}

	if len(chosenOverlap) > 0 {
		t.State = model.StateDeleted
		return -1
	}

	deleted := 0
	seen := make(map[int]bool)
	for _, j := range deleteOverlap {
		if seen[j] {
			continue
		}
		seen[j] = true
		x := state.Trajectories[dstK][j]
		x.State = model.StateDeleted
		deleted++

		// penalize losers that actually share blobs with the winner.
		lo := t.FirstFrame
		if x.FirstFrame > lo {
			lo = x.FirstFrame
		}
		hi := t.LastFrame()
		if x.LastFrame() < hi {
			hi = x.LastFrame()
		}
		for frame := lo; frame <= hi; frame++ {
			good := state.Frames[frame].Barcodes[k][t.BarcodeIndices[frame-t.FirstFrame]]
			bxi := x.BarcodeIndices[frame-x.FirstFrame]
			shared := false
			for _, blobi := range good.BlobIndices {
				if blobi == model.NoBlob {
					continue
				}
				for _, ki := range state.Frames[frame].ColorBlobs[blobi].BarcodeIndices {
					if ki.K == dstK && ki.I == bxi {
						shared = true
						break
					}
				}
				if shared {
					break
				}
			}
			if shared {
				x.OffsetCount--
				break
			}
		}
	}

	if dstK == k {
		t.State = model.StateChosen
	} else {
		// a color change is pending; flag it by retargeting K, the actual
		// barcode rewrite comes in ChangeColorID.
		t.K = dstK
	}
	return deleted
}

// ChooseAndConnectTrajs iterates trajectories in sorted-score order,
// choosing every one above scoreThreshold and trying to connect it to its
// chosen neighbors in both temporal directions. Cross-colorid chain
// elements are queued for ChangeColorID. Grounded on algo_trajectory.py's
// choose_and_connect_trajs.
func ChooseAndConnectTrajs(
	state *model.State,
	sorted []model.BarcodeIndex,
	scoreThreshold float64,
	only int,
	frameLimit int,
	settings config.Settings,
	logger *log.Logger,
) {
	var changedColor []model.BarcodeIndex
	for _, si := range sorted {
		k, i := si.K, si.I
		t := state.Trajectories[k][i]
		if !IsTrajGood(t, settings, scoreThreshold+t.OffsetCount) {
			break // sorted descending, nothing below clears the bar either
		}
		if t.State == model.StateDeleted || t.State == model.StateChangedID || t.K != k || t.State == model.StateChosen {
			continue
		}
		if MarkTrajChosen(state, k, i, k, settings) == -1 {
			continue
		}

		// connect forward to the nearest chosen neighbor.
		if next := GetChosenNeighborTraj(state, k, i, true, frameLimit); next != -1 {
			if conn := ConnectChosenTrajs(state, k, i, next, ModeConnect, frameLimit, settings); conn != nil {
				full := append(append([]model.BarcodeIndex{{K: k, I: i}}, conn...), model.BarcodeIndex{K: k, I: next})
				FillConnectionWithNub(state, full, k, settings)
				for _, c := range conn {
					if MarkTrajChosen(state, c.K, c.I, k, settings) != -1 && c.K != k {
						changedColor = append(changedColor, c)
					}
				}
			}
		}
		// and backward.
		if prev := GetChosenNeighborTraj(state, k, i, false, frameLimit); prev != -1 {
			if conn := ConnectChosenTrajs(state, k, prev, i, ModeConnect, frameLimit, settings); conn != nil {
				full := append(append([]model.BarcodeIndex{{K: k, I: prev}}, conn...), model.BarcodeIndex{K: k, I: i})
				FillConnectionWithNub(state, full, k, settings)
				for _, c := range conn {
					if MarkTrajChosen(state, c.K, c.I, k, settings) != -1 && c.K != k {
						changedColor = append(changedColor, c)
					}
				}
			}
		}
	}

	for _, c := range changedColor {
		ChangeColorID(state, c.K, c.I, settings)
	}
	if n := len(changedColor); n > 0 {
		logger.Info("changed colorid on connected trajectories", "count", n)
	}
	MarkBarcodesFromTrajs(state, only)
}

// FindBestTrajectories runs phase 9: per-colorid quality triage, a global
// high-threshold choose-and-connect pass, a per-colorid lower-threshold
// pass with score recalculation and outward extension, then the
// meta-trajectory listing and virtual-barcode enhancement. Grounded on
// algo_trajectory.py's find_best_trajectories.
func FindBestTrajectories(state *model.State, settings config.Settings, logger *log.Logger) {
	thr := settings.FindBestTrajectories
	nK := state.NumColorIDs()

	// per-colorid summary: best score, total score, total good score.
	bestScores := make([]float64, nK)
	sumScores := make([]float64, nK)
	sumGoodScores := make([]float64, nK)
	for k := 0; k < nK; k++ {
		for _, t := range state.Trajectories[k] {
			s := Score(t, settings)
			if s > bestScores[k] {
				bestScores[k] = s
			}
			sumScores[k] += s
			if IsTrajGood(t, settings, thr.GoodScoreThreshold) {
				sumGoodScores[k] += s
			}
		}
	}
	sortedK := make([]int, nK)
	for k := range sortedK {
		sortedK[k] = k
	}
	sort.SliceStable(sortedK, func(a, b int) bool { return sumScores[sortedK[a]] > sumScores[sortedK[b]] })

	for _, k := range sortedK {
		if bestScores[k] < thr.MightBeBadScoreThreshold && sumGoodScores[k] < thr.MightBeBadSumGoodScoreThreshold {
			for _, t := range state.Trajectories[k] {
				t.State = model.StateDeleted
			}
			logger.Warn("deleting all trajectories of suspicious colorid",
				"colorid", settings.ColorIDs[k].StrID, "best", bestScores[k], "sumgood", sumGoodScores[k])
		}
	}

	// global pass: very good trajectories regardless of colorid.
	si := allTrajIndicesSorted(state, settings, -1)
	ChooseAndConnectTrajs(state, si, thr.GoodForSureScoreThreshold, -1, thr.FrameLimit, settings, logger)

	// per-colorid pass with refreshed scores, then outward extension.
	for _, k := range sortedK {
		for i := range state.Trajectories[k] {
			RecalculateScore(state, k, i, settings)
		}
		si = allTrajIndicesSorted(state, settings, k)
		ChooseAndConnectTrajs(state, si, thr.GoodScoreThreshold, k, thr.FrameLimit, settings, logger)
		ExtendChosenTrajs(state, k, thr.FrameLimit, settings, logger)
	}

	metas := ListMetaTrajs(state, settings)
	logger.Info("meta trajectories listed", "count", len(metas))
	changes := EnhanceVirtualBarcodes(state, settings)
	logger.Info("virtual barcodes enhanced", "changes", changes)
}

// allTrajIndicesSorted returns every (k, i) trajectory index (or only
// colorid `only` when >= 0), sorted by descending score.
func allTrajIndicesSorted(state *model.State, settings config.Settings, only int) []model.BarcodeIndex {
	var si []model.BarcodeIndex
	for k := range state.Trajectories {
		if only >= 0 && k != only {
			continue
		}
		for i := range state.Trajectories[k] {
			si = append(si, model.BarcodeIndex{K: k, I: i})
		}
	}
	sort.SliceStable(si, func(a, b int) bool {
		return Score(state.Trajectories[si[a].K][si[a].I], settings) > Score(state.Trajectories[si[b].K][si[b].I], settings)
	})
	return si
}
