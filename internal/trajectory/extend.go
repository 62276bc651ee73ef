package trajectory

import (
	"github.com/charmbracelet/log"

	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

// ExtendChosenTrajs extends every chosen trajectory of colorid only (or of
// every colorid when only < 0) outward in both temporal directions with
// chains of not-yet-chosen trajectories, in a fixed-point loop: each
// iteration may undelete barcodes, change colorids and mark new
// trajectories chosen, which in turn opens new extension opportunities, so
// the loop runs until an iteration adds nothing. Grounded on
// algo_trajectory.py's extend_chosen_trajs.
func ExtendChosenTrajs(state *model.State, only, frameLimit int, settings config.Settings, logger *log.Logger) (virtual, rebirth int) {
	klist := []int{only}
	if only < 0 {
		klist = klist[:0]
		for k := range state.Trajectories {
			klist = append(klist, k)
		}
	}

	chosen, deleted := 0, 0
	for {
		oldChosen, oldDeleted := chosen, deleted
		var changedColor []model.BarcodeIndex

		for _, k := range klist {
			for i := range state.Trajectories[k] {
				t := state.Trajectories[k][i]
				if t.State != model.StateChosen {
					continue
				}
				for _, mode := range []Mode{ModeForward, ModeBackward} {
					conn := ConnectChosenTrajs(state, k, i, -1, mode, frameLimit, settings)
					if conn == nil {
						continue
					}
					var full []model.BarcodeIndex
					if mode == ModeForward {
						full = append([]model.BarcodeIndex{{K: k, I: i}}, conn...)
					} else {
						full = append(append([]model.BarcodeIndex(nil), conn...), model.BarcodeIndex{K: k, I: i})
					}
					a, b := FillConnectionWithNub(state, full, k, settings)
					rebirth += a
					virtual += b
					for _, c := range conn {
						if c.K == k && c.I == i {
							continue
						}
						r := MarkTrajChosen(state, c.K, c.I, k, settings)
						if r == -1 {
							deleted++
							continue
						}
						if c.K != k {
							changedColor = append(changedColor, c)
						}
						chosen++
						deleted += r
					}
				}
			}
		}

		for _, c := range changedColor {
			ChangeColorID(state, c.K, c.I, settings)
		}
		MarkBarcodesFromTrajs(state, only)

		if chosen == oldChosen && deleted == oldDeleted {
			break
		}
	}
	if virtual > 0 || rebirth > 0 {
		logger.Debug("chosen trajectories extended", "virtual", virtual, "rebirth", rebirth)
	}
	return virtual, rebirth
}
