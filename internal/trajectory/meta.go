package trajectory

import (
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

// ListMetaTrajs groups each colorid's chosen trajectories, in frame order,
// into meta-trajectories for diagnostic reporting: consecutive chosen
// trajectories separated by a gap belong to the same meta-trajectory, whose
// score is the sum of its members'. A diagnostic only; nothing downstream
// branches on the result. Grounded on algo_trajectory.py's list_meta_trajs.
func ListMetaTrajs(state *model.State, settings config.Settings) []model.MetaTraj {
	var metas []model.MetaTraj
	for k := range state.Trajectories {
		chosen := chosenTrajsByFrame(state, k)
		if len(chosen) == 0 {
			continue
		}
		meta := model.MetaTraj{}
		for _, i := range chosen {
			t := state.Trajectories[k][i]
			meta.Trajs = append(meta.Trajs, model.BarcodeIndex{K: k, I: i})
			meta.Score += Score(t, settings)
		}
		metas = append(metas, meta)
	}
	return metas
}
