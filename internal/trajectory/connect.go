package trajectory

import (
	"strings"

	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/geom"
	"github.com/ethology-lab/trajognize/internal/model"
)

// maxChainDepth bounds how many trajectories a single connecting chain may
// pass through before the search commits its best partial chain and
// restarts from that chain's tail. algo_trajectory.py derives the same
// bound from the host interpreter's recursion limit
// (min(200, 2*sys.getrecursionlimit()//10)); here it is simply the
// constant, enforced on an explicit work stack instead of the call stack.
const maxChainDepth = 200

// Mode selects what the chain search connects to.
type Mode int

const (
	// ModeConnect links two chosen trajectories of the same colorid.
	ModeConnect Mode = iota
	// ModeForward extends a chosen trajectory toward later frames.
	ModeForward
	// ModeBackward extends a chosen trajectory toward earlier frames.
	ModeBackward
)

// MaxAllowedDistBetweenTrajs returns the distance threshold for splicing
// two trajectories whose facing barcodes are frameA and frameB apart:
// 50 px plus 5 px per frame of gap, capped at 100, or a flat 50 px when the
// candidates belong to different colorids. Grounded on
// algo_trajectory.py's max_allowed_dist_between_trajs.
func MaxAllowedDistBetweenTrajs(frameA, frameB int, sameColor bool) float64 {
	if !sameColor {
		return 50
	}
	d := frameB - frameA
	if d < 0 {
		d = -d
	}
	dist := 50 + float64(d)*5
	if dist > 100 {
		dist = 100
	}
	return dist
}

// CouldBeAnotherColorID reports whether the trajectory at (kk, trajIdx)
// could be a false positive of colorid kk that actually belongs to colorid
// k. Criteria, per algo_trajectory.py's could_be_another_colorid: the
// trajectory is DELETED, not already marked for a color change, the two
// colorid strings overlap on MCHIPS-1 tokens (in either orientation), and
// the mismatching chip position is the trajectory's least-detected one.
func CouldBeAnotherColorID(state *model.State, kk, trajIdx, k int, settings config.Settings) bool {
	t := state.Trajectories[kk][trajIdx]
	if t.State != model.StateDeleted {
		return false
	}
	if t.K != kk {
		return false
	}
	from := settings.ColorIDs[kk].StrID
	to := settings.ColorIDs[k].StrID
	rev := reverse(to)
	mchips := settings.MCHIPS
	mismatch := -1
	if strings.Contains(to, from[:mchips-1]) || strings.Contains(rev, from[:mchips-1]) {
		mismatch = mchips - 1
	} else if strings.Contains(to, from[1:]) || strings.Contains(rev, from[1:]) {
		mismatch = 0
	}
	if mismatch == -1 {
		return false
	}
	return IndexOfLeastColor(t) == mismatch
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// GetChosenNeighborTraj returns the index of the nearest chosen trajectory
// of colorid k after (forward) or before (backward) the trajectory at
// trajIdx, within frameLimit frames, or -1. Grounded on
// algo_trajectory.py's get_chosen_neighbor_traj.
func GetChosenNeighborTraj(state *model.State, k, trajIdx int, forward bool, frameLimit int) int {
	t := state.Trajectories[k][trajIdx]
	best := -1
	bestGap := frameLimit + 1
	for j, cand := range state.Trajectories[k] {
		if j == trajIdx || cand.State != model.StateChosen {
			continue
		}
		var gap int
		if forward {
			gap = cand.FirstFrame - t.LastFrame()
		} else {
			gap = t.FirstFrame - cand.LastFrame()
		}
		if gap <= 0 || gap > frameLimit {
			continue
		}
		if gap < bestGap {
			bestGap = gap
			best = j
		}
	}
	return best
}

// chainNode is one work-stack entry in the explicit chain search.
type chainNode struct {
	chain []model.BarcodeIndex // trajs taken so far, excluding the seed
	depth int
}

// ConnectChosenTrajs searches for the best-scoring chain of not-yet-chosen
// trajectories that links trajectory (k, trajIdx) to target (ModeConnect)
// or extends it outward to the frame boundary (ModeForward/ModeBackward).
// Chain elements may come from other colorids when CouldBeAnotherColorID
// accepts them. Returns the chain as ordered (colorid, trajectory-index)
// pairs, in forward frame order, or nil.
//
// The search is an explicit depth-first stack rather than recursion; when
// a chain exceeds maxChainDepth the best partial chain found so far is
// committed and the search restarts from its tail, mirroring the adaptive
// recursion-limit fallback of algo_trajectory.py's connect_chosen_trajs.
func ConnectChosenTrajs(state *model.State, k, trajIdx, target int, mode Mode, frameLimit int, settings config.Settings) []model.BarcodeIndex {
	var committed []model.BarcodeIndex
	seedK, seedIdx := k, trajIdx

	for {
		part, hitLimit := connectOnce(state, k, seedK, seedIdx, target, mode, frameLimit, settings)
		if part == nil {
			if len(committed) == 0 {
				return nil
			}
			break
		}
		committed = append(committed, part...)
		if !hitLimit {
			break
		}
		// restart from the committed chain's tail for the remaining frames.
		tail := committed[len(committed)-1]
		seedK, seedIdx = tail.K, tail.I
		tailTraj := state.Trajectories[seedK][seedIdx]
		switch mode {
		case ModeBackward:
			frameLimit -= state.Trajectories[k][trajIdx].FirstFrame - tailTraj.FirstFrame
		default:
			frameLimit -= tailTraj.LastFrame() - state.Trajectories[k][trajIdx].LastFrame()
		}
		if frameLimit <= 0 {
			break
		}
	}

	if mode == ModeBackward {
		// chains are built backward in time; callers want forward order.
		for i, j := 0, len(committed)-1; i < j; i, j = i+1, j-1 {
			committed[i], committed[j] = committed[j], committed[i]
		}
	}
	return committed
}

// connectOnce runs one bounded chain search from seed (seedK, seedIdx)
// toward target, returning the best chain (excluding the seed itself) and
// whether the depth limit truncated the search.
func connectOnce(state *model.State, k, seedK, seedIdx, target int, mode Mode, frameLimit int, settings config.Settings) ([]model.BarcodeIndex, bool) {
	seed := state.Trajectories[seedK][seedIdx]
	nFrames := state.FrameCount()

	inc := 1
	var fromFrame, toFrame int
	switch mode {
	case ModeBackward:
		inc = -1
		fromFrame = seed.FirstFrame - 1
		toFrame = seed.FirstFrame - frameLimit
		if toFrame < 0 {
			toFrame = 0
		}
		if fromFrame < toFrame {
			return nil, false
		}
	case ModeForward:
		fromFrame = seed.LastFrame() + 1
		toFrame = seed.LastFrame() + frameLimit
		if toFrame > nFrames-1 {
			toFrame = nFrames - 1
		}
		if fromFrame > toFrame {
			return nil, false
		}
	case ModeConnect:
		fromFrame = seed.LastFrame() + 1
		toFrame = state.Trajectories[k][target].FirstFrame - 1
		if fromFrame > toFrame {
			return nil, false
		}
	}

	// best recorded chain ending at each trajectory, by partial score;
	// a candidate already claimed by a higher-scoring chain is skipped,
	// mirroring the original's connection-dedup pass.
	bestAt := make(map[model.BarcodeIndex]float64)

	var complete [][]model.BarcodeIndex
	var bestPartial []model.BarcodeIndex
	bestPartialScore := -1.0
	hitLimit := false

	stack := []chainNode{{chain: nil, depth: 0}}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		tailK, tailIdx := seedK, seedIdx
		if len(node.chain) > 0 {
			tail := node.chain[len(node.chain)-1]
			tailK, tailIdx = tail.K, tail.I
		}
		tailTraj := state.Trajectories[tailK][tailIdx]

		score := chainScore(state, node.chain, k, settings)
		if len(node.chain) > 0 && score > bestPartialScore {
			bestPartial = node.chain
			bestPartialScore = score
		}

		if node.depth >= maxChainDepth {
			hitLimit = true
			continue
		}

		var tailEnd int
		if inc > 0 {
			tailEnd = tailTraj.LastFrame()
		} else {
			tailEnd = tailTraj.FirstFrame
		}
		tailBC := edgeBarcode(state, tailTraj, tailK, inc > 0)

		extended := false
		for frame := tailEnd + inc; inc*frame <= inc*toFrame; frame += inc {
			for kk := range state.Trajectories {
				for i := range state.TrajsOnFrame[frame][kk] {
					x := state.Trajectories[kk][i]
					if inChain(node.chain, kk, i) || (kk == seedK && i == seedIdx) {
						continue
					}
					// only trajs starting exactly at this frame, and fully
					// inside the search window.
					if inc > 0 {
						if x.FirstFrame != frame || x.LastFrame() > toFrame {
							continue
						}
					} else {
						if x.LastFrame() != frame || x.FirstFrame < toFrame {
							continue
						}
					}
					if kk != k {
						if !CouldBeAnotherColorID(state, kk, i, k, settings) {
							continue
						}
					} else {
						if mode == ModeConnect && x.State == model.StateDeleted {
							continue
						}
						if x.State == model.StateChangedID || x.K != kk || x.State == model.StateChosen {
							continue
						}
					}
					xStart := edgeBarcode(state, x, kk, inc < 0)
					if geom.Distance(tailBC, xStart) > MaxAllowedDistBetweenTrajs(tailEnd, frame, k == kk) {
						continue
					}
					next := append(append([]model.BarcodeIndex(nil), node.chain...), model.BarcodeIndex{K: kk, I: i})
					nextScore := chainScore(state, next, k, settings)
					if old, ok := bestAt[model.BarcodeIndex{K: kk, I: i}]; ok && old >= nextScore {
						continue
					}
					bestAt[model.BarcodeIndex{K: kk, I: i}] = nextScore
					stack = append(stack, chainNode{chain: next, depth: node.depth + 1})
					extended = true
				}
			}
		}
		if !extended && len(node.chain) > 0 {
			complete = append(complete, node.chain)
		}
	}

	if hitLimit {
		// commit the best partial chain so far; the caller restarts from
		// its tail.
		return bestPartial, true
	}

	var best []model.BarcodeIndex
	bestScore := -1.0
	for _, conn := range complete {
		if mode == ModeConnect && !chainReachesTarget(state, conn, k, target, inc, settings) {
			continue
		}
		if s := chainScore(state, conn, k, settings); s > bestScore {
			bestScore = s
			best = conn
		}
	}
	if best == nil {
		return nil, false
	}

	// in extend mode, if a chosen neighbor sits just past the chain's
	// tail, append it so the gap-filler covers the remaining frames too.
	if mode != ModeConnect {
		if neigh := GetChosenNeighborTraj(state, k, seedIdx, inc > 0, frameLimit); neigh != -1 && seedK == k {
			tail := best[len(best)-1]
			tailTraj := state.Trajectories[tail.K][tail.I]
			neighTraj := state.Trajectories[k][neigh]
			var tailEnd, neighEdge int
			if inc > 0 {
				tailEnd = tailTraj.LastFrame()
				neighEdge = neighTraj.FirstFrame
			} else {
				tailEnd = tailTraj.FirstFrame
				neighEdge = neighTraj.LastFrame()
			}
			tailBC := edgeBarcode(state, tailTraj, tail.K, inc > 0)
			neighBC := edgeBarcode(state, neighTraj, k, inc < 0)
			if geom.Distance(tailBC, neighBC) <= MaxAllowedDistBetweenTrajs(tailEnd, neighEdge, tail.K == k) {
				best = append(best, model.BarcodeIndex{K: k, I: neigh})
			}
		}
	}
	return best, false
}

// edgeBarcode returns a trajectory's last barcode (atEnd) or first.
func edgeBarcode(state *model.State, t *model.Trajectory, k int, atEnd bool) *model.Barcode {
	if atEnd {
		return state.Frames[t.LastFrame()].Barcodes[k][t.BarcodeIndices[len(t.BarcodeIndices)-1]]
	}
	return state.Frames[t.FirstFrame].Barcodes[k][t.BarcodeIndices[0]]
}

func inChain(chain []model.BarcodeIndex, k, i int) bool {
	for _, c := range chain {
		if c.K == k && c.I == i {
			return true
		}
	}
	return false
}

// chainScore sums per-element cross-colorid scores toward destination k.
func chainScore(state *model.State, chain []model.BarcodeIndex, k int, settings config.Settings) float64 {
	var sum float64
	for _, c := range chain {
		sum += CrossScore(state.Trajectories[c.K][c.I], k, c.K, settings)
	}
	return sum
}

// chainReachesTarget checks that the chain's last trajectory ends close
// enough to the target trajectory's start barcode.
func chainReachesTarget(state *model.State, chain []model.BarcodeIndex, k, target, inc int, settings config.Settings) bool {
	tail := chain[len(chain)-1]
	tailTraj := state.Trajectories[tail.K][tail.I]
	targetTraj := state.Trajectories[k][target]
	tailBC := edgeBarcode(state, tailTraj, tail.K, inc > 0)
	targetBC := edgeBarcode(state, targetTraj, k, inc < 0)
	return geom.Distance(tailBC, targetBC) <= MaxAllowedDistBetweenTrajs(tailTraj.LastFrame(), targetTraj.FirstFrame, tail.K == k)
}
