// Package checkpoint saves and restores the pipeline's full in-memory
// state between phases (the debugsave/debugload mechanism), so a long run
// can be resumed at any phase boundary. Snapshots are gob-encoded,
// process-private Go data; each run is keyed by a random run ID so
// concurrent debug runs over the same input do not collide.
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/ethology-lab/trajognize/internal/model"
)

// snapshot is the gob-friendly mirror of model.State: the TrajsOnFrame
// map-of-sets is flattened to sorted index slices, everything else encodes
// directly.
type snapshot struct {
	ColorIDs     []string
	Frames       []*model.Frame
	Trajectories [][]*model.Trajectory
	TrajsOnFrame [][][]int // [frame][k] -> sorted trajectory indices
}

// NewRunID returns a fresh identifier for one processing run.
func NewRunID() string { return uuid.NewString() }

// Path names the snapshot file for a given run and phase level under dir.
func Path(dir, runID string, level int) string {
	return filepath.Join(dir, fmt.Sprintf("trajognize_%s_phase%02d.gob", runID, level))
}

// Save writes the state snapshot for one phase level.
func Save(dir, runID string, level int, state *model.State) error {
	snap := snapshot{
		ColorIDs:     state.ColorIDs,
		Frames:       state.Frames,
		Trajectories: state.Trajectories,
		TrajsOnFrame: make([][][]int, len(state.TrajsOnFrame)),
	}
	for f, perK := range state.TrajsOnFrame {
		snap.TrajsOnFrame[f] = make([][]int, len(state.ColorIDs))
		for k, set := range perK {
			indices := make([]int, 0, len(set))
			for i := range set {
				indices = append(indices, i)
			}
			sort.Ints(indices)
			snap.TrajsOnFrame[f][k] = indices
		}
	}

	path := Path(dir, runID, level)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checkpoint: creating %s: %w", path, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		return fmt.Errorf("checkpoint: encoding %s: %w", path, err)
	}
	return nil
}

// Load reads the snapshot for one phase level back into a model.State.
func Load(dir, runID string, level int) (*model.State, error) {
	path := Path(dir, runID, level)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: opening %s: %w", path, err)
	}
	defer f.Close()
	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("checkpoint: decoding %s: %w", path, err)
	}

	state := &model.State{
		ColorIDs:     snap.ColorIDs,
		Frames:       snap.Frames,
		Trajectories: snap.Trajectories,
		TrajsOnFrame: make([]map[int]map[int]struct{}, len(snap.TrajsOnFrame)),
	}
	for f, perK := range snap.TrajsOnFrame {
		state.TrajsOnFrame[f] = make(map[int]map[int]struct{}, len(perK))
		for k, indices := range perK {
			set := make(map[int]struct{}, len(indices))
			for _, i := range indices {
				set[i] = struct{}{}
			}
			state.TrajsOnFrame[f][k] = set
		}
	}
	return state, nil
}
