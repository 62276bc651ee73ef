package trajectory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

// addBarcode places a barcode on a frame and returns its index.
func addBarcode(state *model.State, frame, k int, x, y float64, mfix model.MFix, mchips int) int {
	bc := model.NewBarcode(x, y, 0, mfix, mchips, nil)
	state.Frames[frame].Barcodes[k] = append(state.Frames[frame].Barcodes[k], bc)
	return len(state.Frames[frame].Barcodes[k]) - 1
}

func buildAll(state *model.State, settings config.Settings) {
	for f := 0; f < state.FrameCount(); f++ {
		InitializeTrajectoriesFrame(state, f, settings)
	}
}

func TestInitializeTrajectoriesContinuous(t *testing.T) {
	settings := testSettings("RGB")
	state := model.NewState(settings.StrIDs(), 3)
	for f := 0; f < 3; f++ {
		addBarcode(state, f, 0, 100+float64(f)*5, 100, model.FULLFOUND, 3)
	}
	buildAll(state, settings)

	require.Len(t, state.Trajectories[0], 1)
	tr := state.Trajectories[0][0]
	assert.Equal(t, 0, tr.FirstFrame)
	assert.Equal(t, 2, tr.LastFrame())
	assert.Equal(t, 3, tr.FullfoundCount)
	for f := 0; f < 3; f++ {
		assert.Contains(t, state.TrajsOnFrame[f][0], 0)
	}
}

func TestInitializeTrajectoriesJumpStartsNew(t *testing.T) {
	settings := testSettings("RGB")
	state := model.NewState(settings.StrIDs(), 2)
	addBarcode(state, 0, 0, 100, 100, model.FULLFOUND, 3)
	addBarcode(state, 1, 0, 900, 900, model.FULLFOUND, 3) // way beyond MAX_PERFRAME_DIST_MD
	buildAll(state, settings)

	assert.Len(t, state.Trajectories[0], 2, "a distant barcode starts a fresh trajectory")
}

func TestInitializeTrajectoriesBranchOnSplit(t *testing.T) {
	settings := testSettings("RGB")
	state := model.NewState(settings.StrIDs(), 2)
	addBarcode(state, 0, 0, 100, 100, model.FULLFOUND, 3)
	// two close candidates on the next frame: one extends, one branches.
	addBarcode(state, 1, 0, 105, 100, model.FULLFOUND, 3)
	addBarcode(state, 1, 0, 110, 100, model.PARTLYFOUND_FROM_TDIST, 3)
	buildAll(state, settings)

	assert.Len(t, state.Trajectories[0], 2)
	assert.Equal(t, 0, state.Trajectories[0][0].FirstFrame)
	assert.Equal(t, 1, state.Trajectories[0][1].FirstFrame, "the branch starts on the split frame")
}

func TestInitializeTrajectoriesSkipsDeleted(t *testing.T) {
	settings := testSettings("RGB")
	state := model.NewState(settings.StrIDs(), 1)
	addBarcode(state, 0, 0, 100, 100, model.FULLFOUND|model.DELETED, 3)
	buildAll(state, settings)
	assert.Empty(t, state.Trajectories[0])
}

func TestBarcodeFitsToTrajLast(t *testing.T) {
	settings := testSettings("RGB")
	frameA := model.NewFrame(1)
	frameB := model.NewFrame(1)

	last := model.NewBarcode(100, 100, 0, model.FULLFOUND, 3, nil)
	near := model.NewBarcode(120, 100, 0, model.FULLFOUND, 3, nil)
	mid := model.NewBarcode(180, 100, 0, model.FULLFOUND, 3, nil)
	far := model.NewBarcode(900, 100, 0, model.FULLFOUND, 3, nil)

	assert.True(t, BarcodeFitsToTrajLast(last, near, frameA, frameB, settings))
	assert.False(t, BarcodeFitsToTrajLast(last, mid, frameA, frameB, settings), "between thresholds without motion evidence")
	assert.False(t, BarcodeFitsToTrajLast(last, far, frameA, frameB, settings))

	// add a motion blob under both barcodes' blobs.
	frameA.ColorBlobs = []model.ColorBlob{{CenterX: 100, CenterY: 100}}
	frameA.MDBlobs = []model.MotionBlob{{CenterX: 140, CenterY: 100, AxisA: 100, AxisB: 50}}
	frameA.MDIndex = []int{0}
	frameB.ColorBlobs = []model.ColorBlob{{CenterX: 180, CenterY: 100}}
	frameB.MDBlobs = []model.MotionBlob{{CenterX: 140, CenterY: 100, AxisA: 100, AxisB: 50}}
	frameB.MDIndex = []int{0}
	last.BlobIndices[0] = 0
	mid.BlobIndices[0] = 0

	assert.True(t, BarcodeFitsToTrajLast(last, mid, frameA, frameB, settings), "motion corroboration widens the gate")
}

func TestMarkBarcodesFromTrajs(t *testing.T) {
	settings := testSettings("RGB")
	state := model.NewState(settings.StrIDs(), 2)
	addBarcode(state, 0, 0, 100, 100, model.FULLFOUND, 3)
	addBarcode(state, 1, 0, 105, 100, model.FULLFOUND, 3)
	addBarcode(state, 1, 0, 400, 400, model.FULLFOUND, 3)
	buildAll(state, settings)
	require.Len(t, state.Trajectories[0], 2)

	state.Trajectories[0][0].State = model.StateChosen
	chosen, deleted := MarkBarcodesFromTrajs(state, -1)

	assert.Equal(t, 2, chosen)
	assert.Equal(t, 1, deleted)
	assert.NotZero(t, state.Frames[0].Barcodes[0][0].MFix&model.CHOSEN)
	assert.NotZero(t, state.Frames[1].Barcodes[0][0].MFix&model.CHOSEN)
	assert.NotZero(t, state.Frames[1].Barcodes[0][1].MFix&model.DELETED)
}
