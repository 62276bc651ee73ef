package conflict

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethology-lab/trajognize/internal/barcode"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

func testSettings() config.Settings {
	return config.Settings{
		MCHIPS:            3,
		MBASE:             6,
		MaxInRatDist:      50,
		AvgInRatDist:      30,
		MaxPerframeDist:   30,
		MaxPerframeDistMD: 100,
		ColorIDs:          []config.ColorID{{StrID: "RGB", Symbol: "1"}, {StrID: "OGB", Symbol: "2"}},
		TrajScoreMethod:   1,
	}
}

func quietLogger() *log.Logger {
	l := log.New(io.Discard)
	l.SetLevel(log.FatalLevel)
	return l
}

func TestGetGapConflicts(t *testing.T) {
	settings := testSettings()
	state := model.NewState(settings.StrIDs(), 5)
	for f := 0; f < 5; f++ {
		mfix := model.VIRTUAL | model.CHOSEN
		if f >= 1 && f <= 3 {
			mfix |= model.DEBUG
		}
		bc := model.NewBarcode(100, 100, 0, mfix, 3, nil)
		state.Frames[f].Barcodes[0] = append(state.Frames[f].Barcodes[0], bc)
	}

	conflicts := GetGapConflicts(state)
	require.Len(t, conflicts[0], 1)
	c := conflicts[0][0]
	assert.Equal(t, "gap", c.CType)
	assert.Equal(t, 1, c.FirstFrame)
	assert.Equal(t, 3, c.LastFrame())
	assert.Empty(t, conflicts[1])
}

// overlapState builds one frame where the chosen RGB and OGB barcodes share
// the B blob, preceded by a clean anchor frame, with a spare unused B blob
// available for the resolver.
func overlapState(t *testing.T) (*model.State, config.Settings) {
	t.Helper()
	settings := testSettings()
	alphabet := config.NewColorAlphabet(settings.ColorIDs)
	state := model.NewState(settings.StrIDs(), 2)
	r, _ := alphabet.ToInt('R')
	g, _ := alphabet.ToInt('G')
	b, _ := alphabet.ToInt('B')
	o, _ := alphabet.ToInt('O')

	for f := 0; f < 2; f++ {
		state.Frames[f].ColorBlobs = []model.ColorBlob{
			{Color: r, CenterX: 100, CenterY: 100, Radius: 5},
			{Color: g, CenterX: 130, CenterY: 100, Radius: 5},
			{Color: b, CenterX: 160, CenterY: 100, Radius: 5}, // shared on frame 1
			{Color: o, CenterX: 100, CenterY: 130, Radius: 5},
			{Color: g, CenterX: 130, CenterY: 130, Radius: 5},
			{Color: b, CenterX: 160, CenterY: 130, Radius: 5}, // OGB's own B
		}
	}

	// frame 0: both identities clean.
	rgb0 := model.NewBarcode(130, 100, 3.14159, model.FULLFOUND|model.CHOSEN, 3, []int{0, 1, 2})
	ogb0 := model.NewBarcode(130, 130, 3.14159, model.FULLFOUND|model.CHOSEN, 3, []int{3, 4, 5})
	state.Frames[0].Barcodes[0] = []*model.Barcode{rgb0}
	state.Frames[0].Barcodes[1] = []*model.Barcode{ogb0}
	barcode.UpdateBlobBarcodeIndices(rgb0, 0, 0, state.Frames[0].ColorBlobs)
	barcode.UpdateBlobBarcodeIndices(ogb0, 1, 0, state.Frames[0].ColorBlobs)

	// frame 1: OGB mistakenly grabbed RGB's B blob (index 2); its own B
	// (index 5) is left unused.
	rgb1 := model.NewBarcode(130, 100, 3.14159, model.FULLFOUND|model.CHOSEN|model.SHARESBLOB, 3, []int{0, 1, 2})
	ogb1 := model.NewBarcode(130, 120, 3.14159, model.FULLFOUND|model.CHOSEN|model.SHARESBLOB, 3, []int{3, 4, 2})
	state.Frames[1].Barcodes[0] = []*model.Barcode{rgb1}
	state.Frames[1].Barcodes[1] = []*model.Barcode{ogb1}
	barcode.UpdateBlobBarcodeIndices(rgb1, 0, 0, state.Frames[1].ColorBlobs)
	barcode.UpdateBlobBarcodeIndices(ogb1, 1, 0, state.Frames[1].ColorBlobs)

	return state, settings
}

func TestOverlapConflictDetectionAndResolution(t *testing.T) {
	state, settings := overlapState(t)

	conflicts := GetOverlapConflicts(state, settings)
	require.Len(t, conflicts[1], 1, "the OGB side is conflicted")
	c := conflicts[1][0]
	assert.Equal(t, "overlap", c.CType)
	assert.Equal(t, 1, c.FirstFrame)
	assert.Contains(t, c.CWith, 0)

	resolved := ResolveOverlapConflicts(state, conflicts, settings)
	assert.Equal(t, 1, resolved)

	ogb1 := state.Frames[1].Barcodes[1][0]
	assert.Equal(t, []int{3, 4, 5}, ogb1.BlobIndices, "shared B swapped for the unused one")
	assert.Zero(t, ogb1.MFix&model.SHARESBLOB)
	assert.Equal(t, model.StateDeleted, c.State, "conflict marked resolved")
	assert.NoError(t, barcode.CheckConsistency(state.Frames))
}

func TestGetNubConflicts(t *testing.T) {
	settings := testSettings()
	state := model.NewState(settings.StrIDs(), 1)
	alphabet := config.NewColorAlphabet(settings.ColorIDs)
	r, _ := alphabet.ToInt('R')
	state.Frames[0].ColorBlobs = []model.ColorBlob{{Color: r, CenterX: 500, CenterY: 500, Radius: 5}}

	// a soft-deleted trajectory over a free barcode, far from anything chosen.
	bc := model.NewBarcode(500, 500, 0, model.PARTLYFOUND_FROM_TDIST|model.DELETED, 3, nil)
	bc.BlobIndices[0] = 0
	state.Frames[0].Barcodes[0] = []*model.Barcode{bc}
	barcode.UpdateBlobBarcodeIndices(bc, 0, 0, state.Frames[0].ColorBlobs)

	tr := model.NewTrajectory(0, 0, 3)
	tr.BarcodeIndices = []int{0}
	tr.State = model.StateDeleted
	state.Trajectories[0] = append(state.Trajectories[0], tr)

	conflicts := GetNubConflicts(state, settings)
	require.Len(t, conflicts[0], 1)
	assert.Equal(t, "nub", conflicts[0][0].CType)
}

func TestCreateDatabaseEmptyState(t *testing.T) {
	settings := testSettings()
	state := model.NewState(settings.StrIDs(), 3)
	db := CreateDatabaseAndTryResolve(state, settings, quietLogger())
	require.NotNil(t, db)
	assert.Nil(t, db.Gap)
	assert.Zero(t, db.Resolved)
}
