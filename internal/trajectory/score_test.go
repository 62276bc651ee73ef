package trajectory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

func testSettings(strids ...string) config.Settings {
	s := config.Settings{
		MCHIPS:            len(strids[0]),
		MBASE:             6,
		MaxInRatDist:      50,
		AvgInRatDist:      30,
		MaxPerframeDist:   30,
		MaxPerframeDistMD: 100,
		TrajScoreMethod:   1,
		FindBestTrajectories: config.FindBestTrajectoriesSettings{
			GoodScoreThreshold:              20,
			GoodForSureScoreThreshold:       40,
			MightBeBadScoreThreshold:        5,
			MightBeBadSumGoodScoreThreshold: 10,
			FrameLimit:                      1500,
		},
	}
	for i, id := range strids {
		s.ColorIDs = append(s.ColorIDs, config.ColorID{StrID: id, Symbol: string(rune('1' + i))})
	}
	return s
}

func TestScoreMethod1(t *testing.T) {
	settings := testSettings("RGB")
	tr := model.NewTrajectory(0, 0, 3)
	tr.BarcodeIndices = make([]int, 10)
	tr.ColorblobCount = []int{10, 9, 10}
	tr.FullfoundCount = 9
	tr.FullnoclusterCount = 8
	tr.SharesblobCount = 2
	tr.OffsetCount = -1

	// len + sum(colorblob) + (ff - sb + 2*fnc)/3 + offset
	want := 10.0 + 29.0 + (9.0-2.0+16.0)/3 + (-1.0)
	assert.InDelta(t, want, Score(tr, settings), 1e-9)
}

func TestScoreMethod2ClampsAtZero(t *testing.T) {
	settings := testSettings("RGB")
	settings.TrajScoreMethod = 2
	tr := model.NewTrajectory(0, 0, 3)
	tr.BarcodeIndices = make([]int, 10)
	tr.FullfoundCount = 1
	tr.SharesblobCount = 9
	assert.Zero(t, Score(tr, settings))
}

func TestCrossScoreConcentratedCoverage(t *testing.T) {
	settings := testSettings("RGB", "RGP")
	tr := model.NewTrajectory(0, 0, 3)
	tr.BarcodeIndices = make([]int, 6)
	// coverage on two of three positions: min position is 2 with count 0,
	// so dev = (6+6+0 - 3*0)/2 = 6.
	tr.ColorblobCount = []int{6, 6, 0}
	dev := (12.0 - 0.0) / 2
	want := 6.0 + (dev-0.0)/3
	assert.InDelta(t, want, CrossScore(tr, 1, 0, settings), 1e-9)

	// same colorid: identical to Score.
	assert.InDelta(t, Score(tr, settings), CrossScore(tr, 0, 0, settings), 1e-9)
}

func TestIndexOfLeastColor(t *testing.T) {
	tr := model.NewTrajectory(0, 0, 3)
	tr.ColorblobCount = []int{5, 2, 9}
	assert.Equal(t, 1, IndexOfLeastColor(tr))
	tr.ColorblobCount = []int{2, 2, 9}
	assert.Equal(t, 0, IndexOfLeastColor(tr), "ties resolve to the first position")
}

func TestMaxAllowedDistBetweenTrajs(t *testing.T) {
	tests := []struct {
		name      string
		a, b      int
		sameColor bool
		want      float64
	}{
		{"zero gap", 10, 10, true, 50},
		{"one frame", 10, 11, true, 55},
		{"ten frames caps", 10, 20, true, 100},
		{"hundred frames still capped", 0, 100, true, 100},
		{"reversed frames", 20, 10, true, 100},
		{"different color flat", 10, 500, false, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaxAllowedDistBetweenTrajs(tt.a, tt.b, tt.sameColor))
		})
	}
}

func TestMaxAllowedDistProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(0, 100000).Draw(t, "a")
		b := rapid.IntRange(0, 100000).Draw(t, "b")
		d := MaxAllowedDistBetweenTrajs(a, b, true)
		if d < 50 || d > 100 {
			t.Fatalf("same-color distance %v outside [50,100]", d)
		}
		if MaxAllowedDistBetweenTrajs(a, b, false) != 50 {
			t.Fatalf("cross-color distance must be 50")
		}
		if d != MaxAllowedDistBetweenTrajs(b, a, true) {
			t.Fatalf("distance must be symmetric in frames")
		}
	})
}

func TestCouldBeAnotherColorID(t *testing.T) {
	settings := testSettings("RGB", "RGP")
	state := model.NewState(settings.StrIDs(), 1)

	tr := model.NewTrajectory(0, 0, 3)
	tr.BarcodeIndices = []int{0}
	tr.State = model.StateDeleted
	tr.ColorblobCount = []int{5, 5, 1} // mismatch position 2 least seen
	state.Trajectories[0] = append(state.Trajectories[0], tr)

	// "RGB" -> "RGP": shared token "RG", mismatch at position 2.
	assert.True(t, CouldBeAnotherColorID(state, 0, 0, 1, settings))

	tr.State = model.StateInitialized
	assert.False(t, CouldBeAnotherColorID(state, 0, 0, 1, settings), "only deleted trajectories qualify")

	tr.State = model.StateDeleted
	tr.ColorblobCount = []int{1, 5, 5} // least-seen position no longer matches
	assert.False(t, CouldBeAnotherColorID(state, 0, 0, 1, settings))

	tr.ColorblobCount = []int{5, 5, 1}
	tr.K = 1 // already retargeted
	assert.False(t, CouldBeAnotherColorID(state, 0, 0, 1, settings))
}

func TestIsTrajGood(t *testing.T) {
	settings := testSettings("RGB")
	tr := model.NewTrajectory(0, 0, 3)
	tr.BarcodeIndices = make([]int, 10)
	tr.ColorblobCount = []int{10, 10, 10}
	assert.True(t, IsTrajGood(tr, settings, 20))
	assert.False(t, IsTrajGood(tr, settings, 100))
}
