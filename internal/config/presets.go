package config

// Preset name constants mirroring trajognize's historical project.py table
// (PROJECT_2011, PROJECT_MAZE, PROJECT_FISH, PROJECT_ANTS, PROJECT_ANTS_2019,
// PROJECT_STORKS). Each names a bundle of default thresholds that differed
// across the experiments this pipeline has been run on; an operator selects
// one by name via --preset instead of hand-assembling a Settings value.
const (
	Preset2011     = "2011"     // the original large rat colony experiment
	PresetMaze     = "maze"     // rat maze experiment
	PresetFish     = "fish"     // fish schooling experiment, looser distance thresholds
	PresetAnts     = "ants"     // ant colony experiment, small MCHIPS, tight distances
	PresetAnts2019 = "ants2019" // ant colony experiment, revised thresholds
	PresetStorks   = "storks"   // stork nest experiment
)

func init() {
	base := Settings{
		MCHIPS:            3,
		MBASE:             6,
		MaxInRatDist:      50,
		AvgInRatDist:      30,
		MaxPerframeDist:   30,
		MaxPerframeDistMD: 100,
		ImageWidth:        1920,
		ImageHeight:       1080,
		FPS:               25,
		FindBestTrajectories: FindBestTrajectoriesSettings{
			GoodScoreThreshold:              100,
			GoodForSureScoreThreshold:       200,
			MightBeBadScoreThreshold:        50,
			MightBeBadSumGoodScoreThreshold: 500,
			FrameLimit:                      1500,
		},
		TrajScoreMethod: 1,
	}

	preset2011 := base
	preset2011.ColorIDs = []ColorID{{StrID: "RGB", Symbol: "1"}, {StrID: "GBR", Symbol: "2"}}
	Register(Preset2011, preset2011)

	maze := base
	maze.ColorIDs = []ColorID{{StrID: "RGB", Symbol: "1"}}
	Register(PresetMaze, maze)

	fish := base
	fish.MaxInRatDist = 25
	fish.AvgInRatDist = 15
	fish.MaxPerframeDist = 40
	fish.MaxPerframeDistMD = 150
	fish.ColorIDs = []ColorID{{StrID: "RG", Symbol: "1"}}
	fish.MCHIPS = 2
	Register(PresetFish, fish)

	ants := base
	ants.MCHIPS = 1
	ants.MaxInRatDist = 15
	ants.AvgInRatDist = 10
	ants.ColorIDs = []ColorID{{StrID: "R", Symbol: "1"}, {StrID: "G", Symbol: "2"}, {StrID: "B", Symbol: "3"}}
	Register(PresetAnts, ants)

	ants2019 := ants
	ants2019.MaxPerframeDist = 20
	ants2019.MaxPerframeDistMD = 80
	Register(PresetAnts2019, ants2019)

	storks := base
	storks.MCHIPS = 3
	storks.MaxInRatDist = 120
	storks.AvgInRatDist = 80
	storks.MaxPerframeDist = 60
	storks.MaxPerframeDistMD = 220
	storks.ColorIDs = []ColorID{{StrID: "RGB", Symbol: "1"}, {StrID: "OGB", Symbol: "2"}}
	Register(PresetStorks, storks)
}
