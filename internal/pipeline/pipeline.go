// Package pipeline drives the ten-phase batch over one video's frames:
// index construction, full-barcode detection, overlap filtering, partial
// propagation in both directions, reconciliation, trajectory building,
// selection and finalization, ending with the conflict scan. Grounded on
// trajognize's main.py phase driver.
package pipeline

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/ethology-lab/trajognize/internal/barcode"
	"github.com/ethology-lab/trajognize/internal/checkpoint"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/conflict"
	"github.com/ethology-lab/trajognize/internal/index"
	"github.com/ethology-lab/trajognize/internal/ioblob"
	"github.com/ethology-lab/trajognize/internal/model"
	"github.com/ethology-lab/trajognize/internal/propagate"
	"github.com/ethology-lab/trajognize/internal/trajectory"
)

// Options carries everything the command line can configure.
type Options struct {
	InputFile    string
	ColorIDFile  string
	CalibFile    string
	OutputPath   string
	MaxFrames    int  // 0 means all
	NoTrajectory bool // skip phases 8-10
	NoDeleted    bool // skip deleted barcodes in the output table
	DebugLoad    int  // phase level to resume from (0 = none)
	DebugSave    int  // phase level to checkpoint at (0 = none)
	DebugEnd     int  // phase level to stop after (0 = none)
	Force        bool
	Preset       string
	CheckpointDir string
	RunID        string
	// EntryTimesFile optionally names a YAML interval log of frames to
	// excise from conflict reporting (someone was inside the enclosure).
	EntryTimesFile string
}

// BuildState assembles the initial per-frame State from parsed input
// detections.
func BuildState(frames []ioblob.FrameBlobs, settings config.Settings) *model.State {
	state := model.NewState(settings.StrIDs(), len(frames))
	for f, fb := range frames {
		state.Frames[f].ColorBlobs = fb.ColorBlobs
		state.Frames[f].MDBlobs = fb.MDBlobs
	}
	return state
}

// Phase2Indices computes the spatial and temporal proximity structures,
// the blob clusters and the motion-blob association for every frame.
func Phase2Indices(state *model.State, settings config.Settings) {
	for f, frame := range state.Frames {
		frame.SpatialNear = index.SpatialNear(frame.ColorBlobs, settings.MaxInRatDist)
		frame.Clusters, frame.ClusterOf = index.Clusters(frame.SpatialNear, 0)
		frame.MDIndex = index.FindMDUnderBlobs(frame.ColorBlobs, frame.MDBlobs)
		if f > 0 {
			prev := state.Frames[f-1]
			frame.TemporalPrev = index.TemporalPrev(
				prev.ColorBlobs, frame.ColorBlobs,
				prev.MDBlobs, frame.MDBlobs,
				prev.MDIndex, frame.MDIndex,
				settings.MaxPerframeDist, settings.MaxPerframeDistMD)
		}
	}
}

// Phase3Detect finds every full barcode on every frame.
func Phase3Detect(state *model.State, settings config.Settings, alphabet config.ColorAlphabet) {
	for _, frame := range state.Frames {
		barcode.DetectFullBarcodes(frame, settings, alphabet)
	}
}

// Phase4Filter removes overlapping and same-id duplicate full barcodes and
// stamps the nocluster property.
func Phase4Filter(state *model.State, settings config.Settings, alphabet config.ColorAlphabet) {
	for _, frame := range state.Frames {
		for _, cluster := range frame.Clusters {
			barcode.RemoveOverlappingFullfound(frame.Barcodes, frame.ColorBlobs, cluster)
		}
		for k, bcs := range frame.Barcodes {
			barcode.RemoveCloseSharesID(bcs, frame.ColorBlobs, k, settings.ColorIDs[k].StrID,
				alphabet, settings.MaxInRatDist, settings.AvgInRatDist, 0)
		}
		barcode.SetSharedMFixFlags(frame.Barcodes, frame.ColorBlobs, settings.MaxInRatDist, settings.MCHIPS)
		barcode.SetNoClusterProperty(frame.Barcodes, frame.ColorBlobs, frame.Clusters, settings.MCHIPS)
	}
}

// Phase5Forward propagates partial barcodes forward in time from
// previous-frame evidence, recovering stranded clusters as it goes.
func Phase5Forward(state *model.State, settings config.Settings, alphabet config.ColorAlphabet) {
	for f := 1; f < state.FrameCount(); f++ {
		frame := state.Frames[f]
		propagate.FindPartlyfoundFromTdist(frame, state.Frames[f-1].Barcodes, frame.TemporalPrev, settings, alphabet)
		propagate.RecoverStrandedClusters(state.Frames, f, settings, alphabet)
	}
}

// Phase6Backward is the mirror pass: the temporal lists are rebuilt with
// the frame roles swapped so each frame's blobs map onto the frame after
// it, and propagation walks the video back to front.
func Phase6Backward(state *model.State, settings config.Settings, alphabet config.ColorAlphabet) {
	for f := state.FrameCount() - 2; f >= 0; f-- {
		frame := state.Frames[f]
		next := state.Frames[f+1]
		temporalNext := index.TemporalPrev(
			next.ColorBlobs, frame.ColorBlobs,
			next.MDBlobs, frame.MDBlobs,
			next.MDIndex, frame.MDIndex,
			settings.MaxPerframeDist, settings.MaxPerframeDistMD)
		propagate.FindPartlyfoundFromTdist(frame, next.Barcodes, temporalNext, settings, alphabet)
		propagate.RecoverStrandedClusters(state.Frames, f, settings, alphabet)
	}
}

// Phase7Reconcile merges or deletes same-id near-duplicates and refreshes
// the shared flags, frame by frame.
func Phase7Reconcile(state *model.State, settings config.Settings, alphabet config.ColorAlphabet) {
	for _, frame := range state.Frames {
		propagate.Reconcile(frame, settings, alphabet)
	}
}

// Phase8Build forms the candidate trajectories.
func Phase8Build(state *model.State, settings config.Settings) {
	for f := 0; f < state.FrameCount(); f++ {
		trajectory.InitializeTrajectoriesFrame(state, f, settings)
	}
}

// Phase9Select runs best-trajectory selection, connection and color
// change.
func Phase9Select(state *model.State, settings config.Settings, logger *log.Logger) {
	trajectory.FindBestTrajectories(state, settings, logger)
}

// Phase10Finalize extends, gap-fills and enhances the chosen trajectories,
// then scans for residual conflicts.
func Phase10Finalize(state *model.State, settings config.Settings, logger *log.Logger) *conflict.Database {
	trajectory.FinalizeTrajectories(state, settings, logger)
	return conflict.CreateDatabaseAndTryResolve(state, settings, logger)
}

// Process runs phases 2-10 on an already-built state, verifying the
// blob/barcode back-reference graph after every phase; any violation is
// fatal and aborts the run. Returns the conflict database from phase 10,
// or nil when trajectory phases were skipped.
func Process(state *model.State, settings config.Settings, opts Options, logger *log.Logger) (*conflict.Database, error) {
	alphabet := config.NewColorAlphabet(settings.ColorIDs)
	propagate.SetLogger(logger)

	type phase struct {
		level int
		name  string
		run   func()
	}
	var db *conflict.Database
	phases := []phase{
		{2, "spatial/temporal/cluster/md indices", func() { Phase2Indices(state, settings) }},
		{3, "full-barcode detection", func() { Phase3Detect(state, settings, alphabet) }},
		{4, "overlap and shares-id filtering", func() { Phase4Filter(state, settings, alphabet) }},
		{5, "forward partial propagation", func() { Phase5Forward(state, settings, alphabet) }},
		{6, "backward partial propagation", func() { Phase6Backward(state, settings, alphabet) }},
		{7, "partial-barcode reconciliation", func() { Phase7Reconcile(state, settings, alphabet) }},
		{8, "trajectory building", func() { Phase8Build(state, settings) }},
		{9, "trajectory selection", func() { Phase9Select(state, settings, logger) }},
		{10, "finalization and conflicts", func() { db = Phase10Finalize(state, settings, logger) }},
	}

	for _, p := range phases {
		if opts.DebugLoad >= p.level {
			continue // state already carries this phase's results
		}
		if opts.NoTrajectory && p.level >= 8 {
			logger.Info("skipping trajectory phases", "from", p.level)
			break
		}
		logger.Info("phase starting", "level", p.level, "name", p.name)
		p.run()
		if err := barcode.CheckConsistency(state.Frames); err != nil {
			return nil, fmt.Errorf("after phase %d (%s): %w", p.level, p.name, err)
		}
		if opts.DebugSave == p.level && opts.CheckpointDir != "" {
			if err := checkpoint.Save(opts.CheckpointDir, opts.RunID, p.level, state); err != nil {
				return nil, err
			}
			logger.Info("checkpoint saved", "level", p.level)
		}
		if opts.DebugEnd == p.level {
			logger.Info("stopping at requested phase", "level", p.level)
			break
		}
	}
	return db, nil
}

// Run is the full batch: load the colorid table and blob input, process
// every phase, and write the barcode table and the unused-blob log.
func Run(opts Options, logger *log.Logger) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	alphabet := config.NewColorAlphabet(settings.ColorIDs)

	var state *model.State
	if opts.DebugLoad > 0 && opts.CheckpointDir != "" {
		state, err = checkpoint.Load(opts.CheckpointDir, opts.RunID, opts.DebugLoad)
		if err != nil {
			return err
		}
		logger.Info("checkpoint loaded", "level", opts.DebugLoad)
	} else {
		frames, err := ioblob.ReadBlobFile(opts.InputFile, opts.MaxFrames, alphabet)
		if err != nil {
			return err
		}
		state = BuildState(frames, settings)
		logger.Info("blob input loaded", "frames", state.FrameCount())
	}

	db, err := Process(state, settings, opts, logger)
	if err != nil {
		return err
	}
	if db != nil && opts.EntryTimesFile != "" {
		entryTimes, err := config.LoadEntryTimes(opts.EntryTimesFile)
		if err != nil {
			return err
		}
		dropped := ExciseEntryTimeConflicts(db, entryTimes)
		logger.Info("entry-time conflicts excised", "dropped", dropped)
	}

	bw, err := ioblob.NewBarcodeWriter(opts.OutputPath+".barcodes", state.NumColorIDs(), state.FrameCount())
	if err != nil {
		return err
	}
	if err := bw.WriteAll(state, settings.ColorIDs, !opts.NoDeleted); err != nil {
		return err
	}
	lw, err := ioblob.NewLogWriter(opts.OutputPath + ".log")
	if err != nil {
		return err
	}
	return lw.WriteAll(state)
}

// loadSettings resolves the effective Settings: a named preset when given,
// overlaid with the colorid table from disk when one is named.
func loadSettings(opts Options) (config.Settings, error) {
	settings, err := config.Get(opts.Preset)
	if err != nil {
		return config.Settings{}, err
	}
	if opts.ColorIDFile != "" {
		colorIDs, err := config.LoadColorIDs(opts.ColorIDFile)
		if err != nil {
			return config.Settings{}, err
		}
		settings.ColorIDs = colorIDs
	}
	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}
