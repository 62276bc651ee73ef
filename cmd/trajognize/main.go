// Command trajognize reconstructs per-identity trajectories from a
// per-frame color-blob detection stream.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"

	"github.com/ethology-lab/trajognize/internal/checkpoint"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/ioblob"
	"github.com/ethology-lab/trajognize/internal/pipeline"
)

func main() {
	opts := pipeline.Options{}
	var verbose bool

	flag.StringVarP(&opts.InputFile, "inputfile", "i", "", "input blob file")
	flag.StringVarP(&opts.ColorIDFile, "coloridfile", "c", "", "colorid table file (overrides the preset's table)")
	flag.StringVarP(&opts.CalibFile, "calibfile", "k", "", "calibration file (accepted but not read; world coordinates are always written as zero)")
	flag.StringVarP(&opts.OutputPath, "outputpath", "o", "", "output path prefix (.barcodes and .log are appended)")
	flag.IntVarP(&opts.MaxFrames, "framenum", "n", 0, "maximum number of frames to process (0 = all)")
	flag.BoolVar(&opts.NoTrajectory, "nt", false, "skip trajectory phases (8-10)")
	flag.BoolVar(&opts.NoDeleted, "nd", false, "skip writing deleted barcodes")
	flag.IntVar(&opts.DebugLoad, "dl", 0, "load a saved debug environment at this phase level")
	flag.IntVar(&opts.DebugSave, "ds", 0, "save the debug environment at this phase level")
	flag.IntVar(&opts.DebugEnd, "de", 0, "stop after this phase level")
	flag.BoolVarP(&opts.Force, "force", "f", false, "overwrite existing output files")
	flag.StringVar(&opts.Preset, "preset", config.Preset2011, "named settings preset ("+strings.Join(config.List(), ", ")+")")
	flag.StringVar(&opts.CheckpointDir, "checkpointdir", ".", "directory for debug checkpoints")
	flag.StringVar(&opts.RunID, "runid", "", "run identifier for checkpoints (random if empty)")
	flag.StringVar(&opts.EntryTimesFile, "entrytimes", "", "entry-time interval file (optional)")
	flag.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "trajognize"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	path, version := pipeline.VersionInfo()
	logger.Info("starting", "module", path, "version", version)

	if opts.InputFile == "" && opts.DebugLoad == 0 {
		logger.Error("missing required flag", "flag", "--inputfile")
		flag.Usage()
		os.Exit(2)
	}
	if opts.OutputPath == "" {
		logger.Error("missing required flag", "flag", "--outputpath")
		flag.Usage()
		os.Exit(2)
	}
	if opts.RunID == "" {
		opts.RunID = checkpoint.NewRunID()
	}
	if !opts.Force {
		if _, err := os.Stat(opts.OutputPath + ".barcodes"); err == nil {
			logger.Error("output exists, use --force to overwrite", "path", opts.OutputPath+".barcodes")
			os.Exit(2)
		}
	}

	if err := pipeline.Run(opts, logger); err != nil {
		switch {
		case errors.Is(err, ioblob.ErrParse), errors.Is(err, config.ErrInvalidColorID),
			errors.Is(err, config.ErrInvalidSettings), errors.Is(err, config.ErrPresetNotFound):
			logger.Error("input error", "err", err)
			os.Exit(2)
		default:
			logger.Error("fatal", "err", err)
			os.Exit(1)
		}
	}
	fmt.Fprintln(os.Stderr, "done")
}
