package ioblob

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ethology-lab/trajognize/internal/barcode"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

// BarcodeWriter streams the per-frame chosen barcode table. Layout mirrors
// trajognize's output.py barcode_textfile_*: a header naming the colorid
// count, the frame count and the mfix bit legend, then one line per frame:
//
//	framenum  count  [strid  cx  cy  xWorld  yWorld  orientation_deg  mfix]*
//
// No calibration is applied: xWorld and yWorld are always written as zero.
type BarcodeWriter struct {
	f *os.File
	w *bufio.Writer
}

// NewBarcodeWriter creates (truncating) the output file and writes the
// header.
func NewBarcodeWriter(path string, numIDs, numFrames int) (*BarcodeWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ioblob: creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# number of IDs: %d\n", numIDs)
	fmt.Fprintf(w, "# number of frames: %d\n", numFrames)
	fmt.Fprintln(w, "# mfix bit values:")
	for _, line := range model.Legend() {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, "# fix width format: framenum barcodenum {ID centerx centery xWorld yWorld orientation mFix} {...")
	fmt.Fprintln(w)
	return &BarcodeWriter{f: f, w: w}, nil
}

// WriteFrame emits one frame's barcode line. Permanently deleted barcodes
// (mfix 0) are always skipped; soft-deleted ones are skipped when
// withDeleted is false.
func (bw *BarcodeWriter) WriteFrame(frame *model.Frame, frameNum int, colorIDs []config.ColorID, withDeleted bool) error {
	type entry struct {
		strid string
		bc    *model.Barcode
	}
	var entries []entry
	for k, bcs := range frame.Barcodes {
		for _, bc := range bcs {
			if bc.MFix == 0 {
				continue
			}
			if !withDeleted && bc.MFix&model.DELETED != 0 {
				continue
			}
			entries = append(entries, entry{colorIDs[k].StrID, bc})
		}
	}
	fmt.Fprintf(bw.w, "%d\t%d", frameNum, len(entries))
	for _, e := range entries {
		fmt.Fprintf(bw.w, "\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%d",
			e.strid, e.bc.CenterX, e.bc.CenterY, 0.0, 0.0,
			e.bc.Orientation*180/math.Pi, e.bc.MFix)
	}
	fmt.Fprintln(bw.w)
	return nil
}

// WriteAll emits every frame and closes the file.
func (bw *BarcodeWriter) WriteAll(state *model.State, colorIDs []config.ColorID, withDeleted bool) error {
	for frameNum, frame := range state.Frames {
		if err := bw.WriteFrame(frame, frameNum, colorIDs, withDeleted); err != nil {
			return err
		}
	}
	return bw.Close()
}

// Close flushes and closes the underlying file.
func (bw *BarcodeWriter) Close() error {
	if err := bw.w.Flush(); err != nil {
		bw.f.Close()
		return err
	}
	return bw.f.Close()
}

// LogWriter streams the per-frame unused-blob log.
type LogWriter struct {
	f *os.File
	w *bufio.Writer
}

// NewLogWriter creates the log file and writes its header.
func NewLogWriter(path string) (*LogWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ioblob: creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# trajognize log file created on %s\n\n", time.Now().Format(time.RFC3339))
	fmt.Fprintln(w, "# Log file format: frame warningtype params")
	fmt.Fprintln(w, "# Log file entry types:")
	fmt.Fprintln(w, "#   NUB blobcount list_of_blob_indices -- not used blob indices (pointing to the blob input file)")
	fmt.Fprintln(w)
	return &LogWriter{f: f, w: w}, nil
}

// WriteFrame emits the NUB entry for one frame.
func (lw *LogWriter) WriteFrame(frame *model.Frame, frameNum int) {
	nub := barcode.NotUsedBlobIndices(frame.ColorBlobs, frame.Barcodes)
	fmt.Fprintf(lw.w, "%d\tNUB\t%d", frameNum, len(nub))
	for _, i := range nub {
		fmt.Fprintf(lw.w, "\t%d", i)
	}
	fmt.Fprintln(lw.w)
}

// WriteAll emits every frame's NUB entry and closes the file.
func (lw *LogWriter) WriteAll(state *model.State) error {
	for frameNum, frame := range state.Frames {
		lw.WriteFrame(frame, frameNum)
	}
	return lw.Close()
}

// Close flushes and closes the underlying file.
func (lw *LogWriter) Close() error {
	if err := lw.w.Flush(); err != nil {
		lw.f.Close()
		return err
	}
	return lw.f.Close()
}
