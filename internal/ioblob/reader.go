// Package ioblob reads the per-frame blob detections the pipeline consumes
// and writes the per-frame barcode table and the unused-blob log it
// produces. The text formats mirror trajognize's output.py; parsing is
// line-oriented and reports file and line number on every error, per the
// halt-on-parse-error policy.
package ioblob

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

// FrameBlobs is one frame's worth of typed input detections.
type FrameBlobs struct {
	ColorBlobs []model.ColorBlob
	MDBlobs    []model.MotionBlob
}

// ReadBlobFile reads a blob input file into per-frame detection lists.
// Format, one line per record, tab/space separated:
//
//	<frame> BLOBS <count> { <colorletter> <cx> <cy> <radius> }...
//	<frame> MD    <count> { <cx> <cy> <axisA> <axisB> <orientation_rad> }...
//
// Lines starting with '#' and blank lines are skipped. maxFrames > 0
// truncates the input after that many frames. Frames may appear in any
// order but every frame index below the maximum seen must make sense;
// missing frames simply stay empty (a frame with zero blobs produces zero
// barcodes downstream).
func ReadBlobFile(path string, maxFrames int, alphabet config.ColorAlphabet) ([]FrameBlobs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	defer f.Close()

	var frames []FrameBlobs
	grow := func(n int) {
		for len(frames) <= n {
			frames = append(frames, FrameBlobs{})
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<22)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, parseErr(path, lineNum, "expected frame, record type and count")
		}
		frameNum, err := strconv.Atoi(fields[0])
		if err != nil || frameNum < 0 {
			return nil, parseErr(path, lineNum, "bad frame number %q", fields[0])
		}
		if maxFrames > 0 && frameNum >= maxFrames {
			continue
		}
		count, err := strconv.Atoi(fields[2])
		if err != nil || count < 0 {
			return nil, parseErr(path, lineNum, "bad record count %q", fields[2])
		}
		grow(frameNum)

		switch fields[1] {
		case "BLOBS":
			if len(fields) != 3+4*count {
				return nil, parseErr(path, lineNum, "BLOBS record wants %d values, got %d", 4*count, len(fields)-3)
			}
			for b := 0; b < count; b++ {
				o := 3 + 4*b
				color, ok := alphabet.ToInt(rune(fields[o][0]))
				if !ok {
					return nil, parseErr(path, lineNum, "unknown blob color %q", fields[o])
				}
				vals, err := parseFloats(fields[o+1 : o+4])
				if err != nil {
					return nil, parseErr(path, lineNum, "bad blob values: %v", err)
				}
				frames[frameNum].ColorBlobs = append(frames[frameNum].ColorBlobs, model.ColorBlob{
					Color: color, CenterX: vals[0], CenterY: vals[1], Radius: vals[2],
				})
			}
		case "MD":
			if len(fields) != 3+5*count {
				return nil, parseErr(path, lineNum, "MD record wants %d values, got %d", 5*count, len(fields)-3)
			}
			for b := 0; b < count; b++ {
				o := 3 + 5*b
				vals, err := parseFloats(fields[o : o+5])
				if err != nil {
					return nil, parseErr(path, lineNum, "bad motion-blob values: %v", err)
				}
				frames[frameNum].MDBlobs = append(frames[frameNum].MDBlobs, model.MotionBlob{
					CenterX: vals[0], CenterY: vals[1], AxisA: vals[2], AxisB: vals[3], Orientation: vals[4],
				})
			}
		default:
			return nil, parseErr(path, lineNum, "unknown record type %q", fields[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return frames, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseErr(path string, line int, format string, args ...any) error {
	return fmt.Errorf("%w: %s:%d: %s", ErrParse, path, line, fmt.Sprintf(format, args...))
}
