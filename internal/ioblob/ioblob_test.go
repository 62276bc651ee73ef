package ioblob

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

func testAlphabet() config.ColorAlphabet {
	return config.NewColorAlphabet([]config.ColorID{{StrID: "RGB"}})
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.blobs")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadBlobFile(t *testing.T) {
	path := writeTemp(t, `# comment line

0 BLOBS 2 R 100 100 5 G 130 100 5
0 MD 1 115 100 80 40 0.5
1 BLOBS 1 B 160.5 99.5 4.5
`)
	frames, err := ReadBlobFile(path, 0, testAlphabet())
	require.NoError(t, err)
	require.Len(t, frames, 2)

	require.Len(t, frames[0].ColorBlobs, 2)
	assert.Equal(t, 0, frames[0].ColorBlobs[0].Color)
	assert.Equal(t, 100.0, frames[0].ColorBlobs[0].CenterX)
	require.Len(t, frames[0].MDBlobs, 1)
	assert.Equal(t, 80.0, frames[0].MDBlobs[0].AxisA)

	require.Len(t, frames[1].ColorBlobs, 1)
	assert.Equal(t, 160.5, frames[1].ColorBlobs[0].CenterX)
	assert.Equal(t, 4.5, frames[1].ColorBlobs[0].Radius)
}

func TestReadBlobFileMaxFrames(t *testing.T) {
	path := writeTemp(t, "0 BLOBS 1 R 1 1 1\n5 BLOBS 1 G 2 2 2\n")
	frames, err := ReadBlobFile(path, 3, testAlphabet())
	require.NoError(t, err)
	assert.Len(t, frames, 1, "frames at or past the limit are dropped")
}

func TestReadBlobFileErrorsNameLine(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{"bad frame", "x BLOBS 1 R 1 1 1\n", ":1:"},
		{"bad count", "0 BLOBS nope\n", ":1:"},
		{"truncated blobs", "0 BLOBS 2 R 1 1 1\n", ":1:"},
		{"unknown color", "0 BLOBS 1 Z 1 1 1\n", "unknown blob color"},
		{"unknown record", "0 WAT 0\n", "unknown record type"},
		{"bad value on later line", "0 BLOBS 1 R 1 1 1\n1 BLOBS 1 R x 1 1\n", ":2:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.content)
			_, err := ReadBlobFile(path, 0, testAlphabet())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestBarcodeWriterFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.barcodes")

	state := model.NewState([]string{"RGB"}, 2)
	bc := model.NewBarcode(130, 100, 3.14159265, model.FULLFOUND|model.CHOSEN, 3, nil)
	state.Frames[0].Barcodes[0] = []*model.Barcode{bc}
	deleted := model.NewBarcode(50, 50, 0, model.PARTLYFOUND_FROM_TDIST|model.DELETED, 3, nil)
	state.Frames[1].Barcodes[0] = []*model.Barcode{deleted}

	colorIDs := []config.ColorID{{StrID: "RGB", Symbol: "1"}}

	w, err := NewBarcodeWriter(path, 1, 2)
	require.NoError(t, err)
	require.NoError(t, w.WriteAll(state, colorIDs, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# number of IDs: 1")
	assert.Contains(t, text, "# number of frames: 2")
	assert.Contains(t, text, "FULLFOUND")

	lines := strings.Split(strings.TrimSpace(text), "\n")
	frame0 := lines[len(lines)-2]
	frame1 := lines[len(lines)-1]
	fields := strings.Split(frame0, "\t")
	require.GreaterOrEqual(t, len(fields), 9)
	assert.Equal(t, "0", fields[0])
	assert.Equal(t, "1", fields[1])
	assert.Equal(t, "RGB", fields[2])
	assert.Equal(t, "130.0", fields[3])
	assert.Equal(t, "100.0", fields[4])
	assert.Equal(t, "180.0", fields[7], "orientation written in degrees")
	assert.Equal(t, "1\t0", frame1, "deleted barcodes skipped when withDeleted is false")
}

func TestBarcodeWriterIncludesDeleted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.barcodes")
	state := model.NewState([]string{"RGB"}, 1)
	deleted := model.NewBarcode(50, 50, 0, model.PARTLYFOUND_FROM_TDIST|model.DELETED, 3, nil)
	state.Frames[0].Barcodes[0] = []*model.Barcode{deleted}

	w, err := NewBarcodeWriter(path, 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.WriteAll(state, []config.ColorID{{StrID: "RGB"}}, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "0\t1\tRGB"))
}

func TestLogWriterNUB(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	state := model.NewState([]string{"RGB"}, 1)
	state.Frames[0].ColorBlobs = []model.ColorBlob{
		{Color: 0, CenterX: 1, CenterY: 1},
		{Color: 1, CenterX: 2, CenterY: 2},
	}
	// blob 0 is claimed, blob 1 is not.
	bc := model.NewBarcode(1, 1, 0, model.PARTLYFOUND_FROM_TDIST, 3, []int{0})
	state.Frames[0].Barcodes[0] = []*model.Barcode{bc}
	state.Frames[0].ColorBlobs[0].BarcodeIndices = []model.BarcodeIndex{{K: 0, I: 0}}

	w, err := NewLogWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteAll(state))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "0\tNUB\t1\t1")
}
