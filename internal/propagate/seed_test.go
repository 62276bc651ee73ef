package propagate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethology-lab/trajognize/internal/barcode"
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/index"
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
		ColorIDs:          []config.ColorID{{StrID: "RGB", Symbol: "1"}},
		TrajScoreMethod:   1,
	}
}

func buildFrame(settings config.Settings, blobs []model.ColorBlob) *model.Frame {
	frame := model.NewFrame(len(settings.ColorIDs))
	frame.ColorBlobs = blobs
	frame.SpatialNear = index.SpatialNear(blobs, settings.MaxInRatDist)
	frame.Clusters, frame.ClusterOf = index.Clusters(frame.SpatialNear, 0)
	frame.MDIndex = index.FindMDUnderBlobs(blobs, nil)
	return frame
}

func rgb(alphabet config.ColorAlphabet, y float64, skip ...rune) []model.ColorBlob {
	skipSet := map[rune]bool{}
	for _, r := range skip {
		skipSet[r] = true
	}
	var out []model.ColorBlob
	for p, letter := range "RGB" {
		if skipSet[letter] {
			continue
		}
		c, _ := alphabet.ToInt(letter)
		out = append(out, model.ColorBlob{Color: c, CenterX: 100 + float64(p)*30, CenterY: y, Radius: 5})
	}
	return out
}

func TestFindPartlyfoundFromTdistMissingMiddle(t *testing.T) {
	settings := testSettings()
	alphabet := config.NewColorAlphabet(settings.ColorIDs)

	// previous frame holds a full RGB barcode; the current frame misses G.
	prev := buildFrame(settings, rgb(alphabet, 100))
	full := model.NewBarcode(130, 100, 3.14159, model.FULLFOUND, 3, []int{0, 1, 2})
	prev.Barcodes[0] = []*model.Barcode{full}
	barcode.UpdateBlobBarcodeIndices(full, 0, 0, prev.ColorBlobs)

	cur := buildFrame(settings, rgb(alphabet, 100, 'G'))
	temporalPrev := index.TemporalPrev(prev.ColorBlobs, cur.ColorBlobs, nil, nil,
		prev.MDIndex, cur.MDIndex, settings.MaxPerframeDist, settings.MaxPerframeDistMD)

	FindPartlyfoundFromTdist(cur, prev.Barcodes, temporalPrev, settings, alphabet)

	require.Len(t, cur.Barcodes[0], 1)
	bc := cur.Barcodes[0][0]
	assert.NotZero(t, bc.MFix&model.PARTLYFOUND_FROM_TDIST)
	assert.Zero(t, bc.MFix&model.FULLFOUND)
	// cur blobs: index 0 is R, index 1 is B (G was skipped).
	assert.Equal(t, []int{0, model.NoBlob, 1}, bc.BlobIndices)
	assert.InDelta(t, 130, bc.CenterX, 2)
	assert.InDelta(t, 100, bc.CenterY, 2)
	assert.NoError(t, barcode.CheckConsistency([]*model.Frame{cur}))
}

func TestFindPartlyfoundSkipsUsedBlobs(t *testing.T) {
	settings := testSettings()
	alphabet := config.NewColorAlphabet(settings.ColorIDs)

	prev := buildFrame(settings, rgb(alphabet, 100))
	full := model.NewBarcode(130, 100, 0, model.FULLFOUND, 3, []int{0, 1, 2})
	prev.Barcodes[0] = []*model.Barcode{full}
	barcode.UpdateBlobBarcodeIndices(full, 0, 0, prev.ColorBlobs)

	// current frame already carries its own full barcode over all blobs.
	cur := buildFrame(settings, rgb(alphabet, 100))
	curFull := model.NewBarcode(130, 100, 0, model.FULLFOUND, 3, []int{0, 1, 2})
	cur.Barcodes[0] = []*model.Barcode{curFull}
	barcode.UpdateBlobBarcodeIndices(curFull, 0, 0, cur.ColorBlobs)

	temporalPrev := index.TemporalPrev(prev.ColorBlobs, cur.ColorBlobs, nil, nil,
		prev.MDIndex, cur.MDIndex, settings.MaxPerframeDist, settings.MaxPerframeDistMD)
	FindPartlyfoundFromTdist(cur, prev.Barcodes, temporalPrev, settings, alphabet)

	require.Len(t, cur.Barcodes[0], 1, "no duplicate barcode is created")
	assert.Equal(t, model.FULLFOUND, curFull.MFix, "existing barcode's mfix is untouched")
}

func TestFindPartlyfoundCompletesWithUnusedBlob(t *testing.T) {
	settings := testSettings()
	alphabet := config.NewColorAlphabet(settings.ColorIDs)

	prev := buildFrame(settings, rgb(alphabet, 100))
	full := model.NewBarcode(130, 100, 0, model.FULLFOUND, 3, []int{0, 1, 2})
	prev.Barcodes[0] = []*model.Barcode{full}
	barcode.UpdateBlobBarcodeIndices(full, 0, 0, prev.ColorBlobs)

	// current frame has all three blobs, but suppose the temporal index
	// only links R and B (G moved slightly too far): the G blob is then
	// recovered through the missing-blob search.
	cur := buildFrame(settings, rgb(alphabet, 100))
	temporalPrev := index.TemporalPrev(prev.ColorBlobs, cur.ColorBlobs, nil, nil,
		prev.MDIndex, cur.MDIndex, settings.MaxPerframeDist, settings.MaxPerframeDistMD)
	temporalPrev[1] = nil // sever G's temporal link

	FindPartlyfoundFromTdist(cur, prev.Barcodes, temporalPrev, settings, alphabet)

	require.Len(t, cur.Barcodes[0], 1)
	bc := cur.Barcodes[0][0]
	assert.Equal(t, []int{0, 1, 2}, bc.BlobIndices)
	assert.NotZero(t, bc.MFix&model.FULLFOUND, "completed chain is promoted")
}

func TestRecoverStrandedClusters(t *testing.T) {
	settings := testSettings()
	alphabet := config.NewColorAlphabet(settings.ColorIDs)

	frames := make([]*model.Frame, 3)
	// frame 0 carries an established barcode nearby.
	frames[0] = buildFrame(settings, rgb(alphabet, 100))
	anchor := model.NewBarcode(130, 100, 0, model.FULLFOUND, 3, []int{0, 1, 2})
	frames[0].Barcodes[0] = []*model.Barcode{anchor}
	barcode.UpdateBlobBarcodeIndices(anchor, 0, 0, frames[0].ColorBlobs)

	// frame 1: a two-blob cluster (R, G) that nothing claimed.
	frames[1] = buildFrame(settings, rgb(alphabet, 110, 'B'))
	frames[2] = buildFrame(settings, nil)

	RecoverStrandedClusters(frames, 1, settings, alphabet)

	require.Len(t, frames[1].Barcodes[0], 1)
	bc := frames[1].Barcodes[0][0]
	assert.NotZero(t, bc.MFix&model.PARTLYFOUND_FROM_TDIST)
	assert.Equal(t, 0, bc.BlobIndices[0], "R blob assigned to position 0")
	assert.Equal(t, 1, bc.BlobIndices[1], "G blob assigned to position 1")
	assert.Equal(t, model.NoBlob, bc.BlobIndices[2])
}

func TestReconcileMergesForwardBackwardPartials(t *testing.T) {
	settings := testSettings()
	alphabet := config.NewColorAlphabet(settings.ColorIDs)

	frame := buildFrame(settings, rgb(alphabet, 100))
	fwd := model.NewBarcode(115, 100, 0, model.PARTLYFOUND_FROM_TDIST, 3, nil)
	fwd.BlobIndices[0] = 0
	fwd.BlobIndices[1] = 1
	bwd := model.NewBarcode(160, 100, 0, model.PARTLYFOUND_FROM_TDIST, 3, nil)
	bwd.BlobIndices[2] = 2
	frame.Barcodes[0] = []*model.Barcode{fwd, bwd}
	barcode.UpdateBlobBarcodeIndices(fwd, 0, 0, frame.ColorBlobs)
	barcode.UpdateBlobBarcodeIndices(bwd, 0, 1, frame.ColorBlobs)

	Reconcile(frame, settings, alphabet)

	alive := 0
	for _, bc := range frame.Barcodes[0] {
		if bc.MFix != 0 {
			alive++
			assert.NotZero(t, bc.MFix&model.FULLFOUND)
			assert.Equal(t, []int{0, 1, 2}, bc.BlobIndices)
		}
	}
	assert.Equal(t, 1, alive)
	assert.NoError(t, barcode.CheckConsistency([]*model.Frame{frame}))
}
