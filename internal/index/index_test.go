package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethology-lab/trajognize/internal/model"
)

func blob(color int, x, y float64) model.ColorBlob {
	return model.ColorBlob{Color: color, CenterX: x, CenterY: y, Radius: 5}
}

func TestSpatialNear(t *testing.T) {
	// three blobs in a row 40 px apart: adjacent pairs are close (<=50),
	// the outer pair is second-close (80 <= 100).
	blobs := []model.ColorBlob{blob(0, 0, 0), blob(1, 40, 0), blob(2, 80, 0)}
	near := SpatialNear(blobs, 50)

	require.Len(t, near, 3)
	assert.ElementsMatch(t, []int{1}, near[0][0])
	assert.ElementsMatch(t, []int{2}, near[0][1])
	assert.ElementsMatch(t, []int{0, 2}, near[1][0])
	assert.Empty(t, near[1][1])
	assert.ElementsMatch(t, []int{1}, near[2][0])
	assert.ElementsMatch(t, []int{0}, near[2][1])
}

func TestSpatialNearSymmetry(t *testing.T) {
	blobs := []model.ColorBlob{blob(0, 0, 0), blob(0, 30, 10), blob(0, 70, 20), blob(0, 200, 0)}
	near := SpatialNear(blobs, 50)
	for i := range near {
		for level := 0; level < 2; level++ {
			for _, j := range near[i][level] {
				assert.Contains(t, near[j][level], i, "near[%d][%d] contains %d but not vice versa", i, level, j)
			}
		}
	}
}

func TestClusters(t *testing.T) {
	// blobs 0-1-2 chained, blob 3 alone.
	blobs := []model.ColorBlob{blob(0, 0, 0), blob(1, 40, 0), blob(2, 80, 0), blob(0, 500, 0)}
	near := SpatialNear(blobs, 50)
	clusters, clusterOf := Clusters(near, 0)

	require.Len(t, clusters, 2)
	assert.ElementsMatch(t, []int{0, 1, 2}, clusters[0])
	assert.ElementsMatch(t, []int{3}, clusters[1])
	assert.Equal(t, clusterOf[0], clusterOf[1])
	assert.Equal(t, clusterOf[1], clusterOf[2])
	assert.NotEqual(t, clusterOf[0], clusterOf[3])
}

func TestClustersLevel1FollowsSecondClose(t *testing.T) {
	// 80 px apart: not close, but second-close; level 1 joins them.
	blobs := []model.ColorBlob{blob(0, 0, 0), blob(0, 80, 0)}
	near := SpatialNear(blobs, 50)

	clusters0, _ := Clusters(near, 0)
	assert.Len(t, clusters0, 2)

	clusters1, _ := Clusters(near, 1)
	assert.Len(t, clusters1, 1)
}

func TestTemporalPrevStatic(t *testing.T) {
	prev := []model.ColorBlob{blob(0, 100, 100), blob(1, 200, 200)}
	cur := []model.ColorBlob{blob(0, 110, 100), blob(1, 350, 200)}
	noMD := []int{-1, -1}

	out := TemporalPrev(prev, cur, nil, nil, noMD, noMD, 30, 100)
	// blob 0 moved 10 px, same color: match. blob 1 moved 150 px: no match.
	assert.ElementsMatch(t, []int{0}, out[0])
	assert.Empty(t, out[1])
}

func TestTemporalPrevColorMismatch(t *testing.T) {
	prev := []model.ColorBlob{blob(0, 100, 100)}
	cur := []model.ColorBlob{blob(1, 100, 100)}
	out := TemporalPrev(prev, cur, nil, nil, []int{-1}, []int{-1}, 30, 100)
	assert.Empty(t, out[0])
}

func TestTemporalPrevMotionCorroborated(t *testing.T) {
	prev := []model.ColorBlob{blob(0, 100, 100)}
	cur := []model.ColorBlob{blob(0, 160, 100)} // 60 px: beyond static, within md
	md := []model.MotionBlob{{CenterX: 130, CenterY: 100, AxisA: 80, AxisB: 40}}

	// both under motion regions.
	out := TemporalPrev(prev, cur, md, md, []int{0}, []int{0}, 30, 100)
	assert.ElementsMatch(t, []int{0}, out[0])

	// only current frame has motion; prev blob lies inside its ellipse.
	out = TemporalPrev(prev, cur, nil, md, []int{-1}, []int{0}, 30, 100)
	assert.ElementsMatch(t, []int{0}, out[0])

	// no motion anywhere: too far.
	out = TemporalPrev(prev, cur, nil, nil, []int{-1}, []int{-1}, 30, 100)
	assert.Empty(t, out[0])
}

func TestFindMDUnderBlobs(t *testing.T) {
	blobs := []model.ColorBlob{blob(0, 100, 100), blob(1, 500, 500)}
	md := []model.MotionBlob{{CenterX: 110, CenterY: 100, AxisA: 50, AxisB: 30}}
	out := FindMDUnderBlobs(blobs, md)
	assert.Equal(t, []int{0, -1}, out)
}
