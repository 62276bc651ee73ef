package barcode

import (
	"fmt"
	"math"

	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/model"
)

// OrderBlobIndices reorders bc.BlobIndices to match the color order of
// strid. A no-op when fewer than two blobs are present, or when the
// barcode is already fully found, unless forceFull is set (needed after
// a merge that might have scrambled order).
func OrderBlobIndices(bc *model.Barcode, strid string, blobs []model.ColorBlob, alphabet config.ColorAlphabet, forceFull bool) error {
	n := 0
	for _, i := range bc.BlobIndices {
		if i != model.NoBlob {
			n++
		}
	}
	if n > len(strid) {
		return fmt.Errorf("%w: %s barcode has %d blobs, MCHIPS is %d", ErrTooManyBlobs, strid, n, len(strid))
	}
	if n < 2 {
		return nil
	}
	if n == len(strid) && !forceFull {
		return nil
	}

	old := append([]int(nil), bc.BlobIndices...)
	oldColors := make([]int, 0, n)
	present := make([]int, 0, n)
	for _, i := range old {
		if i == model.NoBlob {
			continue
		}
		oldColors = append(oldColors, blobs[i].Color)
		present = append(present, i)
	}
	for _, c := range oldColors {
		r, _ := alphabet.ToRune(c)
		found := false
		for _, sc := range strid {
			if sc == r {
				found = true
				break
			}
		}
		if !found {
			return ErrUnwantedColor
		}
	}

	next := make([]int, len(strid))
	for i := range next {
		next[i] = model.NoBlob
	}
	used := make([]bool, len(present))
	for p, c := range strid {
		want, ok := alphabet.ToInt(c)
		if !ok {
			continue
		}
		for j, color := range oldColors {
			if used[j] || color != want {
				continue
			}
			next[p] = present[j]
			used[j] = true
			break
		}
	}
	bc.BlobIndices = next
	return nil
}

// CalculateParams computes a barcode's center and orientation from its
// current blob assignment. Mirrors algo_barcode.calculate_params:
//
//   - n>=3: least-squares line through blob centers via centered second
//     moments Sxx/Sxy/Syy, folded into (-pi,pi], oriented from last blob
//     toward first.
//   - n==2: direct atan2 between the two blobs.
//   - n==1 or n==0: orientation is left unchanged; single-chip barcodes
//     inherit it from the previous frame and keep the zero value on the
//     very first frame.
//
// When n < MCHIPS the center is further corrected by the mean positional
// offset of present chips from the chain midpoint, shifted by
// avgInRatDist along the computed orientation.
func CalculateParams(bc *model.Barcode, strid string, blobs []model.ColorBlob, avgInRatDist float64) {
	mchips := len(strid)
	present := make([]int, 0, mchips)
	positions := make([]int, 0, mchips)
	for pos, i := range bc.BlobIndices {
		if i != model.NoBlob {
			present = append(present, i)
			positions = append(positions, pos)
		}
	}
	n := len(present)
	if n == 0 {
		return
	}

	var cx, cy float64
	for _, i := range present {
		cx += blobs[i].CenterX
		cy += blobs[i].CenterY
	}
	cx /= float64(n)
	cy /= float64(n)
	bc.CenterX, bc.CenterY = cx, cy

	switch {
	case n >= 3:
		var sxx, sxy, syy float64
		for _, i := range present {
			dx := blobs[i].CenterX - cx
			dy := blobs[i].CenterY - cy
			sxx += dx * dx
			sxy += dx * dy
			syy += dy * dy
		}
		var theta float64
		first := blobs[present[0]]
		last := blobs[present[n-1]]
		if sxx > syy {
			theta = math.Atan2(sxy, sxx)
			if last.CenterX > first.CenterX {
				theta += math.Pi
			}
		} else {
			theta = math.Pi/2 - math.Atan2(sxy, syy)
			if last.CenterY > first.CenterY {
				theta += math.Pi
			}
		}
		bc.Orientation = model.FoldAngle(theta)
	case n == 2:
		a := blobs[present[0]]
		b := blobs[present[1]]
		bc.Orientation = model.FoldAngle(math.Atan2(a.CenterY-b.CenterY, a.CenterX-b.CenterX))
	default:
		// n == 1: orientation inherited, left untouched.
	}

	if n < mchips {
		mid := float64(mchips-1) / 2
		var offsetSum float64
		for _, pos := range positions {
			offsetSum += float64(pos) - mid
		}
		offset := offsetSum / float64(n)
		bc.CenterX += offset * avgInRatDist * math.Cos(bc.Orientation)
		bc.CenterY += offset * avgInRatDist * math.Sin(bc.Orientation)
	}
}
