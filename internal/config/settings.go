// Package config holds project-specific settings (chip counts, distance
// thresholds, trajectory-selection thresholds) and the colorid table, plus a
// named-preset Registry mirroring trajognize's project.py PROJECT_* table.
package config

import (
	"fmt"
	"strings"
)

// ColorID is one identity's fixed color sequence together with its display
// symbol. The index into the owning table is the identity's canonical key
// (k) used throughout the pipeline.
type ColorID struct {
	StrID  string `yaml:"strid"`  // e.g. "RGB", one base-color letter per chip position
	Symbol string `yaml:"symbol"` // short display label, e.g. a glyph or number
}

// FindBestTrajectoriesSettings bundles the trajectory-selection thresholds,
// mirroring project.py's find_best_trajectories_settings record.
type FindBestTrajectoriesSettings struct {
	GoodScoreThreshold              float64 `yaml:"good_score_threshold"`
	GoodForSureScoreThreshold       float64 `yaml:"good_for_sure_score_threshold"`
	MightBeBadScoreThreshold        float64 `yaml:"might_be_bad_score_threshold"`
	MightBeBadSumGoodScoreThreshold float64 `yaml:"might_be_bad_sum_good_score_threshold"`
	FrameLimit                      int     `yaml:"framelimit"`
}

// Settings is the full set of project-specific knobs threaded through every
// phase, equivalent to trajognize's project.py module-level constants bundle.
type Settings struct {
	MCHIPS int `yaml:"mchips"`
	MBASE  int `yaml:"mbase"`

	MaxInRatDist      float64 `yaml:"max_inrat_dist"`
	AvgInRatDist      float64 `yaml:"avg_inrat_dist"`
	MaxPerframeDist   float64 `yaml:"max_perframe_dist"`
	MaxPerframeDistMD float64 `yaml:"max_perframe_dist_md"`

	ImageWidth  int     `yaml:"image_width"`
	ImageHeight int     `yaml:"image_height"`
	FPS         float64 `yaml:"fps"`

	ColorIDs []ColorID `yaml:"colorids"`

	FindBestTrajectories FindBestTrajectoriesSettings `yaml:"find_best_trajectories"`
	TrajScoreMethod      int                          `yaml:"traj_score_method"` // 1 or 2, see internal/trajectory.Score
}

// Validate checks the handful of invariants the rest of the pipeline
// assumes hold: colorid length, positive thresholds, and that no colorid
// duplicates another or another's reverse (a barcode can be read in either
// direction, so mutually reversed colorids are indistinguishable).
func (s Settings) Validate() error {
	if s.MCHIPS <= 0 {
		return fmt.Errorf("%w: MCHIPS must be positive, got %d", ErrInvalidSettings, s.MCHIPS)
	}
	if len(s.ColorIDs) == 0 {
		return fmt.Errorf("%w: no colorids defined", ErrInvalidColorID)
	}
	seen := make(map[string]int, len(s.ColorIDs))
	for k, c := range s.ColorIDs {
		if len(c.StrID) != s.MCHIPS {
			return fmt.Errorf("%w: colorid %q has %d chips, MCHIPS is %d", ErrInvalidColorID, c.StrID, len(c.StrID), s.MCHIPS)
		}
		if prev, ok := seen[c.StrID]; ok {
			return fmt.Errorf("%w: colorid %q duplicated at indices %d and %d", ErrInvalidColorID, c.StrID, prev, k)
		}
		seen[c.StrID] = k
		rev := reverseString(c.StrID)
		if rev != c.StrID {
			if prev, ok := seen[rev]; ok {
				return fmt.Errorf("%w: colorid %q is the palindrome-reverse of %q at index %d", ErrInvalidColorID, c.StrID, rev, prev)
			}
		}
	}
	if s.MaxInRatDist <= 0 || s.MaxPerframeDist <= 0 || s.MaxPerframeDistMD <= 0 {
		return fmt.Errorf("%w: distance thresholds must be positive", ErrInvalidSettings)
	}
	return nil
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// StrIDs returns the bare color-sequence strings of every colorid, in
// table order, the shape most algorithms in internal/barcode and
// internal/trajectory actually iterate over.
func (s Settings) StrIDs() []string {
	out := make([]string, len(s.ColorIDs))
	for i, c := range s.ColorIDs {
		out[i] = c.StrID
	}
	return out
}

// ColorAlphabet translates between a base-color rune and its integer code
// (ToInt and ToRune). trajognize keeps a fixed 'R','G','B','O','P','Y'...
// alphabet; here the mapping is derived from the letters actually seen in
// the colorid table, in first-seen order, instead of hardcoding a six-entry
// alphabet, so a project file can define an arbitrary symbol set. MBASE is
// not consulted when building it.
type ColorAlphabet struct {
	color2int map[rune]int
	int2color map[int]rune
}

// NewColorAlphabet builds the alphabet from the colorid table's observed
// letters, assigning integer codes in first-seen order.
func NewColorAlphabet(colorIDs []ColorID) ColorAlphabet {
	a := ColorAlphabet{color2int: make(map[rune]int), int2color: make(map[int]rune)}
	next := 0
	for _, c := range colorIDs {
		for _, r := range c.StrID {
			if _, ok := a.color2int[r]; !ok {
				a.color2int[r] = next
				a.int2color[next] = r
				next++
			}
		}
	}
	return a
}

func (a ColorAlphabet) ToInt(r rune) (int, bool)  { v, ok := a.color2int[r]; return v, ok }
func (a ColorAlphabet) ToRune(i int) (rune, bool) { v, ok := a.int2color[i]; return v, ok }

// String is a debug rendering of the alphabet.
func (a ColorAlphabet) String() string {
	var b strings.Builder
	for r, i := range a.color2int {
		fmt.Fprintf(&b, "%c=%d ", r, i)
	}
	return b.String()
}
