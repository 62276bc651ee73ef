package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() Settings {
	return Settings{
		MCHIPS:            3,
		MBASE:             6,
		MaxInRatDist:      50,
		AvgInRatDist:      30,
		MaxPerframeDist:   30,
		MaxPerframeDistMD: 100,
		ColorIDs:          []ColorID{{StrID: "RGB", Symbol: "1"}, {StrID: "OGB", Symbol: "2"}},
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr error
	}{
		{"valid", func(s *Settings) {}, nil},
		{"zero mchips", func(s *Settings) { s.MCHIPS = 0 }, ErrInvalidSettings},
		{"no colorids", func(s *Settings) { s.ColorIDs = nil }, ErrInvalidColorID},
		{"wrong chip length", func(s *Settings) { s.ColorIDs[0].StrID = "RG" }, ErrInvalidColorID},
		{"duplicate colorid", func(s *Settings) { s.ColorIDs[1].StrID = "RGB" }, ErrInvalidColorID},
		{"reverse duplicate", func(s *Settings) { s.ColorIDs[1].StrID = "BGR" }, ErrInvalidColorID},
		{"bad threshold", func(s *Settings) { s.MaxInRatDist = 0 }, ErrInvalidSettings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestColorAlphabet(t *testing.T) {
	a := NewColorAlphabet([]ColorID{{StrID: "RGB"}, {StrID: "OGB"}})
	r, ok := a.ToInt('R')
	require.True(t, ok)
	assert.Equal(t, 0, r)
	o, ok := a.ToInt('O')
	require.True(t, ok)
	assert.Equal(t, 3, o, "O is the fourth distinct letter seen")
	_, ok = a.ToInt('X')
	assert.False(t, ok)

	back, ok := a.ToRune(0)
	require.True(t, ok)
	assert.Equal(t, 'R', back)
}

func TestRegistryPresets(t *testing.T) {
	for _, name := range []string{Preset2011, PresetMaze, PresetFish, PresetAnts, PresetAnts2019, PresetStorks} {
		s, err := Get(name)
		require.NoError(t, err, "preset %s", name)
		assert.NoError(t, s.Validate(), "preset %s must validate", name)
	}
	_, err := Get("no-such-preset")
	assert.ErrorIs(t, err, ErrPresetNotFound)
	assert.Len(t, List(), 6)
}

func TestRegistryIsolation(t *testing.T) {
	r := NewRegistry()
	s := validSettings()
	r.Register("mine", s)
	got, err := r.Get("mine")
	require.NoError(t, err)
	assert.Equal(t, s.MCHIPS, got.MCHIPS)
	_, err = r.Get(Preset2011)
	assert.ErrorIs(t, err, ErrPresetNotFound, "fresh registry does not see the default presets")
}

func TestLoadColorIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "colorids.yaml")
	require.NoError(t, os.WriteFile(path, []byte("colorids:\n  - strid: RGB\n    symbol: \"1\"\n  - strid: OGB\n    symbol: \"2\"\n"), 0o644))

	ids, err := LoadColorIDs(path)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "RGB", ids[0].StrID)
	assert.Equal(t, "OGB", ids[1].StrID)

	_, err = LoadColorIDs(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("colorids: []\n"), 0o644))
	_, err = LoadColorIDs(empty)
	assert.ErrorIs(t, err, ErrInvalidColorID)
}

func TestLightLogAt(t *testing.T) {
	l := LightLog{Entries: []LightLogEntry{
		{Frame: 0, Condition: LightDaylight},
		{Frame: 100, Condition: LightNightlight},
		{Frame: 200, Condition: LightExtralight},
	}}
	assert.Equal(t, LightDaylight, l.At(0))
	assert.Equal(t, LightDaylight, l.At(99))
	assert.Equal(t, LightNightlight, l.At(100))
	assert.Equal(t, LightExtralight, l.At(5000))
	assert.Equal(t, LightUnknown, LightLog{}.At(0))
}

func TestEntryTimes(t *testing.T) {
	et := EntryTimes{Intervals: []EntryInterval{{From: 10, To: 20}, {From: 50, To: 50}}}
	assert.False(t, et.In(9))
	assert.True(t, et.In(10))
	assert.True(t, et.In(20))
	assert.False(t, et.In(21))
	assert.True(t, et.In(50))
}
