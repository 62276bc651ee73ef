package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// colorIDFile is the on-disk shape of a colorid table, one entry per
// identity in table order (the order is significant: it defines k).
type colorIDFile struct {
	ColorIDs []ColorID `yaml:"colorids"`
}

// LoadColorIDs reads an ordered colorid table from a YAML file.
func LoadColorIDs(path string) ([]ColorID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading colorid file %s: %w", path, err)
	}
	var f colorIDFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing colorid file %s: %w", path, err)
	}
	if len(f.ColorIDs) == 0 {
		return nil, fmt.Errorf("%w: no colorids in %s", ErrInvalidColorID, path)
	}
	return f.ColorIDs, nil
}

// LoadSettings reads a full Settings value from a YAML file, e.g. an
// operator-authored override of a named preset.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: reading settings file %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("config: parsing settings file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LightCondition is a per-frame category sourced from a sparse keyframe log.
type LightCondition int

const (
	LightUnknown LightCondition = iota
	LightDaylight
	LightNightlight
	LightExtralight
)

func (l LightCondition) String() string {
	switch l {
	case LightDaylight:
		return "DAYLIGHT"
	case LightNightlight:
		return "NIGHTLIGHT"
	case LightExtralight:
		return "EXTRALIGHT"
	default:
		return "UNKNOWN"
	}
}

// LightLog is a sparse keyframe log of light condition changes: the
// condition recorded at Frame holds until the next entry. Mirrors
// trajognize's light-condition keyframe log, kept here so a future
// statistics consumer can filter frames by light condition; the pipeline
// itself never branches on it.
type LightLog struct {
	Entries []LightLogEntry
}

type LightLogEntry struct {
	Frame     int            `yaml:"frame"`
	Condition LightCondition `yaml:"condition"`
}

// At returns the light condition in effect at the given frame.
func (l LightLog) At(frame int) LightCondition {
	cond := LightUnknown
	for _, e := range l.Entries {
		if e.Frame > frame {
			break
		}
		cond = e.Condition
	}
	return cond
}
