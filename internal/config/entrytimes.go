package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EntryInterval is one span of frames during which a person was inside the
// enclosure; detections there are noise for conflict-reporting purposes.
type EntryInterval struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// EntryTimes is the parsed entry-time log, mirroring trajognize's
// util.is_entry_time. Membership (In) is an inclusive From..To check; no
// extra margin is added on either side.
type EntryTimes struct {
	Intervals []EntryInterval `yaml:"entrytimes"`
}

// LoadEntryTimes reads an entry-time interval list from a YAML file.
func LoadEntryTimes(path string) (EntryTimes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EntryTimes{}, fmt.Errorf("config: reading entry-time file %s: %w", path, err)
	}
	var et EntryTimes
	if err := yaml.Unmarshal(data, &et); err != nil {
		return EntryTimes{}, fmt.Errorf("config: parsing entry-time file %s: %w", path, err)
	}
	return et, nil
}

// In reports whether frame lies inside any entry interval.
func (e EntryTimes) In(frame int) bool {
	for _, iv := range e.Intervals {
		if frame >= iv.From && frame <= iv.To {
			return true
		}
	}
	return false
}
