package pipeline

import (
	"github.com/ethology-lab/trajognize/internal/config"
	"github.com/ethology-lab/trajognize/internal/conflict"
	"github.com/ethology-lab/trajognize/internal/model"
)

// ExciseEntryTimeConflicts marks every conflict that overlaps an
// entry-time interval as resolved: detections while someone was inside the
// enclosure are expected noise, not pipeline defects. Returns the number
// of conflicts dropped.
func ExciseEntryTimeConflicts(db *conflict.Database, entryTimes config.EntryTimes) int {
	dropped := 0
	for _, group := range [][][]*model.Conflict{db.Gap, db.Overlap, db.Nub} {
		for _, perColor := range group {
			for _, c := range perColor {
				if c.State == model.StateDeleted {
					continue
				}
				for frame := c.FirstFrame; frame <= c.LastFrame(); frame++ {
					if entryTimes.In(frame) {
						c.State = model.StateDeleted
						dropped++
						break
					}
				}
			}
		}
	}
	return dropped
}
