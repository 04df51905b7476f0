package plan

import (
	"github.com/sirupsen/logrus"

	"github.com/tidyfolder/tidyfolder/internal/models"
)

// Deduplicate returns a plan in which every file is referenced at most
// once. Folders are walked in plan order and the first numeric occurrence
// of an id wins; later occurrences anywhere are dropped. The planner is not
// guaranteed to produce a partition, so this runs before validation.
// Non-numeric references pass through untouched for the validator to
// report. Folders left with no references are dropped. Idempotent.
func Deduplicate(p *models.Plan) *models.Plan {
	if p == nil || p.Folders == nil {
		return p
	}

	seen := make(map[int64]bool)
	removed := 0
	out := &models.Plan{Folders: make([]models.PlanFolder, 0, len(p.Folders))}

	for _, folder := range p.Folders {
		kept := make([]models.PlanID, 0, len(folder.IDs))
		for _, id := range folder.IDs {
			if !id.Numeric {
				kept = append(kept, id)
				continue
			}
			if seen[id.Value] {
				removed++
				log.WithFields(logrus.Fields{
					"id":     id.Value,
					"folder": folder.Name,
				}).Debug("Removed duplicate file reference")
				continue
			}
			seen[id.Value] = true
			kept = append(kept, id)
		}
		if len(kept) > 0 {
			out.Folders = append(out.Folders, models.PlanFolder{Name: folder.Name, IDs: kept})
		}
	}

	if removed > 0 {
		log.WithField("removed", removed).Warn("Plan referenced files in multiple folders")
	}
	return out
}
