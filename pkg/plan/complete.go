package plan

import (
	"github.com/tidyfolder/tidyfolder/internal/models"
)

// MiscFolder receives files the planner left unassigned in auto-organize
// mode.
const MiscFolder = "misc"

// EnsureAllIncluded forces full coverage: every file in files that the plan
// does not reference is appended to the misc folder, in input order so the
// result is deterministic. Auto-organize mode only; specific instructions
// are allowed to leave files out. A plan with no folders object is returned
// unchanged so it still fails validation instead of being papered over.
func EnsureAllIncluded(p *models.Plan, files []models.FileSummary) *models.Plan {
	if p == nil || p.Folders == nil {
		return p
	}

	assigned := make(map[int64]bool)
	for _, folder := range p.Folders {
		for _, id := range folder.IDs {
			if id.Numeric {
				assigned[id.Value] = true
			}
		}
	}

	var missing []models.PlanID
	for _, f := range files {
		if !assigned[f.ID] {
			missing = append(missing, models.NumericPlanID(f.ID))
		}
	}
	if len(missing) == 0 {
		return p
	}

	out := &models.Plan{Folders: make([]models.PlanFolder, len(p.Folders))}
	copy(out.Folders, p.Folders)

	appended := false
	for i := range out.Folders {
		if out.Folders[i].Name != MiscFolder {
			continue
		}
		ids := make([]models.PlanID, 0, len(out.Folders[i].IDs)+len(missing))
		ids = append(ids, out.Folders[i].IDs...)
		ids = append(ids, missing...)
		out.Folders[i].IDs = ids
		appended = true
		break
	}
	if !appended {
		out.Folders = append(out.Folders, models.PlanFolder{Name: MiscFolder, IDs: missing})
	}

	log.WithField("count", len(missing)).Info("Assigned leftover files to misc folder")
	return out
}
