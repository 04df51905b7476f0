package plan

import (
	"fmt"

	"github.com/tidyfolder/tidyfolder/internal/models"
)

// FolderSummary is the per-destination slice of a Summary.
type FolderSummary struct {
	Name      string `json:"name"`
	FileCount int    `json:"fileCount"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Summary reports what a compiled plan will do. This is the caller-facing
// preview: how many of the referenced files actually move, where, and why
// the rest were skipped.
type Summary struct {
	PlannedFiles int             `json:"plannedFiles"`
	MoveCount    int             `json:"moveCount"`
	TotalBytes   int64           `json:"totalBytes"`
	Folders      []FolderSummary `json:"folders,omitempty"`
	Skipped      SkipCounts      `json:"skipped"`
}

// Summarize aggregates compiler output. Folder order follows first
// appearance in the operation list, which follows plan order.
func Summarize(p *models.Plan, ops []models.MoveOp, skips SkipCounts) Summary {
	s := Summary{MoveCount: len(ops), Skipped: skips}
	if p != nil {
		s.PlannedFiles = p.FileCount()
	}

	index := make(map[string]int)
	for _, op := range ops {
		s.TotalBytes += op.SizeBytes
		i, ok := index[op.DestFolder]
		if !ok {
			i = len(s.Folders)
			index[op.DestFolder] = i
			s.Folders = append(s.Folders, FolderSummary{Name: op.DestFolder})
		}
		s.Folders[i].FileCount++
		s.Folders[i].SizeBytes += op.SizeBytes
	}
	return s
}

// String renders the one-line status form.
func (s Summary) String() string {
	return fmt.Sprintf("%d of %d files will move", s.MoveCount, s.PlannedFiles)
}
