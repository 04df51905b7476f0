package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tidyfolder/tidyfolder/internal/models"
)

// SkipCounts tallies files the compiler declined to move. Skips are normal
// outcomes, reported alongside the emitted operations, never errors.
type SkipCounts struct {
	NotFound       int `json:"notFound"`
	AlreadyInPlace int `json:"alreadyInPlace"`
	NoMetadata     int `json:"noMetadata"`
}

// Total returns the number of skipped files across all reasons.
func (s SkipCounts) Total() int {
	return s.NotFound + s.AlreadyInPlace + s.NoMetadata
}

// Compile turns a validated plan into concrete move operations under
// destRoot. Deterministic: the same plan and filesystem state always yield
// the same operations in the same order. Destination collisions, against
// disk or against an operation emitted earlier in this pass, are resolved
// by appending " (N)" before the extension; no emitted operation ever
// targets the same path twice or overwrites a pre-existing file.
//
// The only filesystem access is existence checks. Execution is the
// mover's job.
func Compile(p *models.Plan, files map[int64]*models.FileRecord, destRoot string) ([]models.MoveOp, SkipCounts) {
	var ops []models.MoveOp
	var skips SkipCounts
	if p == nil {
		return nil, skips
	}

	claimed := make(map[string]bool)

	for _, folder := range p.Folders {
		destFolder := filepath.Join(destRoot, filepath.FromSlash(folder.Name))

		for _, id := range folder.IDs {
			if !id.Numeric {
				log.WithField("id", id.Raw).Warn("Skipping non-numeric file reference")
				continue
			}

			rec := files[id.Value]
			if rec == nil {
				skips.NoMetadata++
				log.WithField("id", id.Value).Debug("No metadata for file reference")
				continue
			}

			source := rec.Path
			srcInfo, err := os.Stat(source)
			if err != nil {
				skips.NotFound++
				log.WithField("path", source).Debug("Source file no longer exists")
				continue
			}

			if filepath.Dir(source) == destFolder {
				skips.AlreadyInPlace++
				continue
			}

			name := filepath.Base(source)
			destPath := filepath.Join(destFolder, name)

			// Same inode through a symlinked or case-folded path still
			// means the file is already where it belongs.
			if destInfo, err := os.Stat(destPath); err == nil && os.SameFile(srcInfo, destInfo) {
				skips.AlreadyInPlace++
				continue
			}

			ext := filepath.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for counter := 1; pathExists(destPath) || claimed[destPath]; counter++ {
				destPath = filepath.Join(destFolder, fmt.Sprintf("%s (%d)%s", stem, counter, ext))
			}
			claimed[destPath] = true

			ops = append(ops, models.MoveOp{
				FileID:     id.Value,
				FileName:   name,
				SourcePath: source,
				DestPath:   destPath,
				DestFolder: folder.Name,
				SizeBytes:  rec.SizeBytes,
			})
		}
	}

	log.WithFields(logrus.Fields{
		"moves":           len(ops),
		"planned":         p.FileCount(),
		"notFound":        skips.NotFound,
		"alreadyInPlace":  skips.AlreadyInPlace,
		"missingMetadata": skips.NoMetadata,
	}).Info("Compiled move operations")

	return ops, skips
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
