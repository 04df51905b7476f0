package mover

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/pathutil"
)

// UndoOptions configures one Undo batch.
type UndoOptions struct {
	// OnRestored runs after each file is moved back. Index path reverts
	// hang off this.
	OnRestored func(pair models.MovePair)
}

// UndoResult reports a batch undo. Undo is not transactional: some entries
// restore, some are ineligible, some fail, and all three are reported.
type UndoResult struct {
	Restored       int
	Total          int
	NotUndoable    []string
	Errors         []string
	RemovedFolders int
}

// Undo moves the files of a logged batch back to their original locations.
// An entry is eligible only when its destination still exists and its
// original location is free; everything else is reported, never forced.
// After the batch, folders the undo left empty under the logged
// destination root are silently removed.
func Undo(ctx context.Context, entry *models.MoveLogEntry, opts UndoOptions) *UndoResult {
	result := &UndoResult{Total: len(entry.Moves)}

	for _, pair := range entry.Moves {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("undo stopped: %v", err))
			break
		}

		if !pathTaken(pair.To) {
			result.NotUndoable = append(result.NotUndoable, fmt.Sprintf("file not found: %s", filepath.Base(pair.To)))
			continue
		}
		if pathTaken(pair.From) {
			result.NotUndoable = append(result.NotUndoable, fmt.Sprintf("original location occupied: %s", filepath.Base(pair.From)))
			continue
		}

		if err := pathutil.EnsureDir(filepath.Dir(pair.From)); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filepath.Base(pair.From), err))
			continue
		}
		if err := moveFile(pair.To, pair.From); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filepath.Base(pair.To), err))
			log.WithError(err).WithField("dest", pair.To).Error("Undo failed for file")
			continue
		}

		result.Restored++
		if opts.OnRestored != nil {
			opts.OnRestored(pair)
		}
		log.WithFields(logrus.Fields{
			"from": pair.To,
			"to":   pair.From,
		}).Info("Restored file")
	}

	// Only the undo's own leftovers are swept, and only below the batch's
	// destination root.
	if result.Restored > 0 && entry.DestRoot != "" {
		result.RemovedFolders = sweepUndoLeftovers(entry)
	}

	log.WithFields(logrus.Fields{
		"restored":    result.Restored,
		"total":       result.Total,
		"notUndoable": len(result.NotUndoable),
		"errors":      len(result.Errors),
	}).Info("Undo complete")

	return result
}

// sweepUndoLeftovers removes the destination folders of undone moves that
// the undo itself emptied, walking each branch upward but never past the
// destination root.
func sweepUndoLeftovers(entry *models.MoveLogEntry) int {
	root := filepath.Clean(entry.DestRoot)
	removed := 0
	seen := make(map[string]bool)

	for _, pair := range entry.Moves {
		for dir := filepath.Dir(pair.To); pathutil.WithinRoot(root, dir) && dir != root; dir = filepath.Dir(dir) {
			if seen[dir] {
				break
			}
			seen[dir] = true
			if !removeIfEmpty(dir) {
				break
			}
			removed++
		}
	}
	return removed
}
