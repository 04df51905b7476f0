package organizer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/events"
	"github.com/tidyfolder/tidyfolder/pkg/mover"
)

// ApplyResult reports an executed batch plus the folder cleanup candidates
// it exposed.
type ApplyResult struct {
	Preview      *Preview
	Moved        *mover.Result
	EmptyFolders []string
}

// Apply executes a previewed plan. Every successful move updates the index
// before the next one starts, the batch is logged for undo, and folders the
// moves left empty are surfaced as candidates, never deleted here.
func (o *Organizer) Apply(ctx context.Context, pv *Preview) (*ApplyResult, error) {
	moved, err := mover.Execute(ctx, pv.Ops, mover.Options{
		DestRoot: pv.Folder,
		Logs:     o.logs,
		OnMoved: func(op models.MoveOp) {
			if uerr := o.store.UpdatePath(op.FileID, op.DestPath); uerr != nil {
				log.WithError(uerr).WithField("id", op.FileID).Error("Failed to update index path")
			}
		},
	})

	result := &ApplyResult{Preview: pv, Moved: moved}
	if moved != nil {
		o.bus.Publish(events.Event{
			Kind:    events.FilesMoved,
			Folder:  pv.Folder,
			Count:   moved.SuccessCount,
			Message: fmt.Sprintf("moved %d of %d files", moved.SuccessCount, moved.TotalCount),
		})
	}
	if err != nil {
		return result, err
	}

	if moved.SuccessCount > 0 {
		candidates, ferr := mover.FindEmptyFolders(pv.Folder)
		if ferr != nil {
			log.WithError(ferr).Debug("Empty-folder scan failed")
		} else {
			result.EmptyFolders = candidates
		}
	}
	return result, nil
}

// Organize runs Preview then Apply in one call.
func (o *Organizer) Organize(ctx context.Context, folder, instruction string) (*ApplyResult, error) {
	pv, err := o.Preview(ctx, folder, instruction)
	if err != nil {
		return nil, err
	}
	return o.applyOrSkip(ctx, pv)
}

// OrganizeFiles runs PreviewFiles then Apply. This is the watcher's entry
// point for a batch of newly stable files.
func (o *Organizer) OrganizeFiles(ctx context.Context, folder, instruction string, paths []string) (*ApplyResult, error) {
	pv, err := o.PreviewFiles(ctx, folder, instruction, paths)
	if err != nil {
		return nil, err
	}
	return o.applyOrSkip(ctx, pv)
}

func (o *Organizer) applyOrSkip(ctx context.Context, pv *Preview) (*ApplyResult, error) {
	if len(pv.Ops) == 0 {
		log.WithFields(logrus.Fields{
			"folder":  pv.Folder,
			"skipped": pv.Skips.Total(),
		}).Info("Plan compiled to no moves")
		return &ApplyResult{Preview: pv, Moved: &mover.Result{}}, nil
	}
	return o.Apply(ctx, pv)
}
