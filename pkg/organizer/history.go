package organizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/events"
	"github.com/tidyfolder/tidyfolder/pkg/mover"
)

// Undo reverts a logged batch and points the index back at the restored
// locations. An empty logPath means the most recent log. Returns the undo
// result together with the path of the log that was undone.
func (o *Organizer) Undo(ctx context.Context, logPath string) (*mover.UndoResult, string, error) {
	var entry *models.MoveLogEntry
	var err error
	if logPath == "" {
		entry, logPath, err = o.logs.Latest()
		if err != nil {
			return nil, "", err
		}
		if entry == nil {
			return nil, "", errors.New("no move logs to undo")
		}
	} else {
		entry, err = o.logs.Read(logPath)
		if err != nil {
			return nil, "", err
		}
	}

	result := mover.Undo(ctx, entry, mover.UndoOptions{
		OnRestored: func(pair models.MovePair) {
			record, gerr := o.store.GetByPath(pair.To)
			if gerr != nil || record == nil {
				return
			}
			if uerr := o.store.UpdatePath(record.ID, pair.From); uerr != nil {
				log.WithError(uerr).WithField("id", record.ID).Error("Failed to revert index path")
			}
		},
	})

	o.bus.Publish(events.Event{
		Kind:    events.UndoComplete,
		Folder:  entry.DestRoot,
		Count:   result.Restored,
		Message: fmt.Sprintf("restored %d of %d files", result.Restored, result.Total),
	})
	return result, logPath, nil
}

// HistoryEntry pairs a move log with the file that holds it.
type HistoryEntry struct {
	Path  string               `json:"path"`
	Entry *models.MoveLogEntry `json:"entry"`
}

// History returns every move log, newest first. Logs that no longer parse
// are skipped rather than failing the listing.
func (o *Organizer) History() ([]HistoryEntry, error) {
	paths, err := o.logs.List()
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(paths))
	for _, path := range paths {
		entry, err := o.logs.Read(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("Skipping unreadable move log")
			continue
		}
		entries = append(entries, HistoryEntry{Path: path, Entry: entry})
	}
	return entries, nil
}

// ClearHistory deletes every move log and returns how many were removed.
func (o *Organizer) ClearHistory() (int, error) {
	return o.logs.Clear()
}

// Flatten lifts every file below folder's top level up to the top and
// keeps the index pointing at the new locations.
func (o *Organizer) Flatten(ctx context.Context, folder string) (*mover.FlattenResult, error) {
	return mover.FlattenWithOptions(ctx, folder, mover.FlattenOptions{
		OnMoved: func(from, to string) {
			record, err := o.store.GetByPath(from)
			if err != nil || record == nil {
				return
			}
			if uerr := o.store.UpdatePath(record.ID, to); uerr != nil {
				log.WithError(uerr).WithField("id", record.ID).Error("Failed to update index path")
			}
		},
	})
}
