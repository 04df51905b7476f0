package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tidyfolder/tidyfolder/pkg/events"
	"github.com/tidyfolder/tidyfolder/pkg/organizer"
	"github.com/tidyfolder/tidyfolder/pkg/pathutil"
)

// initialPassWidth bounds how many folders the start-up pass organizes at
// once; each one is an independent planner call.
const initialPassWidth = 2

func (w *Watcher) run(ctx context.Context) error {
	w.resetState()
	w.initialPass(ctx)
	w.markKnown()

	// Started means watching: the initial pass is done and the current
	// contents are known.
	log.WithFields(logrus.Fields{
		"folders": len(w.cfg.Folders),
		"mode":    w.cfg.Mode,
	}).Info("Watcher started")
	w.bus.Publish(events.Event{Kind: events.WatcherStarted, Count: len(w.cfg.Folders)})

	ticker := time.NewTicker(w.cfg.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.bus.Publish(events.Event{Kind: events.WatcherStopped})
			log.Info("Watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			w.detectNewFiles()
			w.processPending(ctx)
			w.pendingCount.Store(int64(len(w.pending)))
		}
	}
}

func (w *Watcher) resetState() {
	w.known = make(map[string]map[string]bool, len(w.cfg.Folders))
	w.pending = make(map[string]time.Time)
	w.pendingCount.Store(0)
}

// initialPass handles files that predate the watcher according to the
// configured mode. Folders are independent plans, so a bounded group runs
// them concurrently.
func (w *Watcher) initialPass(ctx context.Context) {
	if w.cfg.Mode != ModeOrganizeExisting && w.cfg.Mode != ModeReorganizeAll {
		return
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(initialPassWidth)
	for _, folder := range w.cfg.Folders {
		if strings.TrimSpace(folder.Instruction) == "" {
			log.WithField("folder", folder.Path).Info("Skipping initial pass, folder has no instruction")
			continue
		}
		group.Go(func() error {
			w.organizeExisting(groupCtx, folder)
			return nil
		})
	}
	group.Wait()
}

func (w *Watcher) organizeExisting(ctx context.Context, folder Folder) {
	if w.cfg.Mode == ModeReorganizeAll {
		if _, err := w.org.Flatten(ctx, folder.Path); err != nil {
			log.WithError(err).WithField("folder", folder.Path).Warn("Flatten failed, organizing in place")
		}
	}

	paths := w.scanExisting(folder.Path)
	if len(paths) == 0 {
		log.WithField("folder", folder.Path).Info("No existing files to organize")
		return
	}

	log.WithFields(logrus.Fields{
		"folder": folder.Path,
		"files":  len(paths),
	}).Info("Organizing existing files")
	if _, err := w.org.OrganizeFiles(ctx, folder.Path, folder.Instruction, paths); err != nil {
		log.WithError(err).WithField("folder", folder.Path).Warn("Failed to organize existing files")
	}
}

// scanExisting collects every file under root for the initial pass. In
// organize-existing mode the catch-up cutoff drops files that were
// already there before the last session; a reorganize ignores the cutoff
// because the user asked for everything to move.
func (w *Watcher) scanExisting(root string) []string {
	var cutoff time.Time
	if w.cfg.Mode == ModeOrganizeExisting && w.cfg.CatchUpSince != nil {
		cutoff = *w.cfg.CatchUpSince
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.WithError(err).WithField("path", path).Debug("Skipping unreadable path")
			return nil
		}
		if d.IsDir() || Ignored(d.Name()) {
			return nil
		}
		if !cutoff.IsZero() {
			info, ierr := d.Info()
			if ierr != nil || !info.ModTime().After(cutoff) {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("folder", root).Warn("Failed to scan folder")
	}
	return paths
}

// markKnown snapshots every watched folder's current top level so the
// poll loop only reacts to files that appear afterwards. Ignored names
// are included: they are known, just never pending.
func (w *Watcher) markKnown() {
	for _, folder := range w.cfg.Folders {
		w.known[folder.Path] = w.scanTopLevel(folder.Path)
	}
}

func (w *Watcher) scanTopLevel(folder string) map[string]bool {
	files := make(map[string]bool)
	entries, err := os.ReadDir(folder)
	if err != nil {
		log.WithError(err).WithField("folder", folder).Debug("Failed to list folder")
		return files
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files[filepath.Join(folder, entry.Name())] = true
	}
	return files
}

// detectNewFiles moves newly appeared top-level names into the pending
// set, stamped with first-seen time.
func (w *Watcher) detectNewFiles() {
	for _, folder := range w.cfg.Folders {
		current := w.scanTopLevel(folder.Path)
		known := w.known[folder.Path]

		for path := range current {
			if known[path] {
				continue
			}
			if _, alreadyPending := w.pending[path]; alreadyPending {
				continue
			}
			if Ignored(filepath.Base(path)) {
				continue
			}
			w.pending[path] = time.Now()
			log.WithField("path", path).Debug("New file detected")
		}

		w.known[folder.Path] = current
	}
}

// processPending promotes files that sat out the debounce window with a
// steady size, groups them by watched folder, and submits one batch per
// folder. A file is attempted once: whatever the pipeline returns, it
// leaves pending and is already known.
func (w *Watcher) processPending(ctx context.Context) {
	if len(w.pending) == 0 {
		return
	}
	now := time.Now()

	var stable []string
	for path, firstSeen := range w.pending {
		if now.Sub(firstSeen) < w.cfg.debounce() {
			continue
		}
		steady, exists := w.settled(path)
		if !exists {
			delete(w.pending, path)
			continue
		}
		if !steady {
			// Still being written, check again next tick.
			continue
		}
		stable = append(stable, path)
	}
	if len(stable) == 0 {
		return
	}
	sort.Strings(stable)

	for _, batch := range w.groupByFolder(stable) {
		if ctx.Err() != nil {
			return
		}
		w.submit(ctx, batch)
	}
}

// settled samples the file size twice across the probe gap. The second
// return is false when the file vanished or became unreadable.
func (w *Watcher) settled(path string) (bool, bool) {
	first, err := os.Stat(path)
	if err != nil {
		return false, false
	}
	time.Sleep(w.cfg.probeGap())
	second, err := os.Stat(path)
	if err != nil {
		return false, false
	}
	return first.Size() == second.Size(), true
}

type folderBatch struct {
	folder Folder
	paths  []string
}

// groupByFolder buckets stable files by their nearest ancestor watched
// folder. One batch means one plan request; folders never mix.
func (w *Watcher) groupByFolder(stable []string) []folderBatch {
	byPath := make(map[string][]string)
	folders := make(map[string]Folder)
	var order []string

	for _, path := range stable {
		folder, ok := w.nearestFolder(path)
		if !ok {
			delete(w.pending, path)
			continue
		}
		if _, seen := byPath[folder.Path]; !seen {
			order = append(order, folder.Path)
			folders[folder.Path] = folder
		}
		byPath[folder.Path] = append(byPath[folder.Path], path)
	}

	batches := make([]folderBatch, 0, len(order))
	for _, key := range order {
		batches = append(batches, folderBatch{folder: folders[key], paths: byPath[key]})
	}
	return batches
}

// nearestFolder returns the deepest watched folder containing path.
func (w *Watcher) nearestFolder(path string) (Folder, bool) {
	var best Folder
	bestLen := -1
	for _, folder := range w.cfg.Folders {
		if pathutil.WithinRoot(folder.Path, path) && len(folder.Path) > bestLen {
			best = folder
			bestLen = len(folder.Path)
		}
	}
	return best, bestLen >= 0
}

func (w *Watcher) submit(ctx context.Context, batch folderBatch) {
	defer func() {
		for _, path := range batch.paths {
			delete(w.pending, path)
		}
	}()

	if strings.TrimSpace(batch.folder.Instruction) == "" {
		log.WithFields(logrus.Fields{
			"folder": batch.folder.Path,
			"files":  len(batch.paths),
		}).Info("Folder has no instruction, leaving new files in place")
		return
	}

	log.WithFields(logrus.Fields{
		"folder": batch.folder.Path,
		"files":  len(batch.paths),
	}).Info("Organizing new files")

	if _, err := w.org.OrganizeFiles(ctx, batch.folder.Path, batch.folder.Instruction, batch.paths); err != nil {
		// No tight retry: the files stay put and stay known, the next
		// arrival triggers a fresh attempt.
		if errors.Is(err, organizer.ErrNoFiles) {
			log.WithField("folder", batch.folder.Path).Debug("Batch emptied before organizing")
			return
		}
		log.WithError(err).WithField("folder", batch.folder.Path).Warn("Auto-organize failed")
	}
}
