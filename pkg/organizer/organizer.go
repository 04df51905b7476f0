// Package organizer wires the index, planner, plan pipeline, and mover
// into the end-to-end organize flow: snapshot a folder, ask the planner
// for a grouping, validate and compile the response, then execute the
// moves with the index kept in line. The planner only ever proposes;
// everything that touches the filesystem is decided here.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/analyzer"
	"github.com/tidyfolder/tidyfolder/pkg/events"
	"github.com/tidyfolder/tidyfolder/pkg/indexer"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
	"github.com/tidyfolder/tidyfolder/pkg/mover"
	"github.com/tidyfolder/tidyfolder/pkg/pathutil"
	"github.com/tidyfolder/tidyfolder/pkg/plan"
	"github.com/tidyfolder/tidyfolder/pkg/planner"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("organizer")
}

// ErrNoFiles is returned when a folder has nothing eligible to organize.
var ErrNoFiles = errors.New("no files to organize")

// RecordStore is the slice of the file index the organizer needs.
type RecordStore interface {
	Put(record *models.FileRecord) error
	GetByPath(path string) (*models.FileRecord, error)
	UpdatePath(id int64, newPath string) error
}

// Options configures an Organizer. Store, Analyzer, Planner, and Logs are
// required; Bus may be nil when nobody listens.
type Options struct {
	Store    RecordStore
	Analyzer analyzer.Analyzer
	Planner  planner.Client
	Logs     *mover.LogStore
	Bus      *events.Bus
	MaxDepth int
}

// Organizer runs the organize pipeline against one folder at a time.
type Organizer struct {
	store    RecordStore
	analyzer analyzer.Analyzer
	planner  planner.Client
	logs     *mover.LogStore
	bus      *events.Bus
	maxDepth int
}

// New builds an Organizer from its dependencies.
func New(opts Options) *Organizer {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = plan.DefaultMaxDepth
	}
	return &Organizer{
		store:    opts.Store,
		analyzer: opts.Analyzer,
		planner:  opts.Planner,
		logs:     opts.Logs,
		bus:      opts.Bus,
		maxDepth: maxDepth,
	}
}

// ValidationError carries every rule violation found in a rejected plan.
// The plan is discarded whole; there is no partial application.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("plan rejected: %s", strings.Join(e.Violations, "; "))
}

// Preview is a validated, compiled plan that has not touched any file.
type Preview struct {
	Folder      string
	Instruction string
	Plan        *models.Plan
	Ops         []models.MoveOp
	Skips       plan.SkipCounts
	Summary     plan.Summary
	Excluded    int
}

// Preview runs the read-only half of the pipeline over every eligible
// top-level file in folder: index, request a plan, parse, dedupe,
// validate, and compile. A rejected plan comes back as a
// *ValidationError.
func (o *Organizer) Preview(ctx context.Context, folder, instruction string) (*Preview, error) {
	folder, err := checkFolder(folder)
	if err != nil {
		return nil, err
	}
	paths, err := listEligible(folder)
	if err != nil {
		return nil, err
	}
	return o.PreviewFiles(ctx, folder, instruction, paths)
}

// PreviewFiles is Preview over an explicit set of files under folder.
// The watcher uses it to plan only new arrivals instead of replanning
// everything already in place.
func (o *Organizer) PreviewFiles(ctx context.Context, folder, instruction string, paths []string) (*Preview, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, errors.New("instruction is empty")
	}
	folder, err := checkFolder(folder)
	if err != nil {
		return nil, err
	}

	records, excluded, err := o.indexPaths(ctx, paths)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, folder)
	}

	summaries := make([]models.FileSummary, len(records))
	byID := make(map[int64]*models.FileRecord, len(records))
	validIDs := make(map[int64]bool, len(records))
	for i, record := range records {
		summaries[i] = record.Summary()
		byID[record.ID] = record
		validIDs[record.ID] = true
	}

	log.WithFields(logrus.Fields{
		"folder": folder,
		"files":  len(records),
	}).Info("Requesting plan")
	o.bus.Publish(events.Event{
		Kind:    events.PlanRequested,
		Folder:  folder,
		Count:   len(records),
		Message: fmt.Sprintf("requesting plan for %d files", len(records)),
	})

	raw, err := o.planner.RequestPlan(ctx, instruction, summaries)
	if err != nil {
		return nil, err
	}

	p, err := plan.Parse(raw)
	if err != nil {
		return nil, err
	}
	p = plan.Deduplicate(p)
	if planner.IsAutoOrganize(instruction) {
		p = plan.EnsureAllIncluded(p, summaries)
	}
	o.bus.Publish(events.Event{
		Kind:    events.PlanReceived,
		Folder:  folder,
		Count:   p.FileCount(),
		Message: fmt.Sprintf("plan proposes %d folders", len(p.Folders)),
	})

	if ok, violations := plan.Validate(p, validIDs, o.maxDepth); !ok {
		o.bus.Publish(events.Event{
			Kind:    events.ValidationFailed,
			Folder:  folder,
			Count:   len(violations),
			Err:     strings.Join(violations, "; "),
			Payload: violations,
		})
		return nil, &ValidationError{Violations: violations}
	}

	ops, skips := plan.Compile(p, byID, folder)
	return &Preview{
		Folder:      folder,
		Instruction: instruction,
		Plan:        p,
		Ops:         ops,
		Skips:       skips,
		Summary:     plan.Summarize(p, ops, skips),
		Excluded:    excluded,
	}, nil
}

// checkFolder expands the folder argument and confirms it is a directory.
func checkFolder(folder string) (string, error) {
	folder, err := pathutil.ExpandAndValidatePath(folder)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(folder)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", folder)
	}
	return folder, nil
}

// listEligible returns the folder's top-level files minus OS artifacts.
func listEligible(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || analyzer.ShouldIgnore(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(folder, entry.Name()))
	}
	return paths, nil
}

// indexPaths indexes the given files and returns the records offered to
// the planner. A file that cannot be indexed is excluded and counted; a
// file the planner never saw can never be moved.
func (o *Organizer) indexPaths(ctx context.Context, paths []string) ([]*models.FileRecord, int, error) {
	var records []*models.FileRecord
	excluded := 0
	for _, path := range paths {
		record, err := o.ensureIndexed(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			excluded++
			log.WithError(err).WithField("path", path).Warn("File excluded from plan")
			continue
		}
		records = append(records, record)
	}
	return records, excluded, nil
}

// ensureIndexed reuses the stored record when it still matches the file
// on disk and reindexes otherwise, so every summary carries a durable id.
func (o *Organizer) ensureIndexed(ctx context.Context, path string) (*models.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	record, err := o.store.GetByPath(path)
	if err != nil {
		return nil, err
	}
	if record != nil && record.Mtime == info.ModTime().Unix() && record.SizeBytes == info.Size() {
		return record, nil
	}
	return indexer.IndexFile(ctx, path, o.store, o.analyzer)
}
