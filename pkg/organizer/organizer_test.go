package organizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/analyzer"
	"github.com/tidyfolder/tidyfolder/pkg/events"
	"github.com/tidyfolder/tidyfolder/pkg/index"
	"github.com/tidyfolder/tidyfolder/pkg/mover"
	"github.com/tidyfolder/tidyfolder/pkg/planner"
)

// plannerFunc adapts a function to the planner.Client interface so tests
// can build responses from the summaries they actually receive.
type plannerFunc func(ctx context.Context, instruction string, files []models.FileSummary) (models.RawPlan, error)

func (f plannerFunc) RequestPlan(ctx context.Context, instruction string, files []models.FileSummary) (models.RawPlan, error) {
	return f(ctx, instruction, files)
}

// groupByExt answers with one folder per requested extension, in the
// planner's wire format.
func groupByExt(groups map[string]string) plannerFunc {
	return func(_ context.Context, _ string, files []models.FileSummary) (models.RawPlan, error) {
		folders := make(map[string][]int64)
		for _, f := range files {
			folder, ok := groups[filepath.Ext(f.Name)]
			if !ok {
				continue
			}
			folders[folder] = append(folders[folder], f.ID)
		}
		raw, err := json.Marshal(map[string]any{"folders": folders})
		if err != nil {
			return "", err
		}
		return models.RawPlan(raw), nil
	}
}

func staticPlan(raw string) plannerFunc {
	return func(context.Context, string, []models.FileSummary) (models.RawPlan, error) {
		return models.RawPlan(raw), nil
	}
}

type fixture struct {
	org    *Organizer
	store  *index.Store
	folder string
	bus    *events.Bus
}

func newFixture(t *testing.T, client planner.Client) *fixture {
	t.Helper()
	store, err := index.NewStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	folder := t.TempDir()
	bus := events.NewBus()
	org := New(Options{
		Store:    store,
		Analyzer: analyzer.New(),
		Planner:  client,
		Logs:     mover.NewLogStore(filepath.Join(t.TempDir(), "movelogs")),
		Bus:      bus,
	})
	return &fixture{org: org, store: store, folder: folder, bus: bus}
}

func (f *fixture) write(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.folder, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0644))
	return path
}

func drainKinds(ch <-chan events.Event) []events.Kind {
	var kinds []events.Kind
	for {
		select {
		case e := <-ch:
			kinds = append(kinds, e.Kind)
		default:
			return kinds
		}
	}
}

func TestPreview(t *testing.T) {
	f := newFixture(t, groupByExt(map[string]string{
		".pdf": "documents",
		".txt": "documents",
		".png": "images",
	}))
	f.write(t, "report.pdf")
	f.write(t, "notes.txt")
	f.write(t, "photo.png")

	ch, cancel := f.bus.Subscribe()
	defer cancel()

	pv, err := f.org.Preview(context.Background(), f.folder, "group documents and images")
	require.NoError(t, err)

	assert.Equal(t, f.folder, pv.Folder)
	assert.Len(t, pv.Ops, 3)
	assert.Equal(t, 0, pv.Excluded)
	assert.Equal(t, "3 of 3 files will move", pv.Summary.String())

	dests := make(map[string]string)
	for _, op := range pv.Ops {
		dests[op.FileName] = op.DestPath
	}
	assert.Equal(t, filepath.Join(f.folder, "documents", "report.pdf"), dests["report.pdf"])
	assert.Equal(t, filepath.Join(f.folder, "images", "photo.png"), dests["photo.png"])

	// Preview never touches the filesystem.
	assert.FileExists(t, filepath.Join(f.folder, "report.pdf"))
	assert.NoDirExists(t, filepath.Join(f.folder, "documents"))

	assert.Equal(t, []events.Kind{events.PlanRequested, events.PlanReceived}, drainKinds(ch))
}

func TestPreviewValidationError(t *testing.T) {
	f := newFixture(t, staticPlan(`{"folders": {"../evil": [1]}}`))
	f.write(t, "report.pdf")

	ch, cancel := f.bus.Subscribe()
	defer cancel()

	_, err := f.org.Preview(context.Background(), f.folder, "sort my files")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Contains(t, verr.Violations[0], "path traversal not allowed")

	kinds := drainKinds(ch)
	assert.Contains(t, kinds, events.ValidationFailed)
}

func TestPreviewAutoModeCoversEveryFile(t *testing.T) {
	// The planner only places the pdf; auto mode must sweep the rest
	// into misc before validation.
	client := plannerFunc(func(_ context.Context, _ string, files []models.FileSummary) (models.RawPlan, error) {
		for _, f := range files {
			if filepath.Ext(f.Name) == ".pdf" {
				return models.RawPlan(fmt.Sprintf(`{"folders": {"documents": [%d]}}`, f.ID)), nil
			}
		}
		return `{"folders": {}}`, nil
	})
	f := newFixture(t, client)
	f.write(t, "report.pdf")
	f.write(t, "mystery.bin")

	pv, err := f.org.Preview(context.Background(), f.folder, planner.AutoOrganizePrefix+" tidy this folder")
	require.NoError(t, err)

	require.Len(t, pv.Ops, 2)
	misc := pv.Plan.Folder("misc")
	require.NotNil(t, misc)
	assert.Len(t, misc.IDs, 1)
}

func TestPreviewExcludesUnindexableFiles(t *testing.T) {
	f := newFixture(t, groupByExt(map[string]string{".txt": "text"}))
	f.write(t, "notes.txt")
	require.NoError(t, os.Symlink(filepath.Join(f.folder, "missing"), filepath.Join(f.folder, "ghost.txt")))

	pv, err := f.org.Preview(context.Background(), f.folder, "sort")
	require.NoError(t, err)

	assert.Equal(t, 1, pv.Excluded)
	require.Len(t, pv.Ops, 1)
	assert.Equal(t, "notes.txt", pv.Ops[0].FileName)
}

func TestPreviewRejectsBadInput(t *testing.T) {
	f := newFixture(t, staticPlan(`{"folders": {}}`))

	t.Run("empty instruction", func(t *testing.T) {
		_, err := f.org.Preview(context.Background(), f.folder, "   ")
		assert.Error(t, err)
	})

	t.Run("empty folder", func(t *testing.T) {
		_, err := f.org.Preview(context.Background(), f.folder, "sort")
		assert.ErrorIs(t, err, ErrNoFiles)
	})

	t.Run("missing folder", func(t *testing.T) {
		_, err := f.org.Preview(context.Background(), filepath.Join(f.folder, "nope"), "sort")
		assert.Error(t, err)
	})

	t.Run("folder is a file", func(t *testing.T) {
		path := f.write(t, "plain.txt")
		_, err := f.org.Preview(context.Background(), path, "sort")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})
}

func TestPreviewPlannerError(t *testing.T) {
	client := plannerFunc(func(context.Context, string, []models.FileSummary) (models.RawPlan, error) {
		return "", &planner.Error{Provider: "openai", Err: errors.New("boom")}
	})
	f := newFixture(t, client)
	f.write(t, "report.pdf")

	_, err := f.org.Preview(context.Background(), f.folder, "sort")
	var perr *planner.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "openai", perr.Provider)
}

func TestOrganize(t *testing.T) {
	f := newFixture(t, groupByExt(map[string]string{
		".pdf": "documents",
		".png": "images",
	}))
	f.write(t, "report.pdf")
	f.write(t, "photo.png")

	ch, cancel := f.bus.Subscribe()
	defer cancel()

	result, err := f.org.Organize(context.Background(), f.folder, "sort by type")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Moved.SuccessCount)
	assert.Empty(t, result.Moved.Errors)
	assert.FileExists(t, filepath.Join(f.folder, "documents", "report.pdf"))
	assert.FileExists(t, filepath.Join(f.folder, "images", "photo.png"))
	assert.NoFileExists(t, filepath.Join(f.folder, "report.pdf"))

	// The index follows the moves.
	moved, err := f.store.GetByPath(filepath.Join(f.folder, "documents", "report.pdf"))
	require.NoError(t, err)
	require.NotNil(t, moved)
	stale, err := f.store.GetByPath(filepath.Join(f.folder, "report.pdf"))
	require.NoError(t, err)
	assert.Nil(t, stale)

	// The batch is logged for undo.
	history, err := f.org.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].Entry.SuccessCount)
	assert.Equal(t, f.folder, history[0].Entry.DestRoot)

	kinds := drainKinds(ch)
	assert.Equal(t, []events.Kind{events.PlanRequested, events.PlanReceived, events.FilesMoved}, kinds)
}

func TestOrganizeNothingToMove(t *testing.T) {
	// The file disappears while the planner is thinking; compile skips it
	// and the batch never starts.
	var f *fixture
	client := plannerFunc(func(_ context.Context, _ string, files []models.FileSummary) (models.RawPlan, error) {
		require.NoError(t, os.Remove(filepath.Join(f.folder, "report.pdf")))
		return models.RawPlan(fmt.Sprintf(`{"folders": {"docs": [%d]}}`, files[0].ID)), nil
	})
	f = newFixture(t, client)
	f.write(t, "report.pdf")

	result, err := f.org.Organize(context.Background(), f.folder, "sort")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Moved.SuccessCount)
	assert.Equal(t, 1, result.Preview.Skips.NotFound)

	// A batch that never started leaves no move log.
	history, err := f.org.History()
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestOrganizeFilesSubset(t *testing.T) {
	f := newFixture(t, groupByExt(map[string]string{".pdf": "documents"}))
	newcomer := f.write(t, "fresh.pdf")
	f.write(t, "resident.pdf")

	result, err := f.org.OrganizeFiles(context.Background(), f.folder, "sort", []string{newcomer})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Moved.SuccessCount)
	assert.FileExists(t, filepath.Join(f.folder, "documents", "fresh.pdf"))

	// Files outside the batch never reach the planner.
	assert.FileExists(t, filepath.Join(f.folder, "resident.pdf"))
}

func TestUndoLatest(t *testing.T) {
	f := newFixture(t, groupByExt(map[string]string{".pdf": "documents"}))
	original := f.write(t, "report.pdf")

	_, err := f.org.Organize(context.Background(), f.folder, "sort")
	require.NoError(t, err)
	require.NoFileExists(t, original)

	result, logPath, err := f.org.Undo(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, logPath)
	assert.Equal(t, 1, result.Restored)
	assert.FileExists(t, original)
	assert.NoDirExists(t, filepath.Join(f.folder, "documents"))

	// Index points back at the original location.
	record, err := f.store.GetByPath(original)
	require.NoError(t, err)
	require.NotNil(t, record)
}

func TestUndoWithNoHistory(t *testing.T) {
	f := newFixture(t, staticPlan(`{"folders": {}}`))
	_, _, err := f.org.Undo(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no move logs")
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t, groupByExt(map[string]string{".pdf": "documents"}))
	f.write(t, "report.pdf")
	_, err := f.org.Organize(context.Background(), f.folder, "sort")
	require.NoError(t, err)

	removed, err := f.org.ClearHistory()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	history, err := f.org.History()
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestFlattenUpdatesIndex(t *testing.T) {
	f := newFixture(t, staticPlan(`{"folders": {}}`))
	buried := f.write(t, filepath.Join("deep", "nested", "old.txt"))

	// Seed the index as if the file had been organized there earlier.
	record := &models.FileRecord{Path: buried, Name: "old.txt", SizeBytes: 10}
	require.NoError(t, f.store.Put(record))

	result, err := f.org.Flatten(context.Background(), f.folder)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Moved)
	assert.FileExists(t, filepath.Join(f.folder, "old.txt"))
	assert.NoDirExists(t, filepath.Join(f.folder, "deep"))

	updated, err := f.store.GetByID(record.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, filepath.Join(f.folder, "old.txt"), updated.Path)
}
