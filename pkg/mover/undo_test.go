package mover

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyfolder/tidyfolder/internal/models"
)

func TestUndo(t *testing.T) {
	root := t.TempDir()
	destA := writeMoverFile(t, filepath.Join(root, "docs", "a.txt"))
	destB := writeMoverFile(t, filepath.Join(root, "docs", "renamed (1).txt"))

	entry := &models.MoveLogEntry{
		Timestamp: time.Now(),
		BatchID:   "batch-1",
		DestRoot:  root,
		Moves: []models.MovePair{
			{From: filepath.Join(root, "a.txt"), To: destA},
			{From: filepath.Join(root, "sub", "renamed.txt"), To: destB},
		},
		SuccessCount: 2,
		TotalCount:   2,
	}

	var restored []models.MovePair
	result := Undo(context.Background(), entry, UndoOptions{
		OnRestored: func(pair models.MovePair) { restored = append(restored, pair) },
	})

	assert.Equal(t, 2, result.Restored)
	assert.Equal(t, 2, result.Total)
	assert.Empty(t, result.NotUndoable)
	assert.Empty(t, result.Errors)
	assert.Len(t, restored, 2)

	assert.FileExists(t, filepath.Join(root, "a.txt"))
	assert.FileExists(t, filepath.Join(root, "sub", "renamed.txt"), "renamed files restore under their original name")
	assert.NoFileExists(t, destA)

	// The undo emptied docs/ and swept it away.
	assert.NoDirExists(t, filepath.Join(root, "docs"))
	assert.Equal(t, 1, result.RemovedFolders)
}

func TestUndoIneligibleEntries(t *testing.T) {
	root := t.TempDir()

	// gone.txt vanished from its destination; busy.txt's original location
	// is occupied again; ok.txt restores.
	destBusy := writeMoverFile(t, filepath.Join(root, "docs", "busy.txt"))
	writeMoverFile(t, filepath.Join(root, "busy.txt"))
	destOK := writeMoverFile(t, filepath.Join(root, "docs", "ok.txt"))

	entry := &models.MoveLogEntry{
		Timestamp: time.Now(),
		DestRoot:  root,
		Moves: []models.MovePair{
			{From: filepath.Join(root, "gone.txt"), To: filepath.Join(root, "docs", "gone.txt")},
			{From: filepath.Join(root, "busy.txt"), To: destBusy},
			{From: filepath.Join(root, "ok.txt"), To: destOK},
		},
	}

	result := Undo(context.Background(), entry, UndoOptions{})

	assert.Equal(t, 1, result.Restored)
	require.Len(t, result.NotUndoable, 2)
	assert.Contains(t, result.NotUndoable[0], "file not found: gone.txt")
	assert.Contains(t, result.NotUndoable[1], "original location occupied: busy.txt")

	assert.FileExists(t, filepath.Join(root, "ok.txt"))
	assert.FileExists(t, destBusy, "ineligible entries are left in place")
}

func TestUndoSweepStaysInsideDestRoot(t *testing.T) {
	root := t.TempDir()
	dest := writeMoverFile(t, filepath.Join(root, "docs", "a.txt"))
	writeMoverFile(t, filepath.Join(root, "docs", "keep.txt"))

	entry := &models.MoveLogEntry{
		Timestamp: time.Now(),
		DestRoot:  root,
		Moves:     []models.MovePair{{From: filepath.Join(root, "a.txt"), To: dest}},
	}

	result := Undo(context.Background(), entry, UndoOptions{})
	assert.Equal(t, 1, result.Restored)
	assert.Equal(t, 0, result.RemovedFolders)
	assert.DirExists(t, filepath.Join(root, "docs"), "folders with surviving content stay")
}

func TestUndoWithoutDestRootSkipsSweep(t *testing.T) {
	root := t.TempDir()
	dest := writeMoverFile(t, filepath.Join(root, "docs", "a.txt"))

	entry := &models.MoveLogEntry{
		Timestamp: time.Now(),
		Moves:     []models.MovePair{{From: filepath.Join(root, "a.txt"), To: dest}},
	}

	result := Undo(context.Background(), entry, UndoOptions{})
	assert.Equal(t, 1, result.Restored)
	assert.DirExists(t, filepath.Join(root, "docs"))
}

func TestUndoCancelled(t *testing.T) {
	root := t.TempDir()
	dest := writeMoverFile(t, filepath.Join(root, "docs", "a.txt"))

	entry := &models.MoveLogEntry{
		Timestamp: time.Now(),
		DestRoot:  root,
		Moves:     []models.MovePair{{From: filepath.Join(root, "a.txt"), To: dest}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := Undo(ctx, entry, UndoOptions{})
	assert.Equal(t, 0, result.Restored)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "undo stopped")
	assert.FileExists(t, dest)
}

func TestExecuteThenUndoRoundTrip(t *testing.T) {
	root := t.TempDir()
	logs := NewLogStore(filepath.Join(root, ".logs"))

	a := writeMoverFile(t, filepath.Join(root, "a.txt"))
	b := writeMoverFile(t, filepath.Join(root, "b.txt"))
	ops := []models.MoveOp{
		moveOp(1, a, filepath.Join(root, "text", "a.txt")),
		moveOp(2, b, filepath.Join(root, "text", "b.txt")),
	}

	execResult, err := Execute(context.Background(), ops, Options{DestRoot: root, Logs: logs})
	require.NoError(t, err)
	require.Equal(t, 2, execResult.SuccessCount)

	entry, err := logs.Read(execResult.LogPath)
	require.NoError(t, err)

	undoResult := Undo(context.Background(), entry, UndoOptions{})
	assert.Equal(t, 2, undoResult.Restored)
	assert.FileExists(t, a)
	assert.FileExists(t, b)
	assert.NoDirExists(t, filepath.Join(root, "text"))
}
