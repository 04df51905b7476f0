// Package mover executes compiled move operations and owns everything that
// follows from them: the durable move log, undo, empty-folder reclamation,
// and folder flattening. Compilation decided what moves; this package is
// the only place the decisions touch disk.
package mover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
	"github.com/tidyfolder/tidyfolder/pkg/pathutil"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("mover")
}

// Options configures one Execute batch.
type Options struct {
	// DestRoot is recorded in the move log so undo sweeps know their bound.
	DestRoot string

	// Logs receives the batch entry. It is rewritten after every successful
	// move, so a crash mid-batch leaves a log covering the completed
	// prefix. Nil disables logging.
	Logs *LogStore

	// OnMoved runs after each successful move, before the next op starts.
	// Index path updates hang off this; a failed move never reaches it.
	OnMoved func(op models.MoveOp)
}

// Result reports one executed batch. Partial success is a normal outcome:
// Errors lists per-file failures and SuccessCount counts the rest.
type Result struct {
	SuccessCount int
	TotalCount   int
	Errors       []string
	Renamed      []models.RenamedFile
	LogPath      string
}

// Execute runs a compiled batch sequentially. A failed op is recorded and
// the batch continues; nothing aborts on first error. Cancellation is
// checked between ops only, so a move already in flight always finishes or
// fails cleanly. When cancelled, the result covers the ops that ran and the
// error is the context's.
func Execute(ctx context.Context, ops []models.MoveOp, opts Options) (*Result, error) {
	result := &Result{TotalCount: len(ops)}
	if len(ops) == 0 {
		return result, nil
	}

	entry := &models.MoveLogEntry{
		Timestamp:  time.Now(),
		BatchID:    uuid.NewString(),
		DestRoot:   opts.DestRoot,
		TotalCount: len(ops),
	}

	writeLog := func() {
		if opts.Logs == nil {
			return
		}
		path, err := opts.Logs.Write(entry)
		if err != nil {
			log.WithError(err).Warn("Failed to write move log")
			return
		}
		result.LogPath = path
	}

	var cancelled error
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}

		if err := pathutil.EnsureDir(filepath.Dir(op.DestPath)); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", op.FileName, err))
			log.WithError(err).WithField("dest", op.DestPath).Error("Failed to create destination folder")
			continue
		}
		if err := moveFile(op.SourcePath, op.DestPath); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", op.FileName, err))
			log.WithError(err).WithFields(logrus.Fields{
				"source": op.SourcePath,
				"dest":   op.DestPath,
			}).Error("Failed to move file")
			continue
		}

		entry.Moves = append(entry.Moves, models.MovePair{From: op.SourcePath, To: op.DestPath})
		if newName := filepath.Base(op.DestPath); newName != op.FileName {
			renamed := models.RenamedFile{OriginalName: op.FileName, NewName: newName}
			entry.RenamedFiles = append(entry.RenamedFiles, renamed)
			result.Renamed = append(result.Renamed, renamed)
		}
		entry.SuccessCount++
		result.SuccessCount++

		writeLog()
		if opts.OnMoved != nil {
			opts.OnMoved(op)
		}

		log.WithFields(logrus.Fields{
			"file": op.FileName,
			"dest": op.DestFolder,
		}).Info("Moved file")
	}

	// A batch that ran but moved nothing still leaves an audit record.
	if result.LogPath == "" && cancelled == nil {
		writeLog()
	}

	log.WithFields(logrus.Fields{
		"moved":  result.SuccessCount,
		"total":  result.TotalCount,
		"errors": len(result.Errors),
	}).Info("Batch complete")

	return result, cancelled
}

// moveFile renames source onto dest, falling back to copy-and-remove when
// the rename crosses filesystems. A file that appeared at dest after
// compilation is a race; it is never overwritten.
func moveFile(source, dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		return fmt.Errorf("destination already exists: %s", dest)
	}

	err := os.Rename(source, dest)
	if err == nil || !isCrossDevice(err) {
		return err
	}

	if err := copyFile(source, dest); err != nil {
		os.Remove(dest)
		return err
	}
	return os.Remove(source)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	return errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV)
}

func copyFile(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
