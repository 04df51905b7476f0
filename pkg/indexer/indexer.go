package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/analyzer"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
	"github.com/tidyfolder/tidyfolder/pkg/pathutil"
	"github.com/tidyfolder/tidyfolder/pkg/queue"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("indexer")
}

// RecordStore is the slice of the file index the indexer writes to.
type RecordStore interface {
	Put(record *models.FileRecord) error
}

// ProgressCallback receives periodic progress updates during a run
type ProgressCallback func(stats *Stats, queued int64)

// Options configures a bulk indexing run
type Options struct {
	Recursive        bool             // Descend into subfolders (default: top level only)
	WorkerCount      int              // Number of parallel workers
	QueueSize        int              // Size of job queue
	ProgressInterval time.Duration    // How often to report progress
	ProgressCallback ProgressCallback // Optional progress callback
}

// DefaultOptions returns default options
func DefaultOptions() *Options {
	return &Options{
		Recursive:        false,
		WorkerCount:      50,
		QueueSize:        1000,
		ProgressInterval: 5 * time.Second,
	}
}

// Stats reports the outcome of an indexing run
type Stats struct {
	FilesIndexed int
	FilesSkipped int
	Errors       int
	TotalSize    int64
	Duration     time.Duration
	StartTime    time.Time
	EndTime      time.Time
}

// run carries the shared state of one indexing pass
type run struct {
	ctx      context.Context
	store    RecordStore
	analyzer analyzer.Analyzer

	filesIndexed atomic.Int64
	filesSkipped atomic.Int64
	totalSize    atomic.Int64
	errors       atomic.Int64
}

func (r *run) snapshot() *Stats {
	return &Stats{
		FilesIndexed: int(r.filesIndexed.Load()),
		FilesSkipped: int(r.filesSkipped.Load()),
		Errors:       int(r.errors.Load()),
		TotalSize:    r.totalSize.Load(),
	}
}

// Index analyzes every eligible file under root and commits a record per
// file. Records are committed one by one, so a cancelled run keeps
// everything committed before the cancellation and drops only in-flight
// work.
func Index(ctx context.Context, root string, store RecordStore, a analyzer.Analyzer, opts *Options) (*Stats, error) {
	startTime := time.Now()

	if opts == nil {
		opts = DefaultOptions()
	}

	abs, err := pathutil.ExpandAndValidatePath(root)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"root":        abs,
		"recursive":   opts.Recursive,
		"workerCount": opts.WorkerCount,
	}).Info("Starting index run")

	r := &run{
		ctx:      ctx,
		store:    store,
		analyzer: a,
	}

	pool := queue.NewWorkerPool(opts.WorkerCount, opts.QueueSize)
	pool.Start()

	// Progress reporter
	stopProgress := make(chan struct{})
	if opts.ProgressCallback != nil {
		go reportProgress(r, pool, opts, stopProgress)
	}

	walkErr := submitJobs(ctx, abs, r, pool, opts.Recursive)

	// Every queued job runs even after cancellation; cancelled jobs bail
	// out at their first context check, so Wait always returns.
	pool.Wait()
	close(stopProgress)

	endTime := time.Now()
	stats := r.snapshot()
	stats.Duration = endTime.Sub(startTime)
	stats.StartTime = startTime
	stats.EndTime = endTime

	log.WithFields(logrus.Fields{
		"root":         abs,
		"filesIndexed": stats.FilesIndexed,
		"filesSkipped": stats.FilesSkipped,
		"errors":       stats.Errors,
		"duration":     stats.Duration,
	}).Info("Index run complete")

	if walkErr != nil {
		return stats, walkErr
	}
	return stats, ctx.Err()
}

// submitJobs walks root and submits one job per eligible file.
func submitJobs(ctx context.Context, root string, r *run, pool *queue.WorkerPool, recursive bool) error {
	submit := func(path string) {
		job := &fileIndexJob{path: path, run: r}
		if err := pool.Submit(job); err != nil {
			// Queue full or shutting down: process inline instead of
			// dropping the file.
			if err := job.Execute(ctx); err != nil {
				log.WithError(err).WithField("path", path).Debug("Inline job failed")
			}
		}
	}

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return fmt.Errorf("failed to read folder: %w", err)
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil
			}
			if entry.IsDir() {
				continue
			}
			if analyzer.ShouldIgnore(entry.Name()) {
				r.filesSkipped.Add(1)
				continue
			}
			submit(filepath.Join(root, entry.Name()))
		}
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.errors.Add(1)
			log.WithError(err).WithField("path", path).Warn("Walk error")
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fs.SkipAll
		}
		if d.IsDir() {
			if path != root && analyzer.ShouldIgnore(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if analyzer.ShouldIgnore(d.Name()) {
			r.filesSkipped.Add(1)
			return nil
		}
		submit(path)
		return nil
	})
}

// reportProgress periodically reports indexing progress
func reportProgress(r *run, pool *queue.WorkerPool, opts *Options, stop chan struct{}) {
	ticker := time.NewTicker(opts.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			poolStats := pool.Stats()
			log.WithFields(logrus.Fields{
				"filesIndexed": r.filesIndexed.Load(),
				"jobsQueued":   poolStats.JobsQueued,
				"jobsFailed":   poolStats.JobsFailed,
			}).Info("Index progress")
			opts.ProgressCallback(r.snapshot(), poolStats.JobsQueued)
		case <-stop:
			return
		}
	}
}

// IndexFile analyzes a single file and commits its record, returning the
// stored record with its durable id filled in.
func IndexFile(ctx context.Context, path string, store RecordStore, a analyzer.Analyzer) (*models.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("not a file: %s", path)
	}

	meta, err := a.Analyze(ctx, path, info)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze file: %w", err)
	}

	// Don't commit for a run that was cancelled mid-analysis.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := &models.FileRecord{
		Path:      path,
		Name:      filepath.Base(path),
		SizeBytes: info.Size(),
		Tags:      meta.Tags,
		Caption:   meta.Caption,
		Label:     meta.Label,
		Category:  meta.Category,
		Mtime:     info.ModTime().Unix(),
	}

	if err := store.Put(record); err != nil {
		return nil, fmt.Errorf("failed to store record: %w", err)
	}
	return record, nil
}

// fileIndexJob indexes one file through the worker pool
type fileIndexJob struct {
	path string
	run  *run
}

// ID returns the job ID
func (j *fileIndexJob) ID() string {
	return j.path
}

// Execute analyzes and stores a single file. The run context is checked
// before the analyze call here and after it inside IndexFile, so a
// cancelled run stops committing promptly.
func (j *fileIndexJob) Execute(context.Context) error {
	if err := j.run.ctx.Err(); err != nil {
		return err
	}

	record, err := IndexFile(j.run.ctx, j.path, j.run.store, j.run.analyzer)
	if err != nil {
		if j.run.ctx.Err() == nil {
			j.run.errors.Add(1)
		}
		return err
	}

	j.run.filesIndexed.Add(1)
	j.run.totalSize.Add(record.SizeBytes)

	if logger.IsLevelEnabled(logrus.TraceLevel) {
		log.WithFields(logrus.Fields{
			"path": j.path,
			"size": record.SizeBytes,
		}).Trace("File indexed")
	}

	return nil
}
