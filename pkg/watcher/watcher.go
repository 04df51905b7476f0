// Package watcher polls watched folders for new files and feeds them
// through the organize pipeline once they stop changing. Polling keeps
// the behavior identical across platforms and filesystems; the cost is
// bounded by a small number of top-level directory listings per tick.
package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tidyfolder/tidyfolder/pkg/events"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
	"github.com/tidyfolder/tidyfolder/pkg/mover"
	"github.com/tidyfolder/tidyfolder/pkg/organizer"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("watcher")
}

// ErrAlreadyRunning is returned when a second loop is started on the same
// watcher.
var ErrAlreadyRunning = errors.New("watcher is already running")

// Mode selects what Start does with files already present in the watched
// folders.
type Mode string

const (
	// ModeWatchOnly marks current contents as known and organizes only
	// new arrivals.
	ModeWatchOnly Mode = "watch-only"
	// ModeOrganizeExisting organizes what is already there, honoring the
	// catch-up cutoff, then keeps watching.
	ModeOrganizeExisting Mode = "organize-existing"
	// ModeReorganizeAll flattens each folder first so everything gets
	// re-partitioned under the current instruction.
	ModeReorganizeAll Mode = "reorganize-all"
)

// Folder pairs a watched path with the instruction used to organize it.
type Folder struct {
	Path        string `json:"path"`
	Instruction string `json:"instruction"`
}

// Config carries everything a watcher needs; it holds no global state.
type Config struct {
	Folders      []Folder
	Mode         Mode
	PollInterval time.Duration
	Debounce     time.Duration
	ProbeGap     time.Duration
	CatchUpSince *time.Time
}

func (c *Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return 2 * time.Second
	}
	return c.PollInterval
}

func (c *Config) debounce() time.Duration {
	if c.Debounce <= 0 {
		return 3 * time.Second
	}
	return c.Debounce
}

func (c *Config) probeGap() time.Duration {
	if c.ProbeGap <= 0 {
		return 500 * time.Millisecond
	}
	return c.ProbeGap
}

// Organizer is the slice of the organize pipeline the watcher drives.
type Organizer interface {
	OrganizeFiles(ctx context.Context, folder, instruction string, paths []string) (*organizer.ApplyResult, error)
	Flatten(ctx context.Context, folder string) (*mover.FlattenResult, error)
}

// Watcher owns one poll loop. All of knownFiles/pendingFiles is mutated
// only by that loop, so none of it needs locking; Start/Stop and Status
// are the only cross-goroutine signals.
type Watcher struct {
	cfg Config
	org Organizer
	bus *events.Bus

	known   map[string]map[string]bool
	pending map[string]time.Time

	running      atomic.Bool
	pendingCount atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a watcher over the given pipeline. Events are optional.
func New(cfg Config, org Organizer, bus *events.Bus) *Watcher {
	return &Watcher{cfg: cfg, org: org, bus: bus}
}

// Run executes the watch loop until ctx is cancelled and returns the
// cancellation cause. Only one loop may run at a time.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer w.running.Store(false)
	return w.run(ctx)
}

// Start launches the watch loop in the background. Use Stop to end it.
func (w *Watcher) Start() error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go func() {
		defer close(done)
		defer w.running.Store(false)
		if err := w.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Watcher exited")
		}
	}()
	return nil
}

// Stop cancels a loop started with Start and waits for the current tick
// to finish. Files mid-move always complete or fail cleanly.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a loop is active.
func (w *Watcher) Running() bool {
	return w.running.Load()
}

// Status is a read-only snapshot for surfaces like the HTTP API.
type Status struct {
	Running bool     `json:"running"`
	Mode    Mode     `json:"mode"`
	Folders []Folder `json:"folders"`
	Pending int      `json:"pending"`
}

// Status reports the watcher's externally visible state.
func (w *Watcher) Status() Status {
	return Status{
		Running: w.running.Load(),
		Mode:    w.cfg.Mode,
		Folders: append([]Folder(nil), w.cfg.Folders...),
		Pending: int(w.pendingCount.Load()),
	}
}
