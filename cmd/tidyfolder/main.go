package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tidyfolder/tidyfolder/pkg/analyzer"
	"github.com/tidyfolder/tidyfolder/pkg/events"
	"github.com/tidyfolder/tidyfolder/pkg/home"
	"github.com/tidyfolder/tidyfolder/pkg/index"
	"github.com/tidyfolder/tidyfolder/pkg/indexer"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
	"github.com/tidyfolder/tidyfolder/pkg/mover"
	"github.com/tidyfolder/tidyfolder/pkg/organizer"
	"github.com/tidyfolder/tidyfolder/pkg/pathutil"
	"github.com/tidyfolder/tidyfolder/pkg/planner"
	"github.com/tidyfolder/tidyfolder/pkg/server"
	"github.com/tidyfolder/tidyfolder/pkg/watcher"
)

var (
	log *logrus.Entry

	// Global options
	homePath string

	// Organize command options
	instruction string
	autoMode    bool
	applyMoves  bool

	// Index command options
	recursive   bool
	workerCount int

	// Watch and serve command options
	watchMode string
	port      int
	autoWatch bool
)

func init() {
	log = logger.WithName("cli")
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "tidyfolder",
		Short: "AI-directed file organizer",
		Long: `tidyfolder - AI-directed file organizer built with Go.

It indexes files, asks a language-model planner how to group them, and
executes the resulting moves itself: validated, logged, and undoable.
The watch command keeps folders organized as new files arrive.`,
	}

	rootCmd.PersistentFlags().StringVar(&homePath, "home", "", "Home directory (default: ~/.tidyfolder or $TIDYFOLDER_HOME)")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create the home directory and default configuration",
		Run:   runInit,
	}

	var indexCmd = &cobra.Command{
		Use:   "index <path>",
		Short: "Analyze and index the files in a folder",
		Args:  cobra.ExactArgs(1),
		Run:   runIndex,
	}

	indexCmd.Flags().BoolVar(&recursive, "recursive", false, "Descend into subfolders")
	indexCmd.Flags().IntVar(&workerCount, "workers", 50, "Number of parallel workers")

	var organizeCmd = &cobra.Command{
		Use:   "organize <path>",
		Short: "Organize a folder's top-level files per an instruction",
		Args:  cobra.ExactArgs(1),
		Run:   runOrganize,
	}

	organizeCmd.Flags().StringVarP(&instruction, "instruction", "i", "", "How to organize the files, in plain language")
	organizeCmd.Flags().BoolVar(&autoMode, "auto", false, "Force full coverage: files the planner leaves out land in \"misc\"")
	organizeCmd.Flags().BoolVar(&applyMoves, "apply", false, "Execute the moves (default: preview only)")

	var undoCmd = &cobra.Command{
		Use:   "undo [log-file]",
		Short: "Move the files of a logged batch back to their original locations",
		Args:  cobra.MaximumNArgs(1),
		Run:   runUndo,
	}

	var historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List executed move batches",
		Run:   runHistory,
	}

	var historyClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all move logs",
		Run:   runHistoryClear,
	}
	historyCmd.AddCommand(historyClearCmd)

	var flattenCmd = &cobra.Command{
		Use:   "flatten <path>",
		Short: "Move every buried file up to the folder's top level",
		Args:  cobra.ExactArgs(1),
		Run:   runFlatten,
	}

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch configured folders and organize files as they arrive",
		Run:   runWatch,
	}

	watchCmd.Flags().StringVar(&watchMode, "mode", "watch-only", "watch-only, organize-existing, or reorganize-all")

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API + MCP server",
		Run:   runServe,
	}

	serveCmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default: from config)")
	serveCmd.Flags().BoolVar(&autoWatch, "watch", false, "Also start the folder watcher")
	serveCmd.Flags().StringVar(&watchMode, "mode", "watch-only", "Watcher mode when --watch is set")

	rootCmd.AddCommand(initCmd, indexCmd, organizeCmd, undoCmd, historyCmd, flattenCmd, watchCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// app bundles the long-lived pieces a command needs.
type app struct {
	home     *home.Manager
	config   *home.Config
	store    *index.Store
	analyzer analyzer.Analyzer
	bus      *events.Bus
	org      *organizer.Organizer
}

// openApp loads the home directory and wires the core. Commands that talk
// to the planner pass withPlanner; everything else works without an API
// key.
func openApp(withPlanner bool) *app {
	mgr, err := home.NewManager(homePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !mgr.Exists() {
		fmt.Fprintf(os.Stderr, "Error: home directory %s does not exist. Run 'tidyfolder init' first.\n", mgr.Path())
		os.Exit(1)
	}

	config, err := mgr.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.ConfigureFromString(config.Logging.Level); err != nil {
		log.WithError(err).Warn("Invalid log level in config, keeping default")
	}
	if config.Logging.File != "" {
		logFile := config.Logging.File
		if !filepath.IsAbs(logFile) {
			logFile = mgr.JoinPath(logFile)
		}
		logger.ConfigureFile(logger.FileConfig{
			Path:       logFile,
			MaxSizeMB:  config.Logging.MaxSizeMB,
			MaxBackups: config.Logging.MaxBackups,
		})
	}

	indexPath := config.Index.Path
	if indexPath == "" {
		indexPath = home.IndexFile
	}
	if !filepath.IsAbs(indexPath) {
		indexPath = mgr.JoinPath(indexPath)
	}
	store, err := index.NewStore(indexPath)
	if err != nil {
		log.WithError(err).Error("Failed to open file index")
		fmt.Fprintf(os.Stderr, "Error: Failed to open file index: %v\n", err)
		os.Exit(1)
	}

	var client planner.Client
	if withPlanner {
		client, err = planner.NewFromConfig(&config.Planner)
		if err != nil {
			store.Close()
			log.WithError(err).Error("Failed to configure planner")
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	bus := events.NewBus()
	fileAnalyzer := analyzer.New()

	return &app{
		home:     mgr,
		config:   config,
		store:    store,
		analyzer: fileAnalyzer,
		bus:      bus,
		org: organizer.New(organizer.Options{
			Store:    store,
			Analyzer: fileAnalyzer,
			Planner:  client,
			Logs:     mover.NewLogStore(mgr.MoveLogsPath()),
			Bus:      bus,
			MaxDepth: config.Watcher.MaxDepth(),
		}),
	}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.WithError(err).Warn("Failed to close file index")
	}
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runInit(cmd *cobra.Command, args []string) {
	mgr, err := home.NewManager(homePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := mgr.Initialize(); err != nil {
		log.WithError(err).Error("Failed to initialize home directory")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Open the index once so the schema exists before first use.
	store, err := index.NewStore(mgr.IndexPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create file index: %v\n", err)
		os.Exit(1)
	}
	store.Close()

	fmt.Printf("Initialized tidyfolder home at %s\n", mgr.Path())
	fmt.Printf("Edit %s to configure watched folders and the planner.\n", mgr.ConfigPath())
}

func runIndex(cmd *cobra.Command, args []string) {
	target := args[0]
	log.WithFields(logrus.Fields{
		"command":   "index",
		"target":    target,
		"recursive": recursive,
	}).Info("Executing command")

	a := openApp(false)
	defer a.close()

	opts := indexer.DefaultOptions()
	opts.Recursive = recursive
	if workerCount > 0 {
		opts.WorkerCount = workerCount
	}
	opts.ProgressCallback = func(stats *indexer.Stats, queued int64) {
		fmt.Printf("  indexed %d files (%d queued)...\n", stats.FilesIndexed, queued)
	}

	ctx, stop := signalContext()
	defer stop()

	stats, err := indexer.Index(ctx, target, a.store, a.analyzer, opts)
	if err != nil {
		log.WithError(err).Error("Failed to index folder")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Indexed %d files (%.2f MB) in %s; %d skipped, %d errors\n",
		stats.FilesIndexed, float64(stats.TotalSize)/(1024*1024),
		stats.Duration.Round(time.Millisecond), stats.FilesSkipped, stats.Errors)
}

func runOrganize(cmd *cobra.Command, args []string) {
	target := args[0]

	if instruction == "" && !autoMode {
		fmt.Fprintln(os.Stderr, "Error: provide --instruction, or use --auto for a generic sort")
		os.Exit(1)
	}
	inst := instruction
	if autoMode {
		if inst == "" {
			inst = "Organize these files into sensibly named folders by type and topic"
		}
		inst = planner.AutoOrganizePrefix + " " + inst
	}

	log.WithFields(logrus.Fields{
		"command": "organize",
		"target":  target,
		"apply":   applyMoves,
	}).Info("Executing command")

	a := openApp(true)
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	if !applyMoves {
		pv, err := a.org.Preview(ctx, target, inst)
		if err != nil {
			exitOrganizeError(err)
		}
		printPreview(pv)
		if len(pv.Ops) > 0 {
			fmt.Println("\nRun again with --apply to execute these moves.")
		}
		return
	}

	res, err := a.org.Organize(ctx, target, inst)
	if err != nil {
		exitOrganizeError(err)
	}

	printPreview(res.Preview)
	if res.Moved != nil {
		fmt.Printf("\nMoved %d of %d files", res.Moved.SuccessCount, res.Moved.TotalCount)
		if res.Moved.LogPath != "" {
			fmt.Printf(" (log: %s)", filepath.Base(res.Moved.LogPath))
		}
		fmt.Println()
		for _, r := range res.Moved.Renamed {
			fmt.Printf("  renamed %s -> %s\n", r.OriginalName, r.NewName)
		}
		for _, e := range res.Moved.Errors {
			fmt.Fprintf(os.Stderr, "  error: %s\n", e)
		}
	}
}

func printPreview(pv *organizer.Preview) {
	fmt.Printf("%s\n", pv.Summary.String())
	for _, folder := range pv.Summary.Folders {
		fmt.Printf("  %-30s %3d files  %8.2f MB\n",
			folder.Name+"/", folder.FileCount, float64(folder.SizeBytes)/(1024*1024))
	}
	if skipped := pv.Summary.Skipped.Total(); skipped > 0 {
		fmt.Printf("  skipped: %d (not found %d, already in place %d, no metadata %d)\n",
			skipped, pv.Skips.NotFound, pv.Skips.AlreadyInPlace, pv.Skips.NoMetadata)
	}
	if pv.Excluded > 0 {
		fmt.Printf("  excluded from planning: %d files (see log)\n", pv.Excluded)
	}
}

// exitOrganizeError prints pipeline failures in their most useful form: a
// rejected plan lists its violations, everything else is one line.
func exitOrganizeError(err error) {
	var vErr *organizer.ValidationError
	if errors.As(err, &vErr) {
		fmt.Fprintln(os.Stderr, "Error: the proposed plan was rejected:")
		for _, v := range vErr.Violations {
			fmt.Fprintf(os.Stderr, "  - %s\n", v)
		}
		os.Exit(1)
	}
	log.WithError(err).Error("Organize failed")
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runUndo(cmd *cobra.Command, args []string) {
	logPath := ""
	if len(args) > 0 {
		logPath = args[0]
	}

	log.WithFields(logrus.Fields{
		"command": "undo",
		"logPath": logPath,
	}).Info("Executing command")

	a := openApp(false)
	defer a.close()

	// A bare name from 'tidyfolder history' resolves inside the log
	// directory.
	if logPath != "" && filepath.Dir(logPath) == "." {
		logPath = filepath.Join(a.home.MoveLogsPath(), logPath)
	}

	ctx, stop := signalContext()
	defer stop()

	res, usedPath, err := a.org.Undo(ctx, logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Restored %d of %d files from %s\n", res.Restored, res.Total, filepath.Base(usedPath))
	for _, reason := range res.NotUndoable {
		fmt.Printf("  left in place: %s\n", reason)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "  error: %s\n", e)
	}
	if res.RemovedFolders > 0 {
		fmt.Printf("Removed %d emptied folders\n", res.RemovedFolders)
	}
}

func runHistory(cmd *cobra.Command, args []string) {
	a := openApp(false)
	defer a.close()

	entries, err := a.org.History()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("No move batches recorded")
		return
	}

	fmt.Printf("%-20s %-7s %-40s %s\n", "Timestamp", "Moved", "Folder", "Log")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, e := range entries {
		fmt.Printf("%-20s %3d/%-3d %-40s %s\n",
			e.Entry.Timestamp.Format("2006-01-02 15:04:05"),
			e.Entry.SuccessCount,
			e.Entry.TotalCount,
			truncateString(e.Entry.DestRoot, 40),
			filepath.Base(e.Path),
		)
	}
}

func runHistoryClear(cmd *cobra.Command, args []string) {
	a := openApp(false)
	defer a.close()

	removed, err := a.org.ClearHistory()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d move logs\n", removed)
}

func runFlatten(cmd *cobra.Command, args []string) {
	target := args[0]
	log.WithFields(logrus.Fields{
		"command": "flatten",
		"target":  target,
	}).Info("Executing command")

	a := openApp(false)
	defer a.close()

	expanded, err := pathutil.ExpandAndValidatePath(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	res, err := a.org.Flatten(ctx, expanded)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Moved %d buried files to the top level; removed %d empty folders\n",
		res.Moved, res.RemovedFolders)
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "  error: %s\n", e)
	}
}

func runWatch(cmd *cobra.Command, args []string) {
	mode := parseMode(watchMode)

	a := openApp(true)
	defer a.close()

	watchCfg, ok := watcherConfig(a, mode)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: no watched folders configured. Add them to %s.\n", a.home.ConfigPath())
		os.Exit(1)
	}

	w := watcher.New(watchCfg, a.org, a.bus)

	// Echo pipeline events so the terminal shows what the watcher does.
	eventCh, cancelSub := a.bus.Subscribe()
	defer cancelSub()
	go echoEvents(eventCh)

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("Watching %d folders (mode: %s). Press Ctrl-C to stop.\n", len(watchCfg.Folders), mode)

	err := w.Run(ctx)
	saveLastActive(a.home)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Watcher stopped")
}

// watcherConfig builds the watcher configuration from the loaded config,
// expanding folder paths and loading the catch-up cutoff for
// organize-existing mode.
func watcherConfig(a *app, mode watcher.Mode) (watcher.Config, bool) {
	var folders []watcher.Folder
	for _, f := range a.config.Watcher.Folders {
		path, err := pathutil.ExpandPath(f.Path)
		if err != nil {
			log.WithError(err).WithField("path", f.Path).Warn("Skipping unresolvable watched folder")
			continue
		}
		folders = append(folders, watcher.Folder{Path: path, Instruction: f.Instruction})
	}

	cfg := watcher.Config{
		Folders:      folders,
		Mode:         mode,
		PollInterval: a.config.Watcher.PollInterval(),
		Debounce:     a.config.Watcher.Debounce(),
	}

	if mode == watcher.ModeOrganizeExisting {
		state, err := a.home.LoadState()
		if err != nil {
			log.WithError(err).Warn("Failed to load watcher state, organizing all existing files")
		} else if state.LastActive != nil {
			cfg.CatchUpSince = state.LastActive
			log.WithField("since", state.LastActive.Format(time.RFC3339)).Info("Catch-up cutoff loaded")
		}
	}

	return cfg, len(folders) > 0
}

func saveLastActive(mgr *home.Manager) {
	now := time.Now()
	if err := mgr.SaveState(&home.State{LastActive: &now}); err != nil {
		log.WithError(err).Warn("Failed to persist watcher state")
	}
}

func echoEvents(ch <-chan events.Event) {
	for event := range ch {
		switch event.Kind {
		case events.FilesMoved:
			fmt.Printf("[%s] %s: %s\n", event.Time.Format("15:04:05"), event.Folder, event.Message)
		case events.ValidationFailed:
			fmt.Printf("[%s] plan rejected: %s\n", event.Time.Format("15:04:05"), event.Err)
		case events.PlanRequested, events.PlanReceived:
			log.WithFields(logrus.Fields{
				"kind":   event.Kind,
				"folder": event.Folder,
			}).Debug(event.Message)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) {
	a := openApp(true)
	defer a.close()

	if port > 0 {
		a.config.Server.Port = port
	}

	mode := parseMode(watchMode)
	watchCfg, hasFolders := watcherConfig(a, mode)
	if autoWatch && !hasFolders {
		fmt.Fprintf(os.Stderr, "Error: --watch needs watched folders configured in %s.\n", a.home.ConfigPath())
		os.Exit(1)
	}

	srv := server.New(server.Options{
		Config:    a.config,
		Organizer: a.org,
		Store:     a.store,
		Analyzer:  a.analyzer,
		Bus:       a.bus,
		Watch:     watchCfg,
		AutoWatch: autoWatch,
	})

	ctx, stop := signalContext()
	defer stop()

	err := srv.Run(ctx)
	if autoWatch {
		saveLastActive(a.home)
	}
	if err != nil {
		log.WithError(err).Error("Server failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseMode(s string) watcher.Mode {
	mode := watcher.Mode(s)
	switch mode {
	case watcher.ModeWatchOnly, watcher.ModeOrganizeExisting, watcher.ModeReorganizeAll:
		return mode
	}
	fmt.Fprintf(os.Stderr, "Error: unknown mode %q (use watch-only, organize-existing, or reorganize-all)\n", s)
	os.Exit(1)
	return ""
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
