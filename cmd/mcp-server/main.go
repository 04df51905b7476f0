// Command mcp-server exposes the tidyfolder MCP tools over stdio for MCP
// clients that launch their servers as subprocesses. The HTTP transport
// lives in 'tidyfolder serve'; this binary serves the same tools.
package main

import (
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/tidyfolder/tidyfolder/pkg/analyzer"
	"github.com/tidyfolder/tidyfolder/pkg/home"
	"github.com/tidyfolder/tidyfolder/pkg/index"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
	"github.com/tidyfolder/tidyfolder/pkg/mover"
	"github.com/tidyfolder/tidyfolder/pkg/organizer"
	"github.com/tidyfolder/tidyfolder/pkg/pathutil"
	"github.com/tidyfolder/tidyfolder/pkg/planner"
	"github.com/tidyfolder/tidyfolder/pkg/server"
	"github.com/tidyfolder/tidyfolder/pkg/watcher"
)

var log *logrus.Entry

func init() {
	// Stdout carries the MCP protocol; all logging goes to stderr.
	logger.GetLogger().SetOutput(os.Stderr)
	log = logger.WithName("mcp")
}

func main() {
	mgr, err := home.NewManager("")
	if err != nil {
		log.WithError(err).Fatal("Failed to resolve home directory")
	}
	if !mgr.Exists() {
		log.Fatalf("Home directory %s does not exist, run 'tidyfolder init' first", mgr.Path())
	}

	config, err := mgr.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	if err := logger.ConfigureFromString(config.Logging.Level); err != nil {
		log.WithError(err).Warn("Invalid log level in config, keeping default")
	}

	store, err := index.NewStore(mgr.IndexPath())
	if err != nil {
		log.WithError(err).Fatal("Failed to open file index")
	}
	defer store.Close()

	client, err := planner.NewFromConfig(&config.Planner)
	if err != nil {
		log.WithError(err).Fatal("Failed to configure planner")
	}

	fileAnalyzer := analyzer.New()
	org := organizer.New(organizer.Options{
		Store:    store,
		Analyzer: fileAnalyzer,
		Planner:  client,
		Logs:     mover.NewLogStore(mgr.MoveLogsPath()),
		MaxDepth: config.Watcher.MaxDepth(),
	})

	// Watched folders from config so watch-status can report them.
	var folders []watcher.Folder
	for _, f := range config.Watcher.Folders {
		path, perr := pathutil.ExpandPath(f.Path)
		if perr != nil {
			continue
		}
		folders = append(folders, watcher.Folder{Path: path, Instruction: f.Instruction})
	}

	srv := server.New(server.Options{
		Config:    config,
		Organizer: org,
		Store:     store,
		Analyzer:  fileAnalyzer,
		Watch: watcher.Config{
			Folders:      folders,
			PollInterval: config.Watcher.PollInterval(),
			Debounce:     config.Watcher.Debounce(),
		},
	})

	log.Info("Starting MCP server on stdio")

	if err := mcpserver.ServeStdio(srv.MCPServer()); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}
