package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/tidyfolder/tidyfolder/pkg/indexer"
	"github.com/tidyfolder/tidyfolder/pkg/pathutil"
)

// registerMCPTools registers all MCP tools with the server
func registerMCPTools(m *mcpserver.MCPServer, s *Server) {
	registerOrganizePreview(m, s)
	registerOrganizeApply(m, s)
	registerOrganizeUndo(m, s)
	registerMoveHistory(m, s)
	registerWatchStatus(m, s)
	registerIndexFolder(m, s)
	registerFlattenFolder(m, s)
}

func registerOrganizePreview(m *mcpserver.MCPServer, s *Server) {
	tool := mcp.NewTool("organize-preview",
		mcp.WithDescription("Preview the file moves an instruction would produce, without touching the filesystem"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Folder whose top-level files should be organized"),
		),
		mcp.WithString("instruction",
			mcp.Required(),
			mcp.Description("Natural-language instruction describing the desired folder structure"),
		),
	)

	m.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Path        string `json:"path"`
			Instruction string `json:"instruction"`
		}

		if err := unmarshalArgs(request.Params.Arguments, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		log.WithField("path", args.Path).Info("Executing organize-preview via MCP")

		pv, err := s.org.Preview(ctx, args.Path, args.Instruction)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Preview failed: %v", err)), nil
		}

		return jsonToolResult(previewResponse(pv, false))
	})
}

func registerOrganizeApply(m *mcpserver.MCPServer, s *Server) {
	tool := mcp.NewTool("organize-apply",
		mcp.WithDescription("Organize a folder's top-level files per the instruction and move them"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Folder whose top-level files should be organized"),
		),
		mcp.WithString("instruction",
			mcp.Required(),
			mcp.Description("Natural-language instruction describing the desired folder structure"),
		),
	)

	m.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Path        string `json:"path"`
			Instruction string `json:"instruction"`
		}

		if err := unmarshalArgs(request.Params.Arguments, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		log.WithField("path", args.Path).Info("Executing organize-apply via MCP")

		res, err := s.org.Organize(ctx, args.Path, args.Instruction)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Organize failed: %v", err)), nil
		}

		resp := previewResponse(res.Preview, true)
		resp.Moved = moveView(res.Moved)
		resp.EmptyFolders = res.EmptyFolders
		return jsonToolResult(resp)
	})
}

func registerOrganizeUndo(m *mcpserver.MCPServer, s *Server) {
	tool := mcp.NewTool("organize-undo",
		mcp.WithDescription("Move the files of a logged batch back to their original locations"),
		mcp.WithString("logPath",
			mcp.Description("Move log to revert (default: the most recent batch)"),
		),
	)

	m.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			LogPath string `json:"logPath,omitempty"`
		}

		if err := unmarshalArgs(request.Params.Arguments, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		res, logPath, err := s.org.Undo(ctx, args.LogPath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Undo failed: %v", err)), nil
		}

		return jsonToolResult(undoResponse{
			LogPath:        logPath,
			Restored:       res.Restored,
			Total:          res.Total,
			NotUndoable:    res.NotUndoable,
			Errors:         res.Errors,
			RemovedFolders: res.RemovedFolders,
		})
	})
}

func registerMoveHistory(m *mcpserver.MCPServer, s *Server) {
	tool := mcp.NewTool("move-history",
		mcp.WithDescription("List logged move batches, newest first"),
	)

	m.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := s.org.History()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read history: %v", err)), nil
		}

		return jsonToolResult(map[string]any{
			"history": entries,
			"count":   len(entries),
		})
	})
}

func registerWatchStatus(m *mcpserver.MCPServer, s *Server) {
	tool := mcp.NewTool("watch-status",
		mcp.WithDescription("Report whether the folder watcher is running, what it watches, and the index size"),
	)

	m.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := statusResponse{Status: s.watchStatus()}
		if count, err := s.store.GetFileCount(); err == nil {
			resp.IndexedFiles = count
		}
		return jsonToolResult(resp)
	})
}

func registerIndexFolder(m *mcpserver.MCPServer, s *Server) {
	tool := mcp.NewTool("index-folder",
		mcp.WithDescription("Analyze and index the files in a folder"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Folder to index"),
		),
		mcp.WithBoolean("recursive",
			mcp.Description("Descend into subfolders (default: top level only)"),
		),
	)

	m.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Path      string `json:"path"`
			Recursive bool   `json:"recursive,omitempty"`
		}

		if err := unmarshalArgs(request.Params.Arguments, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		log.WithField("path", args.Path).Info("Executing index-folder via MCP")

		opts := indexer.DefaultOptions()
		opts.Recursive = args.Recursive
		stats, err := indexer.Index(ctx, args.Path, s.store, s.analyzer, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Indexing failed: %v", err)), nil
		}

		result := fmt.Sprintf("Indexing completed\n"+
			"Files indexed: %d\n"+
			"Files skipped: %d\n"+
			"Total size: %d bytes (%.2f MB)\n"+
			"Errors: %d\n"+
			"Duration: %s",
			stats.FilesIndexed,
			stats.FilesSkipped,
			stats.TotalSize,
			float64(stats.TotalSize)/(1024*1024),
			stats.Errors,
			stats.Duration,
		)

		return mcp.NewToolResultText(result), nil
	})
}

func registerFlattenFolder(m *mcpserver.MCPServer, s *Server) {
	tool := mcp.NewTool("flatten-folder",
		mcp.WithDescription("Move every file below a folder's top level up to the top and remove the emptied subfolders"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Folder to flatten"),
		),
	)

	m.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Path string `json:"path"`
		}

		if err := unmarshalArgs(request.Params.Arguments, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		expandedPath, err := pathutil.ExpandAndValidatePath(args.Path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid path: %v", err)), nil
		}

		log.WithField("path", expandedPath).Info("Executing flatten-folder via MCP")

		res, err := s.org.Flatten(ctx, expandedPath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Flatten failed: %v", err)), nil
		}

		return jsonToolResult(map[string]any{
			"moved":          res.Moved,
			"removedFolders": res.RemovedFolders,
			"errors":         res.Errors,
		})
	})
}

// Helper functions

func unmarshalArgs(arguments interface{}, v interface{}) error {
	data, err := json.Marshal(arguments)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func jsonToolResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
