package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/mover"
	"github.com/tidyfolder/tidyfolder/pkg/organizer"
	"github.com/tidyfolder/tidyfolder/pkg/plan"
	"github.com/tidyfolder/tidyfolder/pkg/planner"
	"github.com/tidyfolder/tidyfolder/pkg/watcher"
)

type statusResponse struct {
	watcher.Status
	IndexedFiles int64 `json:"indexedFiles"`
}

type organizeRequest struct {
	Path        string `json:"path" binding:"required"`
	Instruction string `json:"instruction" binding:"required"`
	Apply       bool   `json:"apply"`
}

type organizeResponse struct {
	Folder       string          `json:"folder"`
	Applied      bool            `json:"applied"`
	Summary      plan.Summary    `json:"summary"`
	Ops          []models.MoveOp `json:"ops"`
	Excluded     int             `json:"excluded,omitempty"`
	Moved        *moveResultView `json:"moved,omitempty"`
	EmptyFolders []string        `json:"emptyFolders,omitempty"`
}

type moveResultView struct {
	SuccessCount int                  `json:"successCount"`
	TotalCount   int                  `json:"totalCount"`
	Errors       []string             `json:"errors,omitempty"`
	Renamed      []models.RenamedFile `json:"renamed,omitempty"`
	LogPath      string               `json:"logPath,omitempty"`
}

type undoRequest struct {
	LogPath string `json:"logPath"`
}

type undoResponse struct {
	LogPath        string   `json:"logPath"`
	Restored       int      `json:"restored"`
	Total          int      `json:"total"`
	NotUndoable    []string `json:"notUndoable,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	RemovedFolders int      `json:"removedFolders"`
}

type watcherStartRequest struct {
	Mode watcher.Mode `json:"mode"`
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := statusResponse{Status: s.watchStatus()}
	if count, err := s.store.GetFileCount(); err == nil {
		resp.IndexedFiles = count
	} else {
		log.WithError(err).Warn("Failed to count indexed files")
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleOrganize(c *gin.Context) {
	var req organizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path and instruction are required"})
		return
	}

	if !req.Apply {
		pv, err := s.org.Preview(c.Request.Context(), req.Path, req.Instruction)
		if err != nil {
			s.organizeError(c, err)
			return
		}
		c.JSON(http.StatusOK, previewResponse(pv, false))
		return
	}

	res, err := s.org.Organize(c.Request.Context(), req.Path, req.Instruction)
	if err != nil {
		s.organizeError(c, err)
		return
	}

	resp := previewResponse(res.Preview, true)
	resp.Moved = moveView(res.Moved)
	resp.EmptyFolders = res.EmptyFolders
	c.JSON(http.StatusOK, resp)
}

func previewResponse(pv *organizer.Preview, applied bool) organizeResponse {
	return organizeResponse{
		Folder:   pv.Folder,
		Applied:  applied,
		Summary:  pv.Summary,
		Ops:      pv.Ops,
		Excluded: pv.Excluded,
	}
}

func moveView(res *mover.Result) *moveResultView {
	if res == nil {
		return nil
	}
	return &moveResultView{
		SuccessCount: res.SuccessCount,
		TotalCount:   res.TotalCount,
		Errors:       res.Errors,
		Renamed:      res.Renamed,
		LogPath:      res.LogPath,
	}
}

// organizeError maps pipeline failures onto HTTP statuses: a rejected
// plan is the client's to inspect (422), a planner failure is an upstream
// problem (502), everything else is 500.
func (s *Server) organizeError(c *gin.Context, err error) {
	var vErr *organizer.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      vErr.Error(),
			"violations": vErr.Violations,
		})
		return
	}
	var pErr *planner.Error
	if errors.As(err, &pErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": pErr.Error()})
		return
	}
	if errors.Is(err, organizer.ErrNoFiles) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) handleUndo(c *gin.Context) {
	var req undoRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	res, logPath, err := s.org.Undo(c.Request.Context(), req.LogPath)
	if err != nil {
		status := http.StatusInternalServerError
		if res == nil && logPath == "" {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, undoResponse{
		LogPath:        logPath,
		Restored:       res.Restored,
		Total:          res.Total,
		NotUndoable:    res.NotUndoable,
		Errors:         res.Errors,
		RemovedFolders: res.RemovedFolders,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	entries, err := s.org.History()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	removed, err := s.org.ClearHistory()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) handleWatcherStart(c *gin.Context) {
	var req watcherStartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	switch req.Mode {
	case "", watcher.ModeWatchOnly, watcher.ModeOrganizeExisting, watcher.ModeReorganizeAll:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown mode: " + string(req.Mode)})
		return
	}

	if err := s.startWatch(req.Mode); err != nil {
		if errors.Is(err, watcher.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "watcher already running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.watchStatus())
}

func (s *Server) handleWatcherStop(c *gin.Context) {
	s.stopWatch()
	c.JSON(http.StatusOK, s.watchStatus())
}
