package api

import (
	"errors"
	"io"
	"net/http"

	"mediagen/config"
	"mediagen/provider"
	"mediagen/task"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	manager *task.Manager
	cfg     *config.Config
}

func NewHandler(m *task.Manager, cfg *config.Config) *Handler {
	return &Handler{
		manager: m,
		cfg:     cfg,
	}
}

type GenerateRequest struct {
	Provider        string `json:"provider" binding:"required"`
	CustomMode      bool   `json:"customMode"`
	Instrumental    bool   `json:"instrumental"`
	Title           string `json:"title"`
	Style           string `json:"style"`
	Lyrics          string `json:"lyrics"`
	SongDescription string `json:"songDescription"`
	Prompt          string `json:"prompt"`
	NegativeTags    string `json:"negativeTags"`
	ModelVersion    string `json:"modelVersion"`
}

// handleCreateGeneration starts an asynchronous generation task.
func (h *Handler) handleCreateGeneration(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	description := req.SongDescription
	if description == "" {
		description = req.Prompt
	}

	t, err := h.manager.Generate(provider.Kind(req.Provider), provider.Request{
		CustomMode:   req.CustomMode,
		Instrumental: req.Instrumental,
		Title:        req.Title,
		Style:        req.Style,
		Lyrics:       req.Lyrics,
		Description:  description,
		NegativeTags: req.NegativeTags,
		ModelVersion: req.ModelVersion,
	})
	if err != nil {
		var vErr *task.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message, "taskId": t.ID})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"taskId": t.ID})
}

// handleListGenerations lists every task in the current session.
func (h *Handler) handleListGenerations(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Registry().List())
}

// handleGetGeneration retrieves the state of a single task.
func (h *Handler) handleGetGeneration(c *gin.Context) {
	t, found := h.manager.Registry().Get(c.Param("taskId"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// handleCancelGeneration cancels a task and removes it from the registry.
func (h *Handler) handleCancelGeneration(c *gin.Context) {
	if !h.manager.Cancel(c.Param("taskId")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task cancelled"})
}

// handleStreamEvents streams registry transitions as server-sent events so a
// rendering layer can follow task lifecycles without polling this API.
func (h *Handler) handleStreamEvents(c *gin.Context) {
	events, cancel := h.manager.Registry().Subscribe()
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("task", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
