package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/srihari1306/SafeVisionAI/internal/retrain"
)

var coordinator *retrain.Coordinator

// SetCoordinator wires the retraining coordinator into the handlers
func SetCoordinator(coord *retrain.Coordinator) {
	coordinator = coord
}

// TriggerRetrain starts a retraining run in the background
// POST /api/retrain
func TriggerRetrain(c *gin.Context) {
	if coordinator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "retraining not configured"})
		return
	}

	_, err := coordinator.Trigger(context.Background())
	if err != nil {
		if errors.Is(err, retrain.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":         "retraining started",
		"current_version": coordinator.CurrentVersion(),
	})
}

// GetModelVersion reports the currently published classifier build
// GET /api/model/version
func GetModelVersion(c *gin.Context) {
	if coordinator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "retraining not configured"})
		return
	}

	resp := gin.H{
		"version": coordinator.CurrentVersion(),
		"busy":    coordinator.Busy(),
	}
	if artifact, err := coordinator.CurrentArtifact(); err == nil {
		resp["filename"] = artifact.Filename
		resp["trained_at"] = artifact.TrainedAt
	}
	c.JSON(http.StatusOK, resp)
}

// DownloadModel serves a published artifact to edge nodes. Names that
// do not follow the artifact convention are rejected.
// GET /api/model/download/:filename
func DownloadModel(c *gin.Context) {
	if coordinator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "retraining not configured"})
		return
	}

	path, err := coordinator.ArtifactPath(c.Param("filename"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	c.File(path)
}
