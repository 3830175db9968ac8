package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/srihari1306/SafeVisionAI/internal/database"
	"github.com/srihari1306/SafeVisionAI/internal/models"
)

// Windows shorter than this carry too little signal to learn from
const minSensorWindow = 10

// FeedbackRequest is an operator-confirmed false positive
type FeedbackRequest struct {
	Timestamp    string      `json:"timestamp"`
	DeviceModel  string      `json:"device_model"`
	SensorWindow [][]float64 `json:"sensor_window"`
}

// SubmitFeedback stores a false-positive sensor window for the next
// retraining run.
// POST /api/feedback
func SubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.SensorWindow) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sensor_window is required"})
		return
	}
	if len(req.SensorWindow) < minSensorWindow {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "sensor_window too short",
			"min":   minSensorWindow,
		})
		return
	}

	sample := models.FeedbackSample{
		Timestamp:   req.Timestamp,
		DeviceModel: req.DeviceModel,
		SensorData: models.NewJSONB(map[string]interface{}{
			"sensor_window": req.SensorWindow,
		}),
	}

	if err := database.DB.Create(&sample).Error; err != nil {
		log.Printf("❌ [FEEDBACK] Failed to store sample: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store feedback"})
		return
	}

	log.Printf("📥 [FEEDBACK] Sample %d stored (%d rows, device: %s)",
		sample.ID, len(req.SensorWindow), req.DeviceModel)

	c.JSON(http.StatusCreated, gin.H{
		"feedback_id": sample.ID,
		"message":     "feedback stored",
	})
}
