package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/srihari1306/SafeVisionAI/internal/database"
	"github.com/srihari1306/SafeVisionAI/internal/models"
)

// ListIncidents returns incidents newest-first with optional filters
// GET /api/incidents?status=new&source=CCTV&limit=50
func ListIncidents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 200 {
		limit = 200
	}

	query := database.DB.Model(&models.Incident{}).
		Preload("Media").
		Order("reported_at DESC").
		Limit(limit)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}

	var incidents []models.Incident
	if err := query.Find(&incidents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list incidents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

// GetIncident returns one incident with its full audit trail
// GET /api/incidents/:id
func GetIncident(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
		return
	}

	var incident models.Incident
	err = database.DB.
		Preload("Media").
		Preload("ActionLogs").
		Preload("MobileReport").
		First(&incident, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load incident"})
		return
	}

	c.JSON(http.StatusOK, incident)
}

// IncidentActionRequest is the body of a state transition
type IncidentActionRequest struct {
	Action  models.ActionType `json:"action" binding:"required"`
	ActorID string            `json:"actor_id" binding:"required"`
	Note    string            `json:"note"`
}

// ApplyIncidentAction advances an incident through its lifecycle and
// appends an audit row in the same transaction.
// POST /api/incidents/:id/action
func ApplyIncidentAction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
		return
	}

	var req IncidentActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var incident models.Incident
	var actionLog models.ActionLog

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&incident, id).Error; err != nil {
			return err
		}

		next, err := models.ApplyAction(incident.Status, req.Action)
		if err != nil {
			return err
		}

		incident.Status = next
		if err := tx.Model(&incident).Update("status", next).Error; err != nil {
			return err
		}

		actionLog = models.ActionLog{
			IncidentID: incident.ID,
			ActorID:    req.ActorID,
			ActionType: req.Action,
			Note:       req.Note,
		}
		return tx.Create(&actionLog).Error
	})

	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	case errors.Is(err, models.ErrTerminalStatus):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": incident.Status})
		return
	case errors.Is(err, models.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	default:
		log.Printf("❌ [INCIDENT] Action %s on %d failed: %v", req.Action, id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply action"})
		return
	}

	publishIncidentUpdate(&incident, &actionLog)

	log.Printf("✅ [INCIDENT] %d: %s by %s -> %s", incident.ID, req.Action, req.ActorID, incident.Status)

	c.JSON(http.StatusOK, gin.H{
		"incident_id": incident.ID,
		"status":      incident.Status,
		"action_log":  actionLog,
	})
}

// GetMedia streams a stored evidence file
// GET /api/media/:id
func GetMedia(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media id"})
		return
	}

	var media models.Media
	if err := database.DB.First(&media, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}

	c.File(media.FilePath)
}
