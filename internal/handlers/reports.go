package handlers

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/srihari1306/SafeVisionAI/internal/database"
	"github.com/srihari1306/SafeVisionAI/internal/models"
)

// ReportAccident handles CCTV accident reports from edge nodes
// POST /api/accidents/report (multipart form)
func ReportAccident(c *gin.Context) {
	startTime := time.Now()
	nodeID := c.GetHeader("X-Node-ID")

	cameraID := c.PostForm("camera_id")
	if cameraID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "camera_id is required"})
		return
	}

	lat, _ := strconv.ParseFloat(c.PostForm("lat"), 64)
	lng, _ := strconv.ParseFloat(c.PostForm("lng"), 64)
	confidence, err := strconv.ParseFloat(c.PostForm("confidence"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confidence is required"})
		return
	}

	occurredAt := time.Now()
	if raw := c.PostForm("occurred_at"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			occurredAt = ts
		} else {
			log.Printf("⚠️ [REPORT] Unparseable occurred_at %q from %s, using now", raw, nodeID)
		}
	}

	severity := models.Severity(c.PostForm("severity"))
	switch severity {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh:
	default:
		severity = models.SeverityMedium
	}

	incident := models.Incident{
		Source:     models.SourceCCTV,
		CameraID:   &cameraID,
		Lat:        lat,
		Lng:        lng,
		OccurredAt: occurredAt,
		Confidence: &confidence,
		Severity:   severity,
		Status:     models.StatusNew,
	}

	// Snapshot is optional; a report without evidence is still an incident
	var mediaPath string
	if file, err := c.FormFile("snapshot"); err == nil {
		mediaPath, err = saveMediaFile(c, file)
		if err != nil {
			log.Printf("⚠️ [REPORT] Failed to store snapshot from %s: %v", cameraID, err)
			mediaPath = ""
		}
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&incident).Error; err != nil {
			return err
		}
		if mediaPath != "" {
			media := models.Media{
				IncidentID: incident.ID,
				MediaType:  models.MediaSnapshot,
				FilePath:   mediaPath,
			}
			if err := tx.Create(&media).Error; err != nil {
				return err
			}
			incident.Media = append(incident.Media, media)
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ [REPORT] Failed to persist CCTV incident from %s: %v", cameraID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store incident"})
		return
	}

	publishNewIncident(&incident)

	log.Printf("🚨 [REPORT] CCTV incident %d created - Camera: %s, Confidence: %.3f, Duration: %v",
		incident.ID, cameraID, confidence, time.Since(startTime))

	c.JSON(http.StatusCreated, gin.H{
		"incident_id": incident.ID,
		"message":     "incident created",
	})
}

// MobileReportRequest is the body of a mobile crash report
type MobileReportRequest struct {
	UserID    *string  `json:"user_id"`
	AccPeak   *float64 `json:"acc_peak"`
	GyroPeak  *float64 `json:"gyro_peak"`
	Speed     *float64 `json:"speed"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Timestamp string   `json:"timestamp"`
	RawJSON   *string  `json:"raw_json"`
}

// ReportMobile handles crash reports from the companion app. Every
// accepted report opens a high-severity incident of its own.
// POST /api/mobile/report
func ReportMobile(c *gin.Context) {
	var req MobileReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Lat == nil || req.Lng == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}

	occurredAt := time.Now()
	if req.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			occurredAt = ts
		}
	}

	report := models.MobileReport{
		UserID:    req.UserID,
		AccPeak:   req.AccPeak,
		GyroPeak:  req.GyroPeak,
		Speed:     req.Speed,
		Lat:       *req.Lat,
		Lng:       *req.Lng,
		Timestamp: occurredAt,
		RawJSON:   req.RawJSON,
	}

	var incident models.Incident
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&report).Error; err != nil {
			return err
		}
		incident = models.Incident{
			Source:         models.SourceMobile,
			MobileReportID: &report.ID,
			Lat:            report.Lat,
			Lng:            report.Lng,
			OccurredAt:     occurredAt,
			Severity:       models.SeverityHigh,
			Status:         models.StatusNew,
		}
		return tx.Create(&incident).Error
	})
	if err != nil {
		log.Printf("❌ [REPORT] Failed to persist mobile incident: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store incident"})
		return
	}

	incident.MobileReport = &report
	publishNewIncident(&incident)

	log.Printf("🚨 [REPORT] Mobile incident %d created - Report: %d", incident.ID, report.ID)

	c.JSON(http.StatusCreated, gin.H{
		"incident_id": incident.ID,
		"report_id":   report.ID,
		"message":     "incident created",
	})
}

// getMediaDir returns the media storage directory
func getMediaDir() string {
	dir := os.Getenv("MEDIA_DIR")
	if dir == "" {
		dir = filepath.Join(".", "data", "media")
	}
	return dir
}

// saveMediaFile stores an uploaded file under the media directory with
// a collision-free name.
func saveMediaFile(c *gin.Context, file *multipart.FileHeader) (string, error) {
	dir := getMediaDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	name := fmt.Sprintf("accident_%s_%s%s",
		time.Now().Format("20060102_150405"), uuid.NewString()[:8], ext)
	path := filepath.Join(dir, name)

	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", err
	}
	return path, nil
}
