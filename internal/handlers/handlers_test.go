package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srihari1306/SafeVisionAI/internal/database"
	"github.com/srihari1306/SafeVisionAI/internal/models"
	"github.com/srihari1306/SafeVisionAI/internal/retrain"
)

var (
	dbOnce sync.Once
	dbErr  error
)

func setupTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("MEDIA_DIR", t.TempDir())

	dbOnce.Do(func() { dbErr = database.ConnectTest() })
	require.NoError(t, dbErr)

	for _, table := range []string{
		"action_logs", "media", "incidents", "mobile_reports",
		"feedback_samples", "model_artifacts",
	} {
		database.DB.Exec("DELETE FROM " + table)
	}

	r := gin.New()
	RegisterRoutes(r)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedIncident(t *testing.T, status models.IncidentStatus) models.Incident {
	t.Helper()
	camera := "CAM-1"
	conf := 0.97
	incident := models.Incident{
		Source:     models.SourceCCTV,
		CameraID:   &camera,
		Lat:        12.97,
		Lng:        77.59,
		OccurredAt: time.Now(),
		Confidence: &conf,
		Severity:   models.SeverityHigh,
		Status:     status,
	}
	require.NoError(t, database.DB.Create(&incident).Error)
	return incident
}

func TestReportAccidentCreatesIncidentWithMedia(t *testing.T) {
	r := setupTest(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.WriteField("camera_id", "CAM-1")
	w.WriteField("lat", "12.9716")
	w.WriteField("lng", "77.5946")
	w.WriteField("confidence", "0.9500")
	w.WriteField("severity", "high")
	w.WriteField("occurred_at", time.Now().UTC().Format(time.RFC3339))
	part, err := w.CreateFormFile("snapshot", "snapshot.jpg")
	require.NoError(t, err)
	part.Write([]byte("jpeg-bytes"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/accidents/report", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var incident models.Incident
	require.NoError(t, database.DB.Preload("Media").Order("id DESC").First(&incident).Error)
	assert.Equal(t, models.SourceCCTV, incident.Source)
	assert.Equal(t, models.StatusNew, incident.Status)
	assert.Equal(t, models.SeverityHigh, incident.Severity)
	require.NotNil(t, incident.CameraID)
	assert.Equal(t, "CAM-1", *incident.CameraID)
	require.NotNil(t, incident.Confidence)
	assert.InDelta(t, 0.95, *incident.Confidence, 1e-9)
	require.Len(t, incident.Media, 1)
	assert.Equal(t, models.MediaSnapshot, incident.Media[0].MediaType)
}

func TestReportAccidentRequiresCamera(t *testing.T) {
	r := setupTest(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.WriteField("confidence", "0.95")
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/accidents/report", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMobileReportOpensHighSeverityIncident(t *testing.T) {
	r := setupTest(t)

	rec := doJSON(r, http.MethodPost, "/api/mobile/report", gin.H{
		"user_id":   "user-7",
		"acc_peak":  24.5,
		"gyro_peak": 9.1,
		"speed":     62.0,
		"lat":       12.9716,
		"lng":       77.5946,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var incident models.Incident
	require.NoError(t, database.DB.Preload("MobileReport").Order("id DESC").First(&incident).Error)
	assert.Equal(t, models.SourceMobile, incident.Source)
	assert.Equal(t, models.SeverityHigh, incident.Severity)
	require.NotNil(t, incident.MobileReport)
	require.NotNil(t, incident.MobileReport.AccPeak)
	assert.InDelta(t, 24.5, *incident.MobileReport.AccPeak, 1e-9)
}

func TestMobileReportRequiresCoordinates(t *testing.T) {
	r := setupTest(t)

	rec := doJSON(r, http.MethodPost, "/api/mobile/report", gin.H{"acc_peak": 24.5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncidentLifecycle(t *testing.T) {
	r := setupTest(t)
	incident := seedIncident(t, models.StatusNew)

	// new -> acknowledged
	rec := doJSON(r, http.MethodPost, fmt.Sprintf("/api/incidents/%d/action", incident.ID), gin.H{
		"action":   "acknowledge",
		"actor_id": "op1",
		"note":     "on it",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reloaded models.Incident
	require.NoError(t, database.DB.Preload("ActionLogs").First(&reloaded, incident.ID).Error)
	assert.Equal(t, models.StatusAcknowledged, reloaded.Status)
	require.Len(t, reloaded.ActionLogs, 1)
	assert.Equal(t, "op1", reloaded.ActionLogs[0].ActorID)
	assert.Equal(t, models.ActionAcknowledge, reloaded.ActionLogs[0].ActionType)

	// acknowledged -> dispatched -> resolved
	rec = doJSON(r, http.MethodPost, fmt.Sprintf("/api/incidents/%d/action", incident.ID), gin.H{
		"action": "dispatch", "actor_id": "op1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(r, http.MethodPost, fmt.Sprintf("/api/incidents/%d/action", incident.ID), gin.H{
		"action": "resolve", "actor_id": "op2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Terminal incidents reject further actions and log nothing
	rec = doJSON(r, http.MethodPost, fmt.Sprintf("/api/incidents/%d/action", incident.ID), gin.H{
		"action": "acknowledge", "actor_id": "op3",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var logCount int64
	database.DB.Model(&models.ActionLog{}).Where("incident_id = ?", incident.ID).Count(&logCount)
	assert.EqualValues(t, 3, logCount)
}

func TestIncidentActionValidation(t *testing.T) {
	r := setupTest(t)
	incident := seedIncident(t, models.StatusNew)

	rec := doJSON(r, http.MethodPost, fmt.Sprintf("/api/incidents/%d/action", incident.ID), gin.H{
		"action": "escalate", "actor_id": "op1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(r, http.MethodPost, "/api/incidents/999999/action", gin.H{
		"action": "acknowledge", "actor_id": "op1",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListIncidentsFilters(t *testing.T) {
	r := setupTest(t)
	seedIncident(t, models.StatusNew)
	seedIncident(t, models.StatusAcknowledged)
	seedIncident(t, models.StatusNew)

	rec := doJSON(r, http.MethodGet, "/api/incidents?status=new", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Incidents []models.Incident `json:"incidents"`
		Count     int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	for _, inc := range resp.Incidents {
		assert.Equal(t, models.StatusNew, inc.Status)
	}

	rec = doJSON(r, http.MethodGet, "/api/incidents?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestFeedbackValidation(t *testing.T) {
	r := setupTest(t)

	short := make([][]float64, 5)
	for i := range short {
		short[i] = []float64{1, 2, 3, 4, 5, 6, 7}
	}
	rec := doJSON(r, http.MethodPost, "/api/feedback", gin.H{
		"device_model":  "Pixel 8",
		"sensor_window": short,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	database.DB.Model(&models.FeedbackSample{}).Count(&count)
	assert.Zero(t, count, "rejected feedback must not be persisted")

	ok := make([][]float64, 10)
	for i := range ok {
		ok[i] = []float64{1, 2, 3, 4, 5, 6, 7}
	}
	rec = doJSON(r, http.MethodPost, "/api/feedback", gin.H{
		"device_model":  "Pixel 8",
		"sensor_window": ok,
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	database.DB.Model(&models.FeedbackSample{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestEdgeHeartbeatRegistry(t *testing.T) {
	r := setupTest(t)

	rec := doJSON(r, http.MethodPost, "/api/edge/heartbeat", gin.H{
		"nodeId": "edge-01",
		"status": "active",
		"resources": gin.H{
			"cpuPercent": 12.5,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/edge/nodes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Nodes []EdgeNodeStatus `json:"nodes"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.GreaterOrEqual(t, resp.Count, 1)

	found := false
	for _, n := range resp.Nodes {
		if n.NodeID == "edge-01" {
			found = true
			assert.Equal(t, "active", n.Status)
		}
	}
	assert.True(t, found)
}

func TestModelEndpoints(t *testing.T) {
	r := setupTest(t)

	coord := retrain.New(database.DB, retrain.Config{
		CorpusPath:  filepath.Join(t.TempDir(), "corpus.json"),
		ArtifactDir: t.TempDir(),
	}, nil)
	SetCoordinator(coord)
	t.Cleanup(func() { SetCoordinator(nil) })

	rec := doJSON(r, http.MethodGet, "/api/model/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Version int  `json:"version"`
		Busy    bool `json:"busy"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Version, "baseline model is version 1")
	assert.False(t, resp.Busy)

	// Names outside the artifact convention never resolve
	for _, name := range []string{"model.bin", "accident_model_v999.bin", "passwd"} {
		rec := doJSON(r, http.MethodGet, "/api/model/download/"+name, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
	}
}

func TestModelEndpointsWithoutCoordinator(t *testing.T) {
	r := setupTest(t)

	SetCoordinator(nil)
	rec := doJSON(r, http.MethodGet, "/api/model/download/accident_model_v2.bin", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(r, http.MethodPost, "/api/retrain", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
