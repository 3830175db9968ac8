// Package authority is the edge-side HTTP client for the central incident authority
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/srihari1306/SafeVisionAI/internal/detection"
	"github.com/srihari1306/SafeVisionAI/internal/forwardq"
)

// Client talks to the central server. All calls carry a bounded timeout;
// a failed call is reported to the caller and never retried here.
type Client struct {
	baseURL    string
	nodeID     string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a client for the given central base URL.
func NewClient(baseURL, nodeID, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		nodeID:    nodeID,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// reportResponse mirrors the central report endpoint body.
type reportResponse struct {
	IncidentID int64  `json:"incident_id"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// Report delivers a CCTV detection event as a multipart report with the
// snapshot attached. Returns the created incident id.
func (c *Client) Report(ctx context.Context, ev *detection.Event, evidenceLocator string) (int64, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fields := map[string]string{
		"camera_id":   ev.SourceID,
		"lat":         strconv.FormatFloat(ev.Lat, 'f', -1, 64),
		"lng":         strconv.FormatFloat(ev.Lng, 'f', -1, 64),
		"occurred_at": ev.Timestamp.UTC().Format(time.RFC3339),
		"confidence":  strconv.FormatFloat(ev.Confidence, 'f', 4, 64),
		"severity":    severityFor(ev.Confidence),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return 0, fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}

	if len(ev.Evidence) > 0 {
		name := evidenceLocator
		if name == "" {
			name = "snapshot." + ev.EvidenceExt
		}
		part, err := w.CreateFormFile("snapshot", name)
		if err != nil {
			return 0, fmt.Errorf("failed to create snapshot part: %w", err)
		}
		if _, err := part.Write(ev.Evidence); err != nil {
			return 0, fmt.Errorf("failed to write snapshot: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/accidents/report", &body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach incident authority: %w", err)
	}
	defer resp.Body.Close()

	var parsed reportResponse
	data, _ := io.ReadAll(resp.Body)
	json.Unmarshal(data, &parsed)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		if parsed.Error != "" {
			return 0, fmt.Errorf("report rejected (%d): %s", resp.StatusCode, parsed.Error)
		}
		return 0, fmt.Errorf("report rejected with status %d", resp.StatusCode)
	}
	return parsed.IncidentID, nil
}

// Send re-attempts delivery of a queued forward entry.
func (c *Client) Send(ctx context.Context, entry *forwardq.Entry) error {
	ev := entry.Event
	_, err := c.Report(ctx, &ev, entry.EvidenceLocator)
	return err
}

// severityFor maps the classifier confidence to a severity estimate.
func severityFor(confidence float64) string {
	if confidence > 0.85 {
		return "high"
	}
	return "medium"
}

// Heartbeat is the periodic edge status report.
type Heartbeat struct {
	NodeID    string                 `json:"nodeId"`
	Status    string                 `json:"status"`
	Resources map[string]interface{} `json:"resources"`
	Runners   []interface{}          `json:"runners,omitempty"`
	Queue     forwardq.Stats         `json:"queueStats"`
}

// SendHeartbeat posts node status with current resource usage.
func (c *Client) SendHeartbeat(ctx context.Context, hb Heartbeat) error {
	hb.NodeID = c.nodeID
	hb.Resources = collectResources()

	data, err := json.Marshal(hb)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/edge/heartbeat", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("heartbeat failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat rejected with status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.nodeID != "" {
		req.Header.Set("X-Node-ID", c.nodeID)
	}
	if c.authToken != "" {
		req.Header.Set("X-Auth-Token", c.authToken)
	}
}

// collectResources gathers CPU and memory usage for the heartbeat.
func collectResources() map[string]interface{} {
	res := make(map[string]interface{})

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		res["cpuPercent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		res["memPercent"] = vm.UsedPercent
		res["memTotal"] = vm.Total
	}
	return res
}
