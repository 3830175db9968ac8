package retrain

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/srihari1306/SafeVisionAI/internal/models"
)

// Dataset is a labelled training set. Each row is a window flattened
// to timesteps*features values; labels are 0 (normal) or 1 (accident).
type Dataset struct {
	X [][]float64
	Y []int
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Y) }

// append adds one normalized sample.
func (d *Dataset) append(row []float64, label int) {
	d.X = append(d.X, row)
	d.Y = append(d.Y, label)
}

// corpusSample is one entry of the base corpus file.
type corpusSample struct {
	Label  int         `json:"label"`
	Window [][]float64 `json:"window"`
}

// LoadBaseCorpus reads the labelled base corpus. A missing or unreadable
// corpus is fatal to a training run; feedback alone is never enough to
// anchor the decision boundary.
func LoadBaseCorpus(path string, timesteps, features int) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read base corpus: %w", err)
	}

	var samples []corpusSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("failed to parse base corpus: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("base corpus %s is empty", path)
	}

	ds := &Dataset{}
	for i, s := range samples {
		row, err := normalizeWindow(s.Window, timesteps, features)
		if err != nil {
			return nil, fmt.Errorf("base corpus sample %d: %w", i, err)
		}
		ds.append(row, clampLabel(s.Label))
	}
	return ds, nil
}

// AppendFeedback folds operator-confirmed false positives into the
// dataset as negative examples. Malformed samples are skipped, never
// fatal: one bad upload must not block a run. Returns used and
// discarded counts.
func AppendFeedback(ds *Dataset, samples []models.FeedbackSample, timesteps, features int) (used, discarded int) {
	for _, s := range samples {
		row, err := feedbackRow(s, timesteps, features)
		if err != nil {
			discarded++
			continue
		}
		ds.append(row, 0)
		used++
	}
	return used, discarded
}

// feedbackRow extracts and normalizes the sensor window from one
// feedback sample.
func feedbackRow(s models.FeedbackSample, timesteps, features int) ([]float64, error) {
	obj, ok := s.SensorData.Data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("feedback %d sensor data is not an object", s.ID)
	}
	raw, ok := obj["sensor_window"]
	if !ok {
		return nil, fmt.Errorf("feedback %d has no sensor_window", s.ID)
	}

	rows, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("feedback %d sensor_window is not a list", s.ID)
	}

	win := make([][]float64, 0, len(rows))
	for _, r := range rows {
		cols, ok := r.([]interface{})
		if !ok {
			return nil, fmt.Errorf("feedback %d has a non-list row", s.ID)
		}
		vals := make([]float64, 0, len(cols))
		for _, c := range cols {
			f, ok := c.(float64)
			if !ok {
				return nil, fmt.Errorf("feedback %d has a non-numeric value", s.ID)
			}
			vals = append(vals, f)
		}
		win = append(win, vals)
	}
	return normalizeWindow(win, timesteps, features)
}

// normalizeWindow pads or truncates a window to exactly timesteps rows
// and flattens it. Every row must carry exactly features values.
func normalizeWindow(win [][]float64, timesteps, features int) ([]float64, error) {
	if len(win) == 0 {
		return nil, fmt.Errorf("empty window")
	}
	for i, row := range win {
		if len(row) != features {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), features)
		}
	}

	if len(win) > timesteps {
		win = win[len(win)-timesteps:]
	}

	flat := make([]float64, 0, timesteps*features)
	// Zero-pad at the front so the most recent readings keep their slots.
	for i := len(win); i < timesteps; i++ {
		flat = append(flat, make([]float64, features)...)
	}
	for _, row := range win {
		flat = append(flat, row...)
	}
	return flat, nil
}

func clampLabel(v int) int {
	if v > 0 {
		return 1
	}
	return 0
}
