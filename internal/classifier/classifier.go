// Package classifier defines the model capability used by the inference runner
package classifier

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/srihari1306/SafeVisionAI/internal/window"
)

// Classifier scores a full signal window. Implementations must be
// stateless per call and safe for concurrent use.
type Classifier interface {
	// Classify returns an accident confidence in [0,1].
	Classify(ctx context.Context, samples []window.Sample) (float64, error)
}

// Model is a serialized classifier artifact: a linear scoring head over
// the flattened window, published by the retraining pipeline.
type Model struct {
	Version   int
	Timesteps int
	Features  int
	Weights   []float64
	Bias      float64
}

// Save writes the model to path with gob encoding.
func (m *Model) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// LoadModel reads a model artifact from disk.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()

	var m Model
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if len(m.Weights) != m.Timesteps*m.Features {
		return nil, fmt.Errorf("model weight count %d does not match %dx%d window",
			len(m.Weights), m.Timesteps, m.Features)
	}
	return &m, nil
}

// Score flattens the window and applies the sigmoid-activated linear head.
func (m *Model) Score(samples []window.Sample) float64 {
	z := m.Bias
	i := 0
	for _, s := range samples {
		for _, v := range s {
			if i >= len(m.Weights) {
				break
			}
			z += m.Weights[i] * float64(v)
			i++
		}
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

// ModelClassifier is the default Classifier backed by a published model
// artifact. Reload swaps the artifact between calls without stopping
// the runners that hold a reference.
type ModelClassifier struct {
	mu    sync.RWMutex
	model *Model
}

// NewModelClassifier wraps an already-loaded model.
func NewModelClassifier(m *Model) *ModelClassifier {
	return &ModelClassifier{model: m}
}

// LoadClassifier loads an artifact file into a ready classifier.
func LoadClassifier(path string) (*ModelClassifier, error) {
	m, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	return &ModelClassifier{model: m}, nil
}

// Reload replaces the active model with the artifact at path.
func (c *ModelClassifier) Reload(path string) error {
	m, err := LoadModel(path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.model = m
	c.mu.Unlock()
	return nil
}

// Version returns the version of the loaded artifact.
func (c *ModelClassifier) Version() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model.Version
}

// Classify scores the window with the currently loaded model.
func (c *ModelClassifier) Classify(ctx context.Context, samples []window.Sample) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	m := c.model
	c.mu.RUnlock()

	if m == nil {
		return 0, fmt.Errorf("no model loaded")
	}
	return m.Score(samples), nil
}
