// Package retrain rebuilds the accident classifier from the base corpus
// plus operator feedback. At most one run is in flight at a time.
package retrain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/srihari1306/SafeVisionAI/internal/classifier"
	"github.com/srihari1306/SafeVisionAI/internal/models"
)

// ErrAlreadyRunning is returned by Trigger while a run is in flight.
var ErrAlreadyRunning = errors.New("a retraining run is already in progress")

const (
	// Classifier input shape
	DefaultTimesteps = 150
	DefaultFeatures  = 7
)

// Reloader hot-swaps the serving classifier after a successful publish.
type Reloader interface {
	Reload(path string) error
}

// Result is the outcome of one run, delivered on the channel Trigger
// hands back.
type Result struct {
	Version           int         `json:"version"`
	Filename          string      `json:"filename"`
	Eval              *Evaluation `json:"evaluation,omitempty"`
	FeedbackUsed      int         `json:"feedbackUsed"`
	FeedbackDiscarded int         `json:"feedbackDiscarded"`
	Err               error       `json:"-"`
}

// Config holds coordinator settings.
type Config struct {
	CorpusPath  string
	ArtifactDir string
	Timesteps   int
	Features    int
}

// Coordinator owns the retraining lifecycle: single-flight admission,
// version numbering, artifact publication and the serving swap.
type Coordinator struct {
	db       *gorm.DB
	cfg      Config
	trainer  Trainer
	reloader Reloader

	busy atomic.Bool
}

// New creates a coordinator. reloader may be nil when no classifier is
// serving in this process.
func New(db *gorm.DB, cfg Config, reloader Reloader) *Coordinator {
	if cfg.Timesteps <= 0 {
		cfg.Timesteps = DefaultTimesteps
	}
	if cfg.Features <= 0 {
		cfg.Features = DefaultFeatures
	}
	return &Coordinator{
		db:       db,
		cfg:      cfg,
		trainer:  NewLogisticTrainer(cfg.Timesteps, cfg.Features),
		reloader: reloader,
	}
}

// SetTrainer replaces the default trainer.
func (c *Coordinator) SetTrainer(t Trainer) {
	c.trainer = t
}

// Busy reports whether a run is in flight.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// CurrentVersion returns the highest published version, or 1 when only
// the baseline model exists.
func (c *Coordinator) CurrentVersion() int {
	var max int
	c.db.Model(&models.ModelArtifact{}).Select("COALESCE(MAX(version), 1)").Scan(&max)
	if max < 1 {
		max = 1
	}
	return max
}

// CurrentArtifact returns the latest published artifact, if any.
func (c *Coordinator) CurrentArtifact() (*models.ModelArtifact, error) {
	var artifact models.ModelArtifact
	err := c.db.Order("version DESC").First(&artifact).Error
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// Trigger starts a run in the background. Exactly one caller wins when
// several race; the losers get ErrAlreadyRunning and no queue forms.
// The returned channel delivers the single Result and is then closed.
func (c *Coordinator) Trigger(ctx context.Context) (<-chan Result, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}

	done := make(chan Result, 1)
	go func() {
		defer c.busy.Store(false)
		defer close(done)

		res := c.run(ctx)
		if res.Err != nil {
			log.Printf("❌ Retraining failed: %v", res.Err)
			runsTotal.WithLabelValues("failure").Inc()
		} else {
			log.Printf("✅ Retraining complete: version %d (%s), accuracy %.3f, AUC %.3f",
				res.Version, res.Filename, res.Eval.Accuracy, res.Eval.ROCAUC)
			runsTotal.WithLabelValues("success").Inc()
		}
		done <- res
	}()
	return done, nil
}

// run executes one training pass end to end.
func (c *Coordinator) run(ctx context.Context) Result {
	start := time.Now()
	log.Printf("⏳ Retraining started (corpus: %s)", c.cfg.CorpusPath)

	ds, err := LoadBaseCorpus(c.cfg.CorpusPath, c.cfg.Timesteps, c.cfg.Features)
	if err != nil {
		// No corpus, no run. The published version stays untouched.
		return Result{Err: err}
	}

	var feedback []models.FeedbackSample
	if err := c.db.Order("id ASC").Find(&feedback).Error; err != nil {
		return Result{Err: fmt.Errorf("failed to load feedback samples: %w", err)}
	}

	used, discarded := AppendFeedback(ds, feedback, c.cfg.Timesteps, c.cfg.Features)
	if discarded > 0 {
		log.Printf("⚠️ Discarded %d malformed feedback samples (%d usable)", discarded, used)
	}
	log.Printf("📊 Training on %d samples (%d base, %d feedback)", ds.Len(), ds.Len()-used, used)

	model, eval, err := c.trainer.Train(ctx, ds)
	if err != nil {
		return Result{Err: fmt.Errorf("training failed: %w", err)}
	}

	version := c.CurrentVersion() + 1
	model.Version = version
	filename := fmt.Sprintf("accident_model_v%d.bin", version)

	path, err := c.publish(model, filename)
	if err != nil {
		return Result{Err: err}
	}

	artifact := models.ModelArtifact{
		Version:   version,
		Filename:  filename,
		TrainedAt: time.Now(),
	}
	if err := c.db.Create(&artifact).Error; err != nil {
		return Result{Err: fmt.Errorf("failed to record artifact: %w", err)}
	}

	if c.reloader != nil {
		if err := c.reloader.Reload(path); err != nil {
			log.Printf("⚠️ Failed to hot-swap serving model: %v", err)
		} else {
			log.Printf("🔄 Serving model swapped to version %d", version)
		}
	}

	runDuration.Observe(time.Since(start).Seconds())
	return Result{
		Version:           version,
		Filename:          filename,
		Eval:              eval,
		FeedbackUsed:      used,
		FeedbackDiscarded: discarded,
	}
}

// publish writes the artifact atomically: full write to a temp file,
// then rename into place.
func (c *Coordinator) publish(model *classifier.Model, filename string) (string, error) {
	if err := os.MkdirAll(c.cfg.ArtifactDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(c.cfg.ArtifactDir, filename)
	tmp := path + ".tmp"
	if err := model.Save(tmp); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to publish artifact: %w", err)
	}
	return path, nil
}

// ArtifactPath resolves a published filename inside the artifact
// directory. Only names following the artifact convention resolve.
func (c *Coordinator) ArtifactPath(filename string) (string, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "accident_model_v%d.bin", &version); err != nil || version < 1 {
		return "", fmt.Errorf("unknown artifact name %q", filename)
	}
	path := filepath.Join(c.cfg.ArtifactDir, filepath.Base(filename))
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}
