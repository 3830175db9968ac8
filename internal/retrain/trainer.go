package retrain

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/srihari1306/SafeVisionAI/internal/classifier"
)

// Evaluation holds the holdout metrics of one training run.
type Evaluation struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	ROCAUC    float64 `json:"rocAuc"`

	// Confusion matrix at the 0.5 cut
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	TrueNegatives  int `json:"trueNegatives"`
	FalseNegatives int `json:"falseNegatives"`

	// Scoring cost over the holdout set
	MeanLatency time.Duration `json:"meanLatencyNs"`

	TrainSamples   int `json:"trainSamples"`
	HoldoutSamples int `json:"holdoutSamples"`
}

// Trainer builds a classifier from a labelled dataset.
type Trainer interface {
	Train(ctx context.Context, ds *Dataset) (*classifier.Model, *Evaluation, error)
}

// LogisticTrainer fits a logistic regression over flattened windows with
// plain gradient descent. Shuffling is seeded so two runs over the same
// data produce the same model.
type LogisticTrainer struct {
	Timesteps    int
	Features     int
	Epochs       int
	LearningRate float64
	HoldoutFrac  float64
	Seed         int64
}

// NewLogisticTrainer returns a trainer with the stock settings.
func NewLogisticTrainer(timesteps, features int) *LogisticTrainer {
	return &LogisticTrainer{
		Timesteps:    timesteps,
		Features:     features,
		Epochs:       40,
		LearningRate: 0.05,
		HoldoutFrac:  0.2,
		Seed:         42,
	}
}

// Train fits the model and evaluates it on the holdout split.
func (t *LogisticTrainer) Train(ctx context.Context, ds *Dataset) (*classifier.Model, *Evaluation, error) {
	dim := t.Timesteps * t.Features
	if ds.Len() < 2 {
		return nil, nil, fmt.Errorf("dataset too small: %d samples", ds.Len())
	}
	for i, row := range ds.X {
		if len(row) != dim {
			return nil, nil, fmt.Errorf("sample %d has %d values, want %d", i, len(row), dim)
		}
	}

	// Deterministic shuffle, then split.
	rng := rand.New(rand.NewSource(t.Seed))
	order := rng.Perm(ds.Len())

	holdout := int(float64(ds.Len()) * t.HoldoutFrac)
	if holdout < 1 {
		holdout = 1
	}
	if holdout >= ds.Len() {
		holdout = ds.Len() - 1
	}
	trainIdx := order[:ds.Len()-holdout]
	testIdx := order[ds.Len()-holdout:]

	weights := make([]float64, dim)
	bias := 0.0

	for epoch := 0; epoch < t.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		for _, i := range trainIdx {
			pred := sigmoid(dot(weights, ds.X[i]) + bias)
			grad := pred - float64(ds.Y[i])
			for j, v := range ds.X[i] {
				weights[j] -= t.LearningRate * grad * v
			}
			bias -= t.LearningRate * grad
		}
	}

	model := &classifier.Model{
		Timesteps: t.Timesteps,
		Features:  t.Features,
		Weights:   weights,
		Bias:      bias,
	}

	eval := evaluate(model, ds, testIdx)
	eval.TrainSamples = len(trainIdx)
	eval.HoldoutSamples = len(testIdx)
	return model, eval, nil
}

// evaluate scores the holdout rows and derives the metric set.
func evaluate(m *classifier.Model, ds *Dataset, idx []int) *Evaluation {
	eval := &Evaluation{}
	scores := make([]float64, len(idx))
	labels := make([]int, len(idx))

	var total time.Duration
	for k, i := range idx {
		start := time.Now()
		scores[k] = sigmoid(dot(m.Weights, ds.X[i]) + m.Bias)
		total += time.Since(start)
		labels[k] = ds.Y[i]

		predicted := scores[k] >= 0.5
		switch {
		case predicted && labels[k] == 1:
			eval.TruePositives++
		case predicted && labels[k] == 0:
			eval.FalsePositives++
		case !predicted && labels[k] == 0:
			eval.TrueNegatives++
		default:
			eval.FalseNegatives++
		}
	}
	if len(idx) > 0 {
		eval.MeanLatency = total / time.Duration(len(idx))
	}

	n := float64(len(idx))
	if n > 0 {
		eval.Accuracy = float64(eval.TruePositives+eval.TrueNegatives) / n
	}
	if eval.TruePositives+eval.FalsePositives > 0 {
		eval.Precision = float64(eval.TruePositives) / float64(eval.TruePositives+eval.FalsePositives)
	}
	if eval.TruePositives+eval.FalseNegatives > 0 {
		eval.Recall = float64(eval.TruePositives) / float64(eval.TruePositives+eval.FalseNegatives)
	}
	if eval.Precision+eval.Recall > 0 {
		eval.F1 = 2 * eval.Precision * eval.Recall / (eval.Precision + eval.Recall)
	}
	eval.ROCAUC = rocAUC(scores, labels)
	return eval
}

// rocAUC computes the area under the ROC curve by rank comparison.
func rocAUC(scores []float64, labels []int) float64 {
	type pair struct {
		score float64
		label int
	}
	pairs := make([]pair, len(scores))
	pos, neg := 0, 0
	for i := range scores {
		pairs[i] = pair{scores[i], labels[i]}
		if labels[i] == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	// Sum of positive ranks, ties get the average rank.
	rankSum := 0.0
	i := 0
	for i < len(pairs) {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if pairs[k].label == 1 {
				rankSum += avgRank
			}
		}
		i = j
	}
	return (rankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
