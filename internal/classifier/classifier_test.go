package classifier

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srihari1306/SafeVisionAI/internal/window"
)

func testModel(version int, bias float64) *Model {
	return &Model{
		Version:   version,
		Timesteps: 2,
		Features:  3,
		Weights:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
		Bias:      bias,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, testModel(3, 0.25).Save(path))

	loaded, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Version)
	assert.Equal(t, 0.25, loaded.Bias)
	assert.Len(t, loaded.Weights, 6)
}

func TestLoadRejectsShapeMismatch(t *testing.T) {
	m := testModel(1, 0)
	m.Weights = m.Weights[:4]
	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, m.Save(path))

	_, err := LoadModel(path)
	assert.Error(t, err)
}

func TestScoreIsMonotonicInSignal(t *testing.T) {
	m := testModel(1, 0)
	low := m.Score([]window.Sample{{0, 0, 0}, {0, 0, 0}})
	high := m.Score([]window.Sample{{5, 5, 5}, {5, 5, 5}})

	assert.InDelta(t, 0.5, low, 1e-9)
	assert.Greater(t, high, low)
	assert.LessOrEqual(t, high, 1.0)
}

func TestReloadSwapsModel(t *testing.T) {
	dir := t.TempDir()
	v1 := filepath.Join(dir, "v1.bin")
	v2 := filepath.Join(dir, "v2.bin")
	require.NoError(t, testModel(1, 0).Save(v1))
	require.NoError(t, testModel(2, 1.5).Save(v2))

	cls, err := LoadClassifier(v1)
	require.NoError(t, err)
	assert.Equal(t, 1, cls.Version())

	before, err := cls.Classify(context.Background(), []window.Sample{{1, 1, 1}, {1, 1, 1}})
	require.NoError(t, err)

	require.NoError(t, cls.Reload(v2))
	assert.Equal(t, 2, cls.Version())

	after, err := cls.Classify(context.Background(), []window.Sample{{1, 1, 1}, {1, 1, 1}})
	require.NoError(t, err)
	assert.Greater(t, after, before, "larger bias must raise the score")
}
