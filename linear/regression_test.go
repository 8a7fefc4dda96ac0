package linear

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/salescope/core/model"
	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/pkg/errors"
)

func mustFrame(t testing.TB, names []string, rows [][]float64) *dataset.Frame {
	t.Helper()
	f, err := dataset.FrameFromRows(names, rows)
	require.NoError(t, err)
	return f
}

func TestRegressionExactFit(t *testing.T) {
	// y = 1 + 2a + 3b
	rows := [][]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 3}, {4, 1}}
	y := make([]float64, len(rows))
	for i, r := range rows {
		y[i] = 1 + 2*r[0] + 3*r[1]
	}
	X := mustFrame(t, []string{"a", "b"}, rows)

	lr := NewRegression()
	require.NoError(t, lr.Train(X, y))

	coef := lr.Coefficients()
	assert.InDelta(t, 2.0, coef[0], 1e-9)
	assert.InDelta(t, 3.0, coef[1], 1e-9)
	assert.InDelta(t, 1.0, lr.Intercept(), 1e-9)

	preds, err := lr.Predict(X)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], preds[i], 1e-9)
	}

	ev, err := lr.Evaluate(X, y)
	require.NoError(t, err)
	assert.Equal(t, ModelType, ev.ModelType)
	assert.InDelta(t, 1.0, ev.R2, 1e-9)
	assert.InDelta(t, math.Sqrt(ev.MSE), ev.RMSE, 1e-12)
}

func TestRegressionCollinearColumns(t *testing.T) {
	// one-hot columns that always sum to 1 are collinear with the intercept
	rows := [][]float64{
		{1, 0, 2},
		{0, 1, 3},
		{1, 0, 5},
		{0, 1, 1},
	}
	y := []float64{10, 14, 16, 10}
	X := mustFrame(t, []string{"cat_a", "cat_b", "quantity"}, rows)

	lr := NewRegression()
	require.NoError(t, lr.Train(X, y))

	preds, err := lr.Predict(X)
	require.NoError(t, err)
	for _, p := range preds {
		assert.False(t, math.IsNaN(p))
	}
	// minimum-norm solution splits the category effect symmetrically
	coef := lr.Coefficients()
	assert.InDelta(t, -coef[0], coef[1], 1e-9)
}

func TestRegressionConstantFeature(t *testing.T) {
	X := mustFrame(t, []string{"a"}, [][]float64{{1}, {1}, {1}})
	lr := NewRegression()
	require.NoError(t, lr.Train(X, []float64{2, 4, 6}))

	preds, err := lr.Predict(X)
	require.NoError(t, err)
	for _, p := range preds {
		assert.InDelta(t, 4.0, p, 1e-12)
	}
}

func TestRegressionClampsAndReindexes(t *testing.T) {
	X := mustFrame(t, []string{"a"}, [][]float64{{0}, {1}, {2}})
	lr := NewRegression()
	require.NoError(t, lr.Train(X, []float64{1, 0, -1}))

	// unknown column dropped, missing "a" filled with 0 → prediction 1
	in := mustFrame(t, []string{"other"}, [][]float64{{5}})
	preds, err := lr.Predict(in)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, preds[0], 1e-9)

	preds, err = lr.Predict(mustFrame(t, []string{"a"}, [][]float64{{10}}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, preds[0], "negative predictions clamp to zero")
}

func TestRegressionUntrained(t *testing.T) {
	lr := NewRegression()
	_, err := lr.Predict(mustFrame(t, []string{"a"}, [][]float64{{1}}))

	var untrained *errors.UntrainedModelError
	assert.True(t, errors.As(err, &untrained))
	assert.False(t, lr.IsTrained())
	assert.Nil(t, lr.FeatureNames())
	assert.Empty(t, lr.Diagnostics())
}

func TestRegressionSaveLoad(t *testing.T) {
	X := mustFrame(t, []string{"hour", "quantity"}, [][]float64{{9, 1}, {12, 2}, {18, 1}, {20, 3}})
	y := []float64{12, 30, 15, 41}

	lr := NewRegression()
	require.NoError(t, lr.Train(X, y))

	path := filepath.Join(t.TempDir(), "linear_regression.json")
	require.NoError(t, lr.Save(path))

	loaded := NewRegression()
	require.NoError(t, loaded.Load(path))

	want, err := lr.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, lr.FeatureNames(), loaded.FeatureNames())
}

func TestRegressionDiagnosticsAndClone(t *testing.T) {
	X := mustFrame(t, []string{"small", "big"}, [][]float64{{1, 0}, {0, 1}, {1, 1}, {2, 1}})
	y := []float64{0.1, -5, -4.9, -4.8}

	lr := NewRegression(WithFitIntercept(true))
	require.NoError(t, lr.Train(X, y))

	diag := lr.Diagnostics()
	ranking := diag["feature_importance"].([]model.FeatureImportance)
	require.Len(t, ranking, 2)
	assert.Equal(t, "big", ranking[0].Feature)

	clone := lr.Clone()
	assert.False(t, clone.IsTrained())
	assert.Equal(t, lr.Hyperparameters(), clone.Hyperparameters())
}

func TestRegressionWithoutIntercept(t *testing.T) {
	X := mustFrame(t, []string{"a"}, [][]float64{{1}, {2}, {3}})
	lr := NewRegression(WithFitIntercept(false))
	require.NoError(t, lr.Train(X, []float64{2, 4, 6}))
	assert.InDelta(t, 2.0, lr.Coefficients()[0], 1e-12)
	assert.Equal(t, 0.0, lr.Intercept())
}
