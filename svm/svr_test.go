package svm

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
)

func mustFrame(t testing.TB, names []string, rows [][]float64) *dataset.Frame {
	t.Helper()
	f, err := dataset.FrameFromRows(names, rows)
	require.NoError(t, err)
	return f
}

func lineData(t testing.TB) (*dataset.Frame, []float64) {
	var rows [][]float64
	var y []float64
	for i := 0; i < 20; i++ {
		x := float64(i) / 4
		rows = append(rows, []float64{x})
		y = append(y, 1+2*x)
	}
	return mustFrame(t, []string{"quantity"}, rows), y
}

func TestSVRLinearKernelFitsLine(t *testing.T) {
	X, y := lineData(t)
	s := NewSVR(WithKernel(KernelLinear), WithC(100), WithMaxIter(20000), WithTol(1e-6))
	require.NoError(t, s.Train(X, y))

	preds, err := s.Predict(X)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], preds[i], 0.15, "row %d", i)
	}
	// 不感帯の内側の点はサポートベクターにならない
	assert.Less(t, s.SupportVectors(), X.NumRows())
}

func TestSVRKernels(t *testing.T) {
	X, y := lineData(t)
	for _, k := range []string{KernelLinear, KernelPoly, KernelRBF, KernelSigmoid} {
		t.Run(k, func(t *testing.T) {
			s := NewSVR(WithKernel(k))
			require.NoError(t, s.Train(X, y))
			preds, err := s.Predict(X)
			require.NoError(t, err)
			require.Len(t, preds, len(y))
			for _, p := range preds {
				assert.False(t, math.IsNaN(p))
				assert.GreaterOrEqual(t, p, 0.0)
			}
		})
	}
}

func TestSVRUnknownKernel(t *testing.T) {
	X, y := lineData(t)
	err := NewSVR(WithKernel("laplace")).Train(X, y)
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestResolveGamma(t *testing.T) {
	data := []float64{-1, 1, -1, 1} // variance 1
	tests := []struct {
		gamma   string
		want    float64
		wantErr bool
	}{
		{GammaScale, 0.5, false},
		{GammaAuto, 0.5, false},
		{"0.25", 0.25, false},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.gamma, func(t *testing.T) {
			got, err := resolveGamma(tt.gamma, data, 2)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	// 分散0ならscaleは1
	g, err := resolveGamma(GammaScale, []float64{0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, g)
}

func TestSVRGammaValueOption(t *testing.T) {
	X, y := lineData(t)
	s := NewSVR(WithGammaValue(0.3))
	require.NoError(t, s.Train(X, y))
	assert.InDelta(t, 0.3, s.Gamma(), 1e-12)
	assert.Equal(t, "0.3", s.Hyperparameters()["gamma"])
}

func TestSVRConvergenceWarning(t *testing.T) {
	provider, _ := log.NewTestLoggerProvider(log.LevelDebug)
	log.SetProvider(provider)
	t.Cleanup(func() {
		log.SetProvider(log.NewZerologProvider(os.Stderr, log.LevelInfo, "json"))
	})

	X, y := lineData(t)
	s := NewSVR(WithMaxIter(1), WithTol(1e-12))
	require.NoError(t, s.Train(X, y))

	assert.False(t, s.Converged())
	assert.Equal(t, 1, s.Diagnostics()["iterations"])
	assert.True(t, provider.Logger().ContainsField(log.ErrorTypeKey, "*errors.ConvergenceWarning"))
}

func TestSVRSaveLoad(t *testing.T) {
	X, y := lineData(t)
	s := NewSVR(WithC(10))
	require.NoError(t, s.Train(X, y))

	path := filepath.Join(t.TempDir(), "svm.json")
	require.NoError(t, s.Save(path))

	loaded := NewSVR()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, s.Hyperparameters(), loaded.Hyperparameters())
	assert.Equal(t, s.SupportVectors(), loaded.SupportVectors())

	want, err := s.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-9)
}

func TestSVRUntrained(t *testing.T) {
	s := NewSVR()
	_, err := s.Predict(mustFrame(t, []string{"quantity"}, [][]float64{{1}}))
	var untrained *errors.UntrainedModelError
	assert.True(t, errors.As(err, &untrained))

	err = s.Save(filepath.Join(t.TempDir(), "svm.json"))
	assert.Error(t, err)
}

func TestSVRClone(t *testing.T) {
	s := NewSVR(WithEpsilon(0.5), WithKernel(KernelPoly), WithDegree(2))
	c := s.Clone()
	assert.Equal(t, s.Hyperparameters(), c.Hyperparameters())
	assert.False(t, c.IsTrained())
}

// salesData は時刻・曜日・数量・単価・サイズに似た5特徴の合成データ
func salesData(t testing.TB, n int) (*dataset.Frame, []float64) {
	rng := rand.New(rand.NewPCG(7, 11))
	rows := make([][]float64, n)
	y := make([]float64, n)
	for i := range rows {
		hour := float64(11 + rng.IntN(12))
		dow := float64(rng.IntN(7))
		qty := float64(1 + rng.IntN(3))
		price := 9.75 + 1.25*float64(rng.IntN(10))
		size := float64(rng.IntN(5))
		rows[i] = []float64{hour, dow, qty, price, size}
		y[i] = qty*price + 0.5*size + rng.NormFloat64()*0.5
	}
	return mustFrame(t, []string{"hour", "day_of_week", "quantity", "unit_price", "size"}, rows), y
}

func TestSVRConvergesOnThousandsOfRows(t *testing.T) {
	if testing.Short() {
		t.Skip("trains on 2500 rows")
	}
	X, y := salesData(t, 2500)
	s := NewSVR()
	require.NoError(t, s.Train(X, y))

	assert.True(t, s.Converged())
	iterations, ok := s.Diagnostics()["iterations"].(int)
	require.True(t, ok)
	assert.Less(t, iterations, 1000)

	preds, err := s.Predict(X)
	require.NoError(t, err)
	for _, p := range preds {
		require.False(t, math.IsNaN(p))
	}
}

func TestKernelCacheLRU(t *testing.T) {
	rows := [][]float64{{0, 1}, {1, 0}, {1, 1}, {2, 2}, {3, 1}}
	kernel, err := newKernel(KernelRBF, 0.5, 3, 0)
	require.NoError(t, err)

	full := newKernelCache(rows, kernel, 1<<20)
	require.NotNil(t, full.full)
	// 2列分しか入らない予算ではLRUを使う
	small := newKernelCache(rows, kernel, 2*len(rows)*8)
	require.Nil(t, small.full)
	require.NotNil(t, small.lru)

	for round := 0; round < 2; round++ {
		for i := range rows {
			assert.InDeltaSlice(t, full.column(i), small.column(i), 1e-12)
		}
	}
	assert.LessOrEqual(t, small.lru.Len(), 2)
	assert.InDelta(t, 2.0, full.column(2)[2], 1e-12, "diagonal of K + 1 is 2 for rbf")
}

func TestSVRSolveMatchesAcrossCacheModes(t *testing.T) {
	X, y := salesData(t, 200)
	a := NewSVR()
	require.NoError(t, a.Train(X, y))
	want, err := a.Predict(X)
	require.NoError(t, err)

	saved := kernelCacheBytes
	kernelCacheBytes = 16 * 200 * 8
	t.Cleanup(func() { kernelCacheBytes = saved })

	b := NewSVR()
	require.NoError(t, b.Train(X, y))
	got, err := b.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-9)
	assert.Equal(t, a.Converged(), b.Converged())
}
