// Package svm はε-不感帯サポートベクター回帰（SVR）を提供します。
//
// 入力はStandardScalerで標準化してからカーネル推定器に渡し、
// スケーラーと推定器は1つのモデルとして学習・保存されます。
package svm

import (
	"math"
	"math/rand/v2"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salescope/core/model"
	"github.com/YuminosukeSato/salescope/core/parallel"
	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/metrics"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
	"github.com/YuminosukeSato/salescope/preprocessing"
)

// ModelType はバンドルに記録されるモデル種別
const ModelType = "svm"

// カーネル列キャッシュの上限（バイト）。行列全体が収まれば前計算する
var kernelCacheBytes = 256 << 20

const (
	// |beta| がこれを超えるサンプルをサポートベクターとみなす
	supportThreshold = 1e-8
)

var _ model.Regressor = (*SVR)(nil)

// Params はSVRのハイパーパラメータ
type Params struct {
	C       float64 `json:"C"`
	Epsilon float64 `json:"epsilon"`
	Kernel  string  `json:"kernel"`
	Gamma   string  `json:"gamma"`
	Degree  int     `json:"degree"`
	Coef0   float64 `json:"coef0"`
	Tol     float64 `json:"tol"`
	MaxIter int     `json:"max_iter"`
}

// SVR はカーネル付きε-SVR
//
// 双対問題をバイアス項込みのカーネル K' = K + 1 上で座標降下法により解く。
// 予測値は f(x) = Σ beta_i (K(x_i, x) + 1)。
type SVR struct {
	state  *model.StateManager
	params Params

	scaler     *preprocessing.StandardScaler
	kernel     kernelFunc
	gamma      float64
	support    [][]float64 // 標準化済みのサポートベクター
	beta       []float64
	intercept  float64
	iterations int
	converged  bool
}

type estimatorState struct {
	Scaler     *preprocessing.StandardScaler `json:"scaler"`
	Gamma      float64                       `json:"gamma"`
	Support    [][]float64                   `json:"support_vectors"`
	Beta       []float64                     `json:"dual_coef"`
	Intercept  float64                       `json:"intercept"`
	Iterations int                           `json:"iterations"`
	Converged  bool                          `json:"converged"`
}

// NewSVR は新しいSVRを作成する
//
// デフォルト: C=1.0, epsilon=0.1, kernel=rbf, gamma=scale, degree=3, coef0=0, tol=1e-3, max_iter=1000
func NewSVR(opts ...Option) *SVR {
	s := &SVR{
		state: model.NewStateManager(),
		params: Params{
			C:       1.0,
			Epsilon: 0.1,
			Kernel:  KernelRBF,
			Gamma:   GammaScale,
			Degree:  3,
			Coef0:   0,
			Tol:     1e-3,
			MaxIter: 1000,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements model.Regressor.
func (s *SVR) Name() string { return ModelType }

func (s *SVR) validateParams() error {
	p := s.params
	switch {
	case p.C <= 0:
		return errors.NewValidationError("C", "must be positive", p.C)
	case p.Epsilon < 0:
		return errors.NewValidationError("epsilon", "must be non-negative", p.Epsilon)
	case p.Tol <= 0:
		return errors.NewValidationError("tol", "must be positive", p.Tol)
	case p.MaxIter < 1:
		return errors.NewValidationError("max_iter", "must be at least 1", p.MaxIter)
	case p.Kernel == KernelPoly && p.Degree < 1:
		return errors.NewValidationError("degree", "must be at least 1", p.Degree)
	}
	return nil
}

// Train はスケーラーと推定器をまとめて学習する
func (s *SVR) Train(X *dataset.Frame, y []float64) error {
	const op = "SVR.Train"
	if err := s.validateParams(); err != nil {
		return err
	}
	Xc, yc, err := model.PrepareTraining(op, X, y)
	if err != nil {
		return err
	}

	scaler := preprocessing.NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(Xc.Dense())
	if err != nil {
		return err
	}
	rows := denseRows(scaled)
	n, d := Xc.Dims()

	gamma, err := resolveGamma(s.params.Gamma, mat.DenseCopyOf(scaled).RawMatrix().Data, d)
	if err != nil {
		return err
	}
	kernel, err := newKernel(s.params.Kernel, gamma, s.params.Degree, s.params.Coef0)
	if err != nil {
		return err
	}

	beta, iterations, converged := s.solve(rows, yc, kernel)
	if err := errors.CheckNumericalStability(op, beta, iterations); err != nil {
		return err
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("SVR", iterations, "Maximum number of iterations reached"))
	}

	var support [][]float64
	var coef []float64
	for i, b := range beta {
		if math.Abs(b) > supportThreshold {
			support = append(support, rows[i])
			coef = append(coef, b)
		}
	}

	s.scaler = scaler
	s.kernel = kernel
	s.gamma = gamma
	s.support = support
	s.beta = coef
	s.intercept = floats.Sum(coef)
	s.iterations = iterations
	s.converged = converged
	s.state.SetTrained(Xc.Names(), n)

	log.GetLoggerWithName("svm").Debug("Model trained",
		log.ModelNameKey, ModelType,
		log.SamplesKey, n,
		log.IterationKey, iterations,
		"support_vectors", len(support),
		"converged", converged,
	)
	return nil
}

// solve は双対座標降下法を実行し、係数・反復回数・収束したかを返す
//
// 各座標で β_i をNewton方向に動かし [-C, C] にクリップする。1パスで最大の
// 射影勾配違反が tol * max(1, 初回パスの最大違反) 以下になったら収束とする。
// 境界に張り付いて違反のない座標は縮小（shrinking）で以降のパスから外し、
// 縮小した集合で収束したら全座標でもう一度確認する。
func (s *SVR) solve(rows [][]float64, y []float64, kernel kernelFunc) ([]float64, int, bool) {
	n := len(rows)
	C, eps := s.params.C, s.params.Epsilon

	cache := newKernelCache(rows, kernel, kernelCacheBytes)
	diag := make([]float64, n)
	for i := range rows {
		diag[i] = kernel(rows[i], rows[i]) + 1
	}

	beta := make([]float64, n)
	f := make([]float64, n) // f = K' beta
	active := make([]int, n)
	for i := range active {
		active[i] = i
	}
	activeSize := n
	rng := rand.New(rand.NewPCG(1, uint64(n)))

	limit := -1.0
	maxOld := math.Inf(1)
	iter := 0
	for iter < s.params.MaxIter {
		iter++
		rng.Shuffle(activeSize, func(a, b int) { active[a], active[b] = active[b], active[a] })

		var maxNew float64
		for k := 0; k < activeSize; k++ {
			i := active[k]
			g := f[i] - y[i]
			gp, gn := g+eps, g-eps

			var violation float64
			shrink := false
			switch b := beta[i]; {
			case b == 0:
				switch {
				case gp < 0:
					violation = -gp
				case gn > 0:
					violation = gn
				case gp > maxOld && gn < -maxOld:
					shrink = true
				}
			case b >= C:
				if gp > 0 {
					violation = gp
				} else if gp < -maxOld {
					shrink = true
				}
			case b <= -C:
				if gn < 0 {
					violation = -gn
				} else if gn > maxOld {
					shrink = true
				}
			case b > 0:
				violation = math.Abs(gp)
			default:
				violation = math.Abs(gn)
			}
			if shrink {
				activeSize--
				active[k], active[activeSize] = active[activeSize], active[k]
				k--
				continue
			}
			maxNew = math.Max(maxNew, violation)

			q := diag[i]
			if q <= 1e-12 {
				continue
			}
			var d float64
			switch {
			case gp < q*beta[i]:
				d = -gp / q
			case gn > q*beta[i]:
				d = -gn / q
			default:
				d = -beta[i]
			}
			if math.Abs(d) < 1e-12 {
				continue
			}
			z := errors.ClipValue(beta[i]+d, -C, C)
			if delta := z - beta[i]; delta != 0 {
				beta[i] = z
				floats.AddScaled(f, delta, cache.column(i))
			}
		}

		if limit < 0 {
			limit = s.params.Tol * math.Max(1, maxNew)
		}
		if maxNew <= limit {
			if activeSize == n {
				return beta, iter, true
			}
			// 縮小した座標も含めて再確認する
			activeSize = n
			maxOld = math.Inf(1)
			continue
		}
		maxOld = maxNew
	}
	return beta, iter, false
}

// kernelCache yields columns of K + 1. Problems whose full matrix fits in
// the byte budget are precomputed; larger ones keep the most recently used
// columns in an LRU.
type kernelCache struct {
	rows   [][]float64
	kernel kernelFunc
	full   []float64
	lru    *lru.Cache[int, []float64]
}

func newKernelCache(rows [][]float64, kernel kernelFunc, budget int) *kernelCache {
	n := len(rows)
	c := &kernelCache{rows: rows, kernel: kernel}
	if n == 0 {
		return c
	}
	if n*n*8 <= budget {
		c.full = make([]float64, n*n)
		parallel.ParallelizeWithThreshold(n, parallel.DefaultThreshold/10, func(start, end int) {
			for i := start; i < end; i++ {
				c.fill(i, c.full[i*n:(i+1)*n])
			}
		})
		return c
	}
	size := budget / (n * 8)
	if size < 2 {
		size = 2
	}
	// size > 0 なのでエラーにならない
	c.lru, _ = lru.New[int, []float64](size)
	return c
}

func (c *kernelCache) fill(i int, dst []float64) {
	for j := range dst {
		dst[j] = c.kernel(c.rows[i], c.rows[j]) + 1
	}
}

func (c *kernelCache) column(i int) []float64 {
	n := len(c.rows)
	if c.full != nil {
		return c.full[i*n : (i+1)*n]
	}
	if col, ok := c.lru.Get(i); ok {
		return col
	}
	col := make([]float64, n)
	parallel.Parallelize(n, func(start, end int) {
		for j := start; j < end; j++ {
			col[j] = c.kernel(c.rows[i], c.rows[j]) + 1
		}
	})
	c.lru.Add(i, col)
	return col
}

func denseRows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(make([]float64, c), i, m)
	}
	return rows
}

// Predict は入力を標準化し、サポートベクターとのカーネル和を返す
func (s *SVR) Predict(X *dataset.Frame) ([]float64, error) {
	Xp, err := model.PrepareInput(ModelType, s.state, X)
	if err != nil {
		return nil, err
	}
	if Xp.NumRows() == 0 {
		return []float64{}, nil
	}
	scaled, err := s.scaler.Transform(Xp.Dense())
	if err != nil {
		return nil, err
	}
	rows := denseRows(scaled)

	preds := make([]float64, len(rows))
	parallel.ParallelizeWithThreshold(len(rows), parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			v := s.intercept
			for k, sv := range s.support {
				v += s.beta[k] * s.kernel(sv, rows[i])
			}
			preds[i] = v
		}
	})
	return model.FinishPrediction(ModelType, preds)
}

// Evaluate implements model.Regressor.
func (s *SVR) Evaluate(X *dataset.Frame, y []float64) (metrics.Evaluation, error) {
	return model.EvaluateRegressor(s, X, y)
}

// SupportVectors returns the number of support vectors.
func (s *SVR) SupportVectors() int { return len(s.support) }

// Gamma returns the resolved kernel coefficient.
func (s *SVR) Gamma() float64 { return s.gamma }

// Converged reports whether the last Train stopped before max_iter.
func (s *SVR) Converged() bool { return s.converged }

// IsTrained implements model.Regressor.
func (s *SVR) IsTrained() bool { return s.state.IsTrained() }

// FeatureNames implements model.Regressor.
func (s *SVR) FeatureNames() []string { return s.state.FeatureNames() }

// Hyperparameters implements model.Regressor.
func (s *SVR) Hyperparameters() map[string]any {
	return map[string]any{
		"C":        s.params.C,
		"epsilon":  s.params.Epsilon,
		"kernel":   s.params.Kernel,
		"gamma":    s.params.Gamma,
		"degree":   s.params.Degree,
		"coef0":    s.params.Coef0,
		"tol":      s.params.Tol,
		"max_iter": s.params.MaxIter,
	}
}

// Diagnostics はサポートベクター数、解決済みgamma、反復回数を返す
func (s *SVR) Diagnostics() map[string]any {
	if !s.IsTrained() {
		return map[string]any{}
	}
	return map[string]any{
		"support_vectors_count": len(s.support),
		"gamma":                 s.gamma,
		"iterations":            s.iterations,
		"converged":             s.converged,
	}
}

// Clone implements model.Regressor.
func (s *SVR) Clone() model.Regressor {
	return &SVR{state: model.NewStateManager(), params: s.params}
}

// Save はスケーラーを含むパイプライン全体を保存する
func (s *SVR) Save(path string) error {
	b, err := model.NewBundle(ModelType, s.state, s.params, s.Diagnostics(), estimatorState{
		Scaler:     s.scaler,
		Gamma:      s.gamma,
		Support:    s.support,
		Beta:       s.beta,
		Intercept:  s.intercept,
		Iterations: s.iterations,
		Converged:  s.converged,
	})
	if err != nil {
		return err
	}
	return model.SaveBundle(path, b)
}

// Load は保存されたパイプラインを復元する
func (s *SVR) Load(path string) error {
	b, err := model.LoadBundle(path)
	if err != nil {
		return err
	}
	if err := b.Expect(ModelType); err != nil {
		return err
	}

	var params Params
	var est estimatorState
	if err := b.Decode(&params, &est); err != nil {
		return err
	}
	if est.Scaler == nil {
		return errors.NewValidationError("scaler", "bundle has no scaler", nil)
	}
	if err := est.Scaler.Restore(); err != nil {
		return err
	}
	if len(est.Scaler.Mean) != len(b.FeatureNames) {
		return errors.NewDimensionError("SVR.Load", len(b.FeatureNames), len(est.Scaler.Mean), 1)
	}
	if len(est.Support) != len(est.Beta) {
		return errors.NewDimensionError("SVR.Load", len(est.Support), len(est.Beta), 0)
	}
	for _, sv := range est.Support {
		if len(sv) != len(b.FeatureNames) {
			return errors.NewDimensionError("SVR.Load", len(b.FeatureNames), len(sv), 1)
		}
	}
	kernel, err := newKernel(params.Kernel, est.Gamma, params.Degree, params.Coef0)
	if err != nil {
		return err
	}

	s.params = params
	s.scaler = est.Scaler
	s.kernel = kernel
	s.gamma = est.Gamma
	s.support = est.Support
	s.beta = est.Beta
	s.intercept = est.Intercept
	s.iterations = est.Iterations
	s.converged = est.Converged
	s.state.SetState(b.State())
	return nil
}
