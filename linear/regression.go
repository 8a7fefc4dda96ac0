// Package linear は最小二乗法による線形回帰モデルを提供します。
package linear

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salescope/core/model"
	"github.com/YuminosukeSato/salescope/core/parallel"
	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/metrics"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
)

// ModelType はバンドルに記録されるモデル種別
const ModelType = "linear_regression"

var _ model.Regressor = (*Regression)(nil)

// Params は線形回帰のハイパーパラメータ
type Params struct {
	FitIntercept bool    `json:"fit_intercept"`
	Rcond        float64 `json:"rcond"`
}

// Regression は切片付きの通常最小二乗法による線形回帰モデル
//
// 正規方程式の逆行列ではなくSVDで最小ノルム解を求めるため、
// one-hot列どうしが共線的でも学習できる。
type Regression struct {
	state  *model.StateManager
	params Params

	coef      []float64 // 重み（係数）
	intercept float64   // 切片
	rank      int
}

type estimatorState struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Rank         int       `json:"rank"`
}

// NewRegression は新しい線形回帰モデルを作成する
func NewRegression(opts ...Option) *Regression {
	lr := &Regression{
		state:  model.NewStateManager(),
		params: Params{FitIntercept: true},
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Name implements model.Regressor.
func (lr *Regression) Name() string { return ModelType }

// Train はモデルを訓練データで学習させる
//
// 中心化した X と y に対して SVD で min ||Xw - y|| の最小ノルム解を求め、
// 切片は ȳ - x̄·w で復元する。
func (lr *Regression) Train(X *dataset.Frame, y []float64) error {
	const op = "Regression.Train"
	Xc, yc, err := model.PrepareTraining(op, X, y)
	if err != nil {
		return err
	}
	r, c := Xc.Dims()

	xMean := make([]float64, c)
	var yMean float64
	if lr.params.FitIntercept {
		for i := 0; i < r; i++ {
			floats.Add(xMean, Xc.Row(i))
		}
		floats.Scale(1/float64(r), xMean)
		yMean = floats.Sum(yc) / float64(r)
	}

	A := mat.NewDense(r, c, nil)
	b := mat.NewVecDense(r, nil)

	// データサイズに応じて並列化
	parallel.ParallelizeWithThreshold(r, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			row := Xc.Row(i)
			for j := 0; j < c; j++ {
				A.Set(i, j, row[j]-xMean[j])
			}
			b.SetVec(i, yc[i]-yMean)
		}
	})

	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDThin); !ok {
		return errors.NewModelError(op, "svd factorization failed", nil)
	}

	rcond := lr.params.Rcond
	if rcond <= 0 {
		rcond = 2.220446049250313e-16 * float64(max(r, c))
	}
	rank := svd.Rank(rcond)

	coef := make([]float64, c)
	if rank > 0 {
		var w mat.VecDense
		svd.SolveVecTo(&w, b, rank)
		for j := 0; j < c; j++ {
			coef[j] = w.AtVec(j)
		}
	}
	if err := errors.CheckNumericalStability(op, coef, 0); err != nil {
		return err
	}

	lr.coef = coef
	lr.intercept = yMean - floats.Dot(xMean, coef)
	lr.rank = rank
	lr.state.SetTrained(Xc.Names(), r)

	log.GetLoggerWithName("linear").Debug("Model trained",
		log.ModelNameKey, ModelType,
		log.SamplesKey, r,
		log.FeaturesKey, c,
		"rank", rank,
	)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *Regression) Predict(X *dataset.Frame) ([]float64, error) {
	Xp, err := model.PrepareInput(ModelType, lr.state, X)
	if err != nil {
		return nil, err
	}

	// 予測: y = X * coef + intercept
	preds := make([]float64, Xp.NumRows())
	parallel.ParallelizeWithThreshold(len(preds), parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			preds[i] = lr.intercept + floats.Dot(Xp.Row(i), lr.coef)
		}
	})
	return model.FinishPrediction(ModelType, preds)
}

// Evaluate implements model.Regressor.
func (lr *Regression) Evaluate(X *dataset.Frame, y []float64) (metrics.Evaluation, error) {
	return model.EvaluateRegressor(lr, X, y)
}

// Coefficients は学習された重み（係数）を返す
func (lr *Regression) Coefficients() []float64 {
	return append([]float64(nil), lr.coef...)
}

// Intercept は学習された切片を返す
func (lr *Regression) Intercept() float64 {
	return lr.intercept
}

// IsTrained implements model.Regressor.
func (lr *Regression) IsTrained() bool { return lr.state.IsTrained() }

// FeatureNames implements model.Regressor.
func (lr *Regression) FeatureNames() []string { return lr.state.FeatureNames() }

// Hyperparameters implements model.Regressor.
func (lr *Regression) Hyperparameters() map[string]any {
	return map[string]any{
		"fit_intercept": lr.params.FitIntercept,
		"rcond":         lr.params.Rcond,
	}
}

// Diagnostics は係数、切片、係数の絶対値による重要度ランキングを返す
func (lr *Regression) Diagnostics() map[string]any {
	if !lr.IsTrained() {
		return map[string]any{}
	}
	names := lr.state.FeatureNames()
	coefs := make(map[string]float64, len(names))
	for j, n := range names {
		coefs[n] = lr.coef[j]
	}
	return map[string]any{
		"coefficients":       coefs,
		"intercept":          lr.intercept,
		"rank":               lr.rank,
		"feature_importance": model.RankImportance(names, lr.coef),
	}
}

// Clone implements model.Regressor.
func (lr *Regression) Clone() model.Regressor {
	return &Regression{state: model.NewStateManager(), params: lr.params}
}

// Save は学習済みモデルをJSONバンドルとして保存する
func (lr *Regression) Save(path string) error {
	b, err := model.NewBundle(ModelType, lr.state, lr.params, lr.Diagnostics(), estimatorState{
		Coefficients: lr.coef,
		Intercept:    lr.intercept,
		Rank:         lr.rank,
	})
	if err != nil {
		return err
	}
	return model.SaveBundle(path, b)
}

// Load は保存されたバンドルからモデルを復元する
func (lr *Regression) Load(path string) error {
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
	if len(est.Coefficients) != len(b.FeatureNames) {
		return errors.NewDimensionError("Regression.Load", len(b.FeatureNames), len(est.Coefficients), 1)
	}

	lr.params = params
	lr.coef = est.Coefficients
	lr.intercept = est.Intercept
	lr.rank = est.Rank
	lr.state.SetState(b.State())
	return nil
}
