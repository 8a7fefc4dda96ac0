package model

import (
	"math"

	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/metrics"
	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// PrepareTraining は学習データを検証し、欠損値を補完したコピーを返す
//
// XのNaN/Infは0、yのNaNは欠損していないyの平均で置き換える。
// yがすべて欠損している場合、行数が一致しない場合、特徴量が0列の場合はエラー。
func PrepareTraining(op string, X *dataset.Frame, y []float64) (*dataset.Frame, []float64, error) {
	if X == nil || X.NumRows() == 0 {
		return nil, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if X.NumCols() == 0 {
		return nil, nil, errors.NewModelError(op, "no features", errors.ErrNoFeatures)
	}
	if len(y) != X.NumRows() {
		return nil, nil, errors.NewDimensionError(op, X.NumRows(), len(y), 0)
	}

	var sum float64
	var n int
	for _, v := range y {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil, nil, errors.NewValueError(op, "target has no finite values")
	}
	mean := sum / float64(n)

	yy := make([]float64, len(y))
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			yy[i] = mean
		} else {
			yy[i] = v
		}
	}
	return X.FillNaN(0), yy, nil
}

// PrepareInput は予測用の入力を学習時の特徴量名に合わせて並べ替える
//
// 学習時になかった列は捨て、足りない列は0で埋め、NaNは0にする。
func PrepareInput(modelName string, state *StateManager, X *dataset.Frame) (*dataset.Frame, error) {
	if err := state.RequireTrained(modelName, "Predict"); err != nil {
		return nil, err
	}
	if X == nil {
		return nil, errors.NewModelError(modelName+".Predict", "nil input", errors.ErrEmptyData)
	}
	return X.Reindex(state.FeatureNames()).FillNaN(0), nil
}

// FinishPrediction は予測値の数値安定性を確認し、0未満を0に切り詰める
func FinishPrediction(modelName string, preds []float64) ([]float64, error) {
	if err := errors.CheckNumericalStability(modelName+".Predict", preds, 0); err != nil {
		return nil, err
	}
	for i, v := range preds {
		if v < 0 {
			preds[i] = 0
		}
	}
	return preds, nil
}

// EvaluateRegressor はrの予測値からEvaluationを計算する
func EvaluateRegressor(r Regressor, X *dataset.Frame, y []float64) (metrics.Evaluation, error) {
	if err := requireTrained(r, "Evaluate"); err != nil {
		return metrics.Evaluation{}, err
	}
	preds, err := r.Predict(X)
	if err != nil {
		return metrics.Evaluation{}, err
	}
	return metrics.Evaluate(r.Name(), y, preds)
}

func requireTrained(r Regressor, method string) error {
	if !r.IsTrained() {
		return errors.NewUntrainedModelError(r.Name(), method)
	}
	return nil
}
