// Package metrics は回帰モデルの評価指標を提供します。
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// Evaluation は1回の評価（交差検証の1フォールドまたはホールドアウト）の結果
type Evaluation struct {
	MSE       float64 `json:"mse"`
	RMSE      float64 `json:"rmse"`
	MAE       float64 `json:"mae"`
	R2        float64 `json:"r2"`
	ModelType string  `json:"model_type"`
}

func validate(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	// NaN/Infを含むと指標がNaNになるので拒否する
	for i := range yTrue {
		if !isFinite(yTrue[i]) {
			return errors.NewValueError(op, fmt.Sprintf("y_true[%d] is not finite", i))
		}
		if !isFinite(yPred[i]) {
			return errors.NewValueError(op, fmt.Sprintf("y_pred[%d] is not finite", i))
		}
	}
	return nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := validate("MSE", yTrue, yPred); err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sum += diff * diff
	}
	return sum / float64(len(yTrue)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := validate("MAE", yTrue, yPred); err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue)), nil
}

// R2Score は決定係数（R²）を計算する
//
// yTrueが定数（全変動が0）の場合は定義できないため、
// 完全一致なら1.0、そうでなければ0.0を返し、UndefinedMetricWarningを発生させる。
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := validate("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}

	yMean := stat.Mean(yTrue, nil)

	// 全変動（TSS）と残差変動（RSS）を計算
	var tss, rss float64
	for i := range yTrue {
		tss += (yTrue[i] - yMean) * (yTrue[i] - yMean)
		rss += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
	}

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2", "constant target (zero total sum of squares)", result))
		return result, nil
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// Evaluate はMSE、RMSE、MAE、R²をまとめて計算する
//
// パラメータ:
//   - modelType: 結果に記録するモデル種別（"linear_regression"など）
//   - yTrue: 正解値
//   - yPred: 予測値
func Evaluate(modelType string, yTrue, yPred []float64) (Evaluation, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return Evaluation{}, err
	}
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return Evaluation{}, err
	}
	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{
		MSE:       mse,
		RMSE:      math.Sqrt(mse),
		MAE:       mae,
		R2:        r2,
		ModelType: modelType,
	}, nil
}
